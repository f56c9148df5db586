package graph

import "context"

// Backend is the optional graph database mirror. The in-memory arenas
// remain the source of truth for retrieval; the mirror exists so code
// graphs can be explored with Cypher alongside other tooling.
type Backend interface {
	// CreateNode creates a single node in the graph
	CreateNode(ctx context.Context, node GraphNode) (string, error)

	// CreateNodes creates multiple nodes in batch
	CreateNodes(ctx context.Context, nodes []GraphNode) ([]string, error)

	// CreateEdge creates a single edge in the graph
	CreateEdge(ctx context.Context, edge GraphEdge) error

	// CreateEdges creates multiple edges in batch
	CreateEdges(ctx context.Context, edges []GraphEdge) error

	// ExecuteBatch executes multiple commands in a single transaction
	ExecuteBatch(ctx context.Context, commands []string) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string) (interface{}, error)

	// Close closes the backend connection
	Close(ctx context.Context) error
}

// GraphNode represents a node in the mirrored graph
type GraphNode struct {
	Label      string                 // Node type: "File", "Function", "Class", "Module"
	ID         string                 // Unique identifier for the node
	Properties map[string]interface{} // Node properties
}

// GraphEdge represents an edge in the mirrored graph
type GraphEdge struct {
	Label      string                 // Edge type: "IMPORTS", "CALLS", etc.
	From       string                 // Source node ID
	To         string                 // Target node ID
	Properties map[string]interface{} // Edge properties
}
