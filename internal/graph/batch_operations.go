package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// BatchNodeCreator handles efficient batch node creation with UNWIND.
//
// The UNWIND pattern is the most efficient way to create multiple nodes:
// Instead of: MERGE (n:File {file_path: "a.js"}) MERGE (n:File {file_path: "b.js"})...
// We use: UNWIND $nodes AS node MERGE (n:File {file_path: node.file_path}) SET n += node
//
// This reduces round trips and allows Neo4j to optimize execution.
type BatchNodeCreator struct {
	driver   neo4j.DriverWithContext
	database string
	config   BatchConfig
}

// NewBatchNodeCreator creates a batch operation handler
func NewBatchNodeCreator(driver neo4j.DriverWithContext, database string, config BatchConfig) *BatchNodeCreator {
	return &BatchNodeCreator{
		driver:   driver,
		database: database,
		config:   config,
	}
}

// createNodesBatched runs an UNWIND MERGE for one node label, batched
func (b *BatchNodeCreator) createNodesBatched(ctx context.Context, label, uniqueKey string, nodes []GraphNode, batchSize int) error {
	if len(nodes) == 0 {
		return nil
	}

	nodeParams := make([]map[string]any, len(nodes))
	for i, node := range nodes {
		nodeParams[i] = node.Properties
	}

	query := fmt.Sprintf(`
		UNWIND $nodes AS node
		MERGE (n:%s {%s: node.%s})
		SET n += node
		RETURN count(n) as created
	`, sanitizeLabel(label), sanitizeLabel(uniqueKey), sanitizeLabel(uniqueKey))

	for i := 0; i < len(nodeParams); i += batchSize {
		end := i + batchSize
		if end > len(nodeParams) {
			end = len(nodeParams)
		}

		batch := nodeParams[i:end]

		_, err := neo4j.ExecuteQuery(ctx, b.driver, query,
			map[string]any{"nodes": batch},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(b.database))

		if err != nil {
			return fmt.Errorf("batch %s creation failed (batch %d-%d): %w", label, i, end, err)
		}
	}

	return nil
}

// CreateFileNodes creates File nodes in optimized batches using UNWIND
func (b *BatchNodeCreator) CreateFileNodes(ctx context.Context, nodes []GraphNode) error {
	return b.createNodesBatched(ctx, "File", "file_path", nodes, b.config.FileBatchSize)
}

// CreateFunctionNodes creates Function nodes efficiently
func (b *BatchNodeCreator) CreateFunctionNodes(ctx context.Context, nodes []GraphNode) error {
	return b.createNodesBatched(ctx, "Function", "unique_id", nodes, b.config.FunctionBatchSize)
}

// CreateClassNodes creates Class nodes efficiently
func (b *BatchNodeCreator) CreateClassNodes(ctx context.Context, nodes []GraphNode) error {
	return b.createNodesBatched(ctx, "Class", "unique_id", nodes, b.config.ClassBatchSize)
}

// CreateModuleNodes creates Module nodes efficiently
func (b *BatchNodeCreator) CreateModuleNodes(ctx context.Context, nodes []GraphNode) error {
	return b.createNodesBatched(ctx, "Module", "unique_id", nodes, b.config.ModuleBatchSize)
}

// CreateEdgesBatch creates edges in optimized batches using UNWIND
// Groups edges by type for efficiency
func (b *BatchNodeCreator) CreateEdgesBatch(ctx context.Context, edges []GraphEdge) error {
	if len(edges) == 0 {
		return nil
	}

	// Group edges by type for efficiency
	edgesByType := make(map[string][]GraphEdge)
	for _, edge := range edges {
		edgesByType[edge.Label] = append(edgesByType[edge.Label], edge)
	}

	// Process each edge type in batches
	for edgeType, edgeList := range edgesByType {
		if err := b.createEdgesBatchByType(ctx, edgeType, edgeList); err != nil {
			return err
		}
	}

	return nil
}

// createEdgesBatchByType processes a batch of edges of the same type
func (b *BatchNodeCreator) createEdgesBatchByType(ctx context.Context, edgeType string, edges []GraphEdge) error {
	batchSize := b.config.EdgeBatchSize

	for i := 0; i < len(edges); i += batchSize {
		end := i + batchSize
		if end > len(edges) {
			end = len(edges)
		}

		batch := edges[i:end]

		// Convert to parameter format
		edgeParams := make([]map[string]any, len(batch))
		for j, edge := range batch {
			fromLabel, fromID := parseNodeID(edge.From)
			toLabel, toID := parseNodeID(edge.To)

			// Get unique keys for node matching
			fromKey := getUniqueKey(fromLabel)
			toKey := getUniqueKey(toLabel)

			edgeParams[j] = map[string]any{
				"from_key":   fromKey,
				"from_id":    fromID,
				"from_label": fromLabel,
				"to_key":     toKey,
				"to_id":      toID,
				"to_label":   toLabel,
				"props":      edge.Properties,
			}
		}

		// Build dynamic UNWIND query
		// Note: We can't use dynamic labels in Cypher, so we use WHERE clause
		query := fmt.Sprintf(`
			UNWIND $edges AS edge
			MATCH (from)
			WHERE edge.from_label IN labels(from) AND from[edge.from_key] = edge.from_id
			MATCH (to)
			WHERE edge.to_label IN labels(to) AND to[edge.to_key] = edge.to_id
			MERGE (from)-[r:%s]->(to)
			SET r += edge.props
			RETURN count(r) as created
		`, sanitizeLabel(edgeType))

		result, err := neo4j.ExecuteQuery(ctx, b.driver, query,
			map[string]any{"edges": edgeParams},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(b.database))

		if err != nil {
			return fmt.Errorf("batch edge creation failed for %s (batch %d-%d): %w",
				edgeType, i, end, err)
		}

		if len(result.Records) > 0 {
			if created, ok := result.Records[0].Get("created"); ok {
				createdCount := created.(int64)
				if createdCount < int64(len(batch)) {
					slog.Default().Warn("some mirror edges skipped, endpoints missing",
						"edge_type", edgeType,
						"created", createdCount,
						"requested", len(batch))
				}
			}
		}
	}

	return nil
}

// sanitizeLabel ensures label is safe for Cypher (already validated by CypherBuilder, but extra safety)
func sanitizeLabel(label string) string {
	result := strings.Builder{}
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
