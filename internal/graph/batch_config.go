package graph

// BatchConfig defines batch sizes per mirrored node type.
//
// Batch sizing follows Neo4j guidance:
// - Small batches (100-200): complex nodes with many properties
// - Medium batches (500-1000): simple nodes with few properties
// - Large batches (1000-5000): edges with minimal properties
type BatchConfig struct {
	FileBatchSize     int // Optimal: 500-1000
	FunctionBatchSize int // Optimal: 1000-2000
	ClassBatchSize    int // Optimal: 500-1000
	ModuleBatchSize   int // Optimal: 500-1000

	// Edges
	EdgeBatchSize int // Optimal: 1000-5000
}

// DefaultBatchConfig returns batch sizes tuned for medium repos (~5K files)
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		FileBatchSize:     1000,
		FunctionBatchSize: 2000,
		ClassBatchSize:    1000,
		ModuleBatchSize:   1000,
		EdgeBatchSize:     5000,
	}
}

// SmallRepoBatchConfig for repos < 500 files
// Uses smaller batches to reduce memory pressure
func SmallRepoBatchConfig() BatchConfig {
	return BatchConfig{
		FileBatchSize:     200,
		FunctionBatchSize: 500,
		ClassBatchSize:    200,
		ModuleBatchSize:   200,
		EdgeBatchSize:     1000,
	}
}

// LargeRepoBatchConfig for repos > 10K files
// Uses larger batches for maximum throughput
func LargeRepoBatchConfig() BatchConfig {
	return BatchConfig{
		FileBatchSize:     2000,
		FunctionBatchSize: 5000,
		ClassBatchSize:    2000,
		ModuleBatchSize:   2000,
		EdgeBatchSize:     10000,
	}
}

// GetBatchSizeForLabel returns the appropriate batch size for a given node label
func (bc BatchConfig) GetBatchSizeForLabel(label string) int {
	switch label {
	case "File":
		return bc.FileBatchSize
	case "Function":
		return bc.FunctionBatchSize
	case "Class":
		return bc.ClassBatchSize
	case "Module":
		return bc.ModuleBatchSize
	default:
		return 500 // Default for unknown types
	}
}
