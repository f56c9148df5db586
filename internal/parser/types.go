package parser

import "github.com/voyantlabs/codectx/internal/models"

// Entity is a function or class extracted from the AST.
// Lines are 0-based and inclusive.
type Entity struct {
	Name      string
	StartLine int
	EndLine   int
	Code      string
	Signature string
}

// Import records one import statement's raw module text. For Python the
// text keeps leading dots ("..pkg.mod"); for JavaScript it is the quoted
// specifier with quotes stripped.
type Import struct {
	Module string
	Line   int
}

// Chunk is an embeddable slice of a file, either an ast_region merged
// from entity spans or a fixed window over residual lines
type Chunk struct {
	Kind      models.ChunkKind
	StartLine int
	EndLine   int
	Code      string
}

// FileResult contains everything extracted from a single file
type FileResult struct {
	FilePath    string // repo-relative, slash-separated
	Language    string
	Functions   []Entity
	Classes     []Entity
	Imports     []Import
	LinesOfCode int
	Chunks      []Chunk
	Err         error
}

// RepoResult aggregates a repository walk
type RepoResult struct {
	Files []*FileResult
	Stats models.LanguageStats
}
