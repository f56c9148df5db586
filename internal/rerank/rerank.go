// Package rerank scores query/document pairs with a cross-encoder
// served by a TEI (Text Embeddings Inference) instance. Reranking is
// optional everywhere: the Noop variant stands in when no endpoint is
// configured, and callers fall back to their original order on failure.
package rerank

import (
	"context"

	"github.com/voyantlabs/codectx/internal/config"
)

// Result is one scored document. Index refers to the input slice.
type Result struct {
	Index int
	Score float64
}

// Reranker reorders documents by relevance to a query
type Reranker interface {
	// Available reports whether reranking is configured
	Available() bool

	// Rerank returns results sorted by score, highest first
	Rerank(ctx context.Context, query string, docs []string) ([]Result, error)

	Close() error
}

// New returns a TEI reranker when an endpoint is configured, otherwise
// the Noop variant.
func New(cfg config.RerankConfig) Reranker {
	if cfg.Endpoint == "" {
		return Noop{}
	}
	return NewTEI(cfg.Endpoint, cfg.Model, cfg.Timeout)
}

// Noop is the disabled reranker
type Noop struct{}

func (Noop) Available() bool { return false }

func (Noop) Rerank(ctx context.Context, query string, docs []string) ([]Result, error) {
	return nil, nil
}

func (Noop) Close() error { return nil }

// pairTextMaxCode caps the code portion of a rerank document. Cross
// encoders truncate around 512 tokens anyway, the head of the snippet
// is what carries the signal.
const pairTextMaxCode = 512

// PairText builds the document string reranked against the query
func PairText(name, filePath, code string) string {
	if len(code) > pairTextMaxCode {
		code = code[:pairTextMaxCode]
	}
	return name + " " + filePath + " " + code
}
