package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const defaultTimeout = 30 * time.Second

// TEI calls the /rerank endpoint of a TEI server
type TEI struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// NewTEI creates a TEI reranker client. The model name is informational
// since a TEI instance serves exactly one model.
func NewTEI(endpoint, model string, timeout time.Duration) *TEI {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TEI{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		logger:   slog.Default().With("component", "rerank"),
	}
}

func (t *TEI) Available() bool { return true }

type rerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate,omitempty"`
}

type rerankResponse struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank posts the query/document pairs and returns scores sorted
// highest first. Documents longer than the model window are truncated
// server side.
func (t *TEI) Rerank(ctx context.Context, query string, docs []string) ([]Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Query:    query,
		Texts:    docs,
		Truncate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed (is TEI running at %s?): %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var scored []rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&scored); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = Result{Index: s.Index, Score: s.Score}
	}

	// TEI usually returns sorted output, enforce it anyway
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	t.logger.Debug("reranked documents", "query_length", len(query), "documents", len(docs))
	return results, nil
}

func (t *TEI) Close() error {
	// HTTP client needs no cleanup
	return nil
}
