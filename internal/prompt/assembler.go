// Package prompt assembles token-budgeted LLM conversations from
// retrieval output. Packing is greedy in a fixed order: system prompt
// and task always go in, then per-file header blocks, then base
// chunks, then neighbor chunks. Each optional piece is added only
// while the running estimate stays within the budget; a piece that
// does not fit is skipped, not a stop signal.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/vector"
)

// DefaultSystemPrompt seeds every assembled conversation unless the
// request overrides it
const DefaultSystemPrompt = "Use only the provided context; propose minimal patches."

const (
	// DefaultMaxTokens applies when a request carries no budget
	DefaultMaxTokens = 8000

	// Header blocks cap their listings so one sprawling file cannot
	// eat the budget
	headerClassCap    = 8
	headerFunctionCap = 12

	// chunkCodeCap bounds the fenced snippet of one evidence message
	chunkCodeCap = 2000
)

// TokenCounter is the slice of the llm gateway used for the final
// remote check. *llm.Client satisfies it; (0, false, nil) means no
// authoritative count is available.
type TokenCounter interface {
	CountTokens(ctx context.Context, messages []models.Message) (int, bool, error)
}

// Request carries one assembly job. Chunks arrive in the retriever's
// rank order and that order is preserved.
type Request struct {
	RepoID         string
	Task           string
	SystemPrompt   string // DefaultSystemPrompt when empty
	Model          string
	MaxTokens      int // DefaultMaxTokens when <= 0
	IncludeHeaders bool
	Chunks         []models.ContextChunk
}

// Assembler packs prompt packages. The vector store feeds per-file
// header blocks and the counter refines the final estimate; both may
// be nil, disabling the corresponding step.
type Assembler struct {
	vectors vector.Store
	counter TokenCounter
	logger  *slog.Logger
}

// New creates an assembler
func New(vectors vector.Store, counter TokenCounter) *Assembler {
	return &Assembler{
		vectors: vectors,
		counter: counter,
		logger:  slog.Default().With("component", "prompt"),
	}
}

// Assemble packs a conversation under the request budget and reports
// the accounting. The system prompt and task are always included, even
// when they alone exceed a tiny budget; everything after them is
// budget-checked before it goes in.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*models.PromptPackage, error) {
	budget := req.MaxTokens
	if budget <= 0 {
		budget = DefaultMaxTokens
	}

	system := req.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	task := "Task: " + req.Task

	messages := []models.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: task},
	}
	estimate := EstimateTokens(system) + EstimateTokens(task)

	if req.IncludeHeaders {
		for _, block := range a.headerBlocks(ctx, req) {
			cost := EstimateTokens(block)
			if estimate+cost > budget {
				continue
			}
			messages = append(messages, models.Message{Role: "user", Content: block})
			estimate += cost
		}
	}

	base, neighbors := partitionChunks(req.Chunks)
	var selected []models.ContextChunk
	for _, c := range append(base, neighbors...) {
		content := formatChunk(c)
		cost := EstimateTokens(content)
		if estimate+cost > budget {
			continue
		}
		messages = append(messages, models.Message{Role: "user", Content: content})
		selected = append(selected, c)
		estimate += cost
	}

	usage := models.TokenUsage{
		Budget:          budget,
		EstimatedTokens: estimate,
		Model:           req.Model,
		ChunksIncluded:  len(selected),
	}
	messages, selected, usage = a.applyRemoteCount(ctx, messages, selected, usage)

	a.logger.Debug("prompt assembled",
		"repo_id", req.RepoID,
		"budget", usage.Budget,
		"estimated_tokens", usage.EstimatedTokens,
		"chunks_included", usage.ChunksIncluded)

	return &models.PromptPackage{
		Messages:       messages,
		SelectedChunks: selected,
		TokenUsage:     usage,
	}, nil
}

// applyRemoteCount swaps the heuristic estimate for the provider's
// exact count when one exists. An exact count above the budget drops
// trailing chunk messages, each discounted at its heuristic cost,
// until the package fits. Counting failures keep the heuristic.
func (a *Assembler) applyRemoteCount(ctx context.Context, messages []models.Message, selected []models.ContextChunk, usage models.TokenUsage) ([]models.Message, []models.ContextChunk, models.TokenUsage) {
	if a.counter == nil {
		return messages, selected, usage
	}

	total, exact, err := a.counter.CountTokens(ctx, messages)
	if err != nil {
		a.logger.Warn("remote token count failed, keeping heuristic estimate", "error", err)
		return messages, selected, usage
	}
	if !exact {
		return messages, selected, usage
	}

	// Chunk messages sit at the tail, so trimming from the end removes
	// evidence in reverse rank order.
	for total > usage.Budget && len(selected) > 0 {
		last := messages[len(messages)-1]
		messages = messages[:len(messages)-1]
		selected = selected[:len(selected)-1]
		total -= EstimateTokens(last.Content)
	}

	usage.EstimatedTokens = total
	usage.ChunksIncluded = len(selected)
	return messages, selected, usage
}

// headerBlocks renders one summary block per distinct chunk file, in
// first-appearance order
func (a *Assembler) headerBlocks(ctx context.Context, req Request) []string {
	if a.vectors == nil {
		return nil
	}

	seen := make(map[string]bool, len(req.Chunks))
	var files []string
	for _, c := range req.Chunks {
		if seen[c.FilePath] {
			continue
		}
		seen[c.FilePath] = true
		files = append(files, c.FilePath)
	}

	var blocks []string
	for _, file := range files {
		entities, err := a.vectors.GetByFile(ctx, req.RepoID, file)
		if err != nil {
			a.logger.Warn("header lookup failed", "file", file, "error", err)
			continue
		}
		if block := renderHeader(file, entities); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// renderHeader lists a file's classes and functions under its path.
// Files with neither render nothing.
func renderHeader(file string, entities []*models.Entity) string {
	var classes, functions []string
	for _, e := range entities {
		switch e.EntityType {
		case models.EntityClass:
			if len(classes) < headerClassCap {
				classes = append(classes, e.Name)
			}
		case models.EntityFunction:
			if len(functions) < headerFunctionCap {
				functions = append(functions, e.Name)
			}
		}
	}
	if len(classes) == 0 && len(functions) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## " + file + "\n")
	if len(classes) > 0 {
		sb.WriteString("Classes: " + strings.Join(classes, ", ") + "\n")
	}
	if len(functions) > 0 {
		sb.WriteString("Functions: " + strings.Join(functions, ", ") + "\n")
	}
	return sb.String()
}

// formatChunk renders one evidence message: location header plus a
// fenced snippet
func formatChunk(c models.ContextChunk) string {
	code := c.Snippet
	if len(code) > chunkCodeCap {
		code = code[:chunkCodeCap]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\nLines: %d-%d\nLanguage: %s\n", c.FilePath, c.StartLine, c.EndLine, c.Language)
	sb.WriteString("```" + c.Language + "\n")
	sb.WriteString(code)
	sb.WriteString("\n```")
	return sb.String()
}

// partitionChunks splits retrieval output into base and neighbor
// chunks, preserving order within each group. Neighbors pack after
// every base chunk has had its chance at the budget.
func partitionChunks(chunks []models.ContextChunk) (base, neighbors []models.ContextChunk) {
	for _, c := range chunks {
		if isNeighbor(c) {
			neighbors = append(neighbors, c)
		} else {
			base = append(base, c)
		}
	}
	return base, neighbors
}

func isNeighbor(c models.ContextChunk) bool {
	for _, r := range c.Reasons {
		if r.Type == "neighbor" {
			return true
		}
	}
	return false
}
