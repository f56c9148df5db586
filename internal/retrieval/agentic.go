package retrieval

import (
	"context"
	"regexp"
	"strings"

	"github.com/voyantlabs/codectx/internal/llm"
	"github.com/voyantlabs/codectx/internal/models"
	"github.com/voyantlabs/codectx/internal/rank"
	"github.com/voyantlabs/codectx/internal/vector"
)

const (
	// maxAgenticIters is the hard iteration cap; requests asking for
	// more are clamped, never honored
	maxAgenticIters = 2

	// maxSuggestionsPerIter bounds how many suggestions one model
	// response may contribute
	maxSuggestionsPerIter = 10

	// pathSuggestionChunks and symbolSuggestionChunks cap chunks pulled
	// per suggestion, by suggestion kind
	pathSuggestionChunks   = 3
	symbolSuggestionChunks = 2
)

const agenticSystemPrompt = "You expand code retrieval results. " +
	"Given a question and the files already retrieved, suggest repository files " +
	"or function names that would add missing context. Reply with plain bullet " +
	"points only, at most 10, no prose."

// bulletRE matches one list item: "-", "*", "•", or "1."-style markers
var bulletRE = regexp.MustCompile(`^\s*(?:[-*•]|\d+\.)\s+(.+)$`)

// expandAgentic asks the model what context is still missing, fetches
// the suggested files and symbols, and re-ranks the merged set. The
// loop stops early when the model suggests nothing new; every exit
// path leaves the selection within the chunk limit.
func (r *Retriever) expandAgentic(ctx context.Context, req models.RetrievalRequest, queryVec []float32, selected []rank.Candidate, state *requestState, weights rank.Weights) []rank.Candidate {
	if r.chat == nil || !r.chat.IsEnabled() {
		state.note("agentic expansion unavailable; no llm provider configured")
		return selected
	}

	iters := req.MaxAgenticIters
	if iters <= 0 || iters > maxAgenticIters {
		iters = maxAgenticIters
	}

	signals := snapshotSignals(state.snap)

	for iter := 0; iter < iters; iter++ {
		response, err := r.chat.Chat(ctx, agenticMessages(req.Query, selected), llm.Options{MaxTokens: 400})
		if err != nil {
			r.logger.Warn("agentic expansion llm call failed", "iteration", iter, "error", err)
			state.note("agentic expansion stopped early; llm unavailable")
			break
		}

		suggestions := parseSuggestions(response)
		if len(suggestions) == 0 {
			break
		}

		known := make(map[string]bool, len(selected))
		for _, c := range selected {
			known[chunkKey(c.Entity)] = true
		}

		var added []rank.Candidate
		for _, s := range suggestions {
			for _, c := range r.fetchSuggestion(ctx, req.RepoID, s, queryVec) {
				key := chunkKey(c.Entity)
				if known[key] {
					continue
				}
				known[key] = true
				added = append(added, c)
			}
		}
		if len(added) == 0 {
			break
		}

		merged := rank.Rank(append(selected, added...), signals, weights)
		merged = dedupBySignature(merged, state.snap.SignatureCounts)
		selected = selectChunks(merged, state.maxChunks)
	}

	return selected
}

// parseSuggestions extracts at most maxSuggestionsPerIter bullet items
// from a model response. Surrounding quotes, backticks, and a trailing
// call operator are stripped so "`login()`" resolves as login.
func parseSuggestions(response string) []string {
	var suggestions []string
	for _, line := range strings.Split(response, "\n") {
		m := bulletRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		s := strings.Trim(strings.TrimSpace(m[1]), "`'\"")
		s = strings.TrimSuffix(s, "()")
		if s == "" {
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) >= maxSuggestionsPerIter {
			break
		}
	}
	return suggestions
}

// looksLikePath reports whether a suggestion names a file rather than
// a symbol
func looksLikePath(s string) bool {
	return strings.Contains(s, "/") && strings.Contains(s, ".")
}

// fetchSuggestion resolves one suggestion into boosted candidates:
// paths pull their best chunks directly, symbols resolve through their
// defining function's file first. Unresolvable suggestions are skipped.
func (r *Retriever) fetchSuggestion(ctx context.Context, repoID, suggestion string, queryVec []float32) []rank.Candidate {
	if looksLikePath(suggestion) {
		return r.chunksFromFile(ctx, repoID, suggestion, queryVec,
			pathSuggestionChunks, "model suggested file "+suggestion)
	}

	entities, err := r.vectors.GetByName(ctx, repoID, suggestion, string(models.EntityFunction))
	if err != nil {
		r.logger.Warn("agentic symbol lookup failed", "symbol", suggestion, "error", err)
		return nil
	}
	if len(entities) == 0 {
		return nil
	}
	return r.chunksFromFile(ctx, repoID, entities[0].FilePath, queryVec,
		symbolSuggestionChunks, "model suggested symbol "+suggestion)
}

// chunksFromFile returns the file's chunks nearest the query, distance
// reduced by the agentic boost and floored at zero
func (r *Retriever) chunksFromFile(ctx context.Context, repoID, filePath string, queryVec []float32, limit int, why string) []rank.Candidate {
	hits, err := r.vectors.Search(ctx, queryVec, limit, vector.Filters{
		RepoID:     repoID,
		FilePath:   filePath,
		EntityType: string(models.EntityChunk),
	})
	if err != nil {
		r.logger.Warn("agentic chunk fetch failed", "file", filePath, "error", err)
		return nil
	}

	candidates := make([]rank.Candidate, 0, len(hits))
	for _, hit := range hits {
		d := hit.Distance
		if d > 1 {
			d = 1
		}
		d -= agenticBoost
		if d < 0 {
			d = 0
		}
		candidates = append(candidates, rank.Candidate{
			Entity:   hit.Entity,
			Distance: d,
			Reasons: []models.Reason{{
				Type:        "agentic",
				Score:       agenticBoost,
				Explanation: why,
			}},
		})
	}
	return candidates
}

// agenticMessages renders the expansion prompt: the question plus the
// distinct files already retrieved
func agenticMessages(query string, selected []rank.Candidate) []models.Message {
	seen := make(map[string]bool, len(selected))
	files := make([]string, 0, len(selected))
	for _, c := range selected {
		f := c.Entity.FilePath
		if seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAlready retrieved:\n")
	for _, f := range files {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	sb.WriteString("\nSuggest additional files or function names worth retrieving.")

	return []models.Message{
		{Role: "system", Content: agenticSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}
