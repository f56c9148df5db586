package rank

import (
	"sort"
	"strings"
	"unicode"
)

// lexicalCodeWindow bounds how much of a snippet lexical matching
// scans. Matches deep inside a large chunk say little about relevance.
const lexicalCodeWindow = 4000

// HybridRerank blends semantic similarity with lexical term overlap
// and returns the candidates sorted by the blended score, highest
// first. Alpha is the lexical share and is clamped to [0,1]; the
// default configuration uses 0.2. The sort is stable.
func HybridRerank(candidates []Candidate, query string, alpha float64) []Candidate {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	terms := queryTerms(query)

	reranked := make([]Candidate, len(candidates))
	copy(reranked, candidates)

	for i := range reranked {
		lexical := lexicalScore(reranked[i], terms)
		reranked[i].Hybrid = (1-alpha)*reranked[i].Semantic() + alpha*lexical
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Hybrid > reranked[j].Hybrid
	})

	return reranked
}

// queryTerms lowercases the query and keeps unique identifier-like
// terms longer than two characters. Short terms match everywhere and
// only add noise.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// lexicalScore is the fraction of query terms found in the candidate's
// name, path, and snippet head.
func lexicalScore(c Candidate, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	code := c.Entity.Code
	if len(code) > lexicalCodeWindow {
		code = code[:lexicalCodeWindow]
	}
	doc := strings.ToLower(c.Entity.Name + " " + c.Entity.FilePath + " " + code)

	hits := 0
	for _, term := range terms {
		if strings.Contains(doc, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
