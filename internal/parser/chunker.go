package parser

import (
	"sort"
	"strings"

	"github.com/voyantlabs/codectx/internal/models"
)

const (
	chunkWindow  = 200
	chunkOverlap = 40
)

type lineSpan struct {
	start int
	end   int
}

// BuildChunks produces the chunk set for a parsed file: one ast_region
// chunk per merged entity span, and fixed sliding windows over every
// residual range. The union of emitted ranges covers the whole file.
func BuildChunks(code []byte, totalLines int, functions, classes []Entity) []Chunk {
	if totalLines <= 0 {
		return nil
	}

	lines := splitLines(code, totalLines)
	regions := mergedRegions(functions, classes, totalLines)

	var chunks []Chunk
	cursor := 0
	for _, region := range regions {
		if region.start > cursor {
			chunks = append(chunks, fixedOver(lines, cursor, region.start-1)...)
		}
		chunks = append(chunks, Chunk{
			Kind:      models.ChunkASTRegion,
			StartLine: region.start,
			EndLine:   region.end,
			Code:      joinLines(lines, region.start, region.end),
		})
		cursor = region.end + 1
	}
	if cursor <= totalLines-1 {
		chunks = append(chunks, fixedOver(lines, cursor, totalLines-1)...)
	}

	return chunks
}

// FixedChunks windows the whole range [lo, hi] without any AST input,
// used for files in unsupported languages.
func FixedChunks(code []byte, lo, hi int) []Chunk {
	if hi < lo {
		return nil
	}
	lines := splitLines(code, hi+1)
	return fixedOver(lines, lo, hi)
}

// mergedRegions clamps entity spans to the file, sorts them, and
// merges spans that touch or overlap into single regions.
func mergedRegions(functions, classes []Entity, totalLines int) []lineSpan {
	spans := make([]lineSpan, 0, len(functions)+len(classes))
	for _, entity := range append(append([]Entity{}, functions...), classes...) {
		span := lineSpan{start: entity.StartLine, end: entity.EndLine}
		if span.start < 0 {
			span.start = 0
		}
		if span.end > totalLines-1 {
			span.end = totalLines - 1
		}
		if span.start > span.end {
			continue
		}
		spans = append(spans, span)
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var merged []lineSpan
	for _, span := range spans {
		if len(merged) > 0 && span.start <= merged[len(merged)-1].end+1 {
			if span.end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = span.end
			}
			continue
		}
		merged = append(merged, span)
	}

	return merged
}

// fixedOver emits sliding windows across [lo, hi]
func fixedOver(lines []string, lo, hi int) []Chunk {
	step := chunkWindow - chunkOverlap
	if step < 1 {
		step = 1
	}

	var chunks []Chunk
	for start := lo; start <= hi; start += step {
		end := start + chunkWindow - 1
		if end > hi {
			end = hi
		}
		chunks = append(chunks, Chunk{
			Kind:      models.ChunkFixed,
			StartLine: start,
			EndLine:   end,
			Code:      joinLines(lines, start, end),
		})
		if end == hi {
			break
		}
	}

	return chunks
}

// splitLines splits source into at most totalLines lines, dropping the
// empty tail a trailing newline produces
func splitLines(code []byte, totalLines int) []string {
	lines := strings.Split(string(code), "\n")
	if len(lines) > totalLines {
		lines = lines[:totalLines]
	}
	return lines
}

func joinLines(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}
