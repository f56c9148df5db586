// Package patch parses, validates, and applies LLM-generated unified
// diffs. Application runs through an isolated git worktree so a bad
// patch never touches the repository's primary checkout.
package patch

import (
	"bufio"
	"regexp"
	"strings"
)

// hunkHeader matches the start of a unified-diff hunk:
// @@ -oldStart,oldLen +newStart,newLen @@
var hunkHeader = regexp.MustCompile(`^@@ -\d+(,\d+)? \+\d+(,\d+)? @@`)

// Diff is the parsed skeleton of a unified diff: the destination files
// and the hunk count. Content lines are left to git itself.
type Diff struct {
	Files []string
	Hunks int
}

// Parse extracts destination file paths from +++ headers and counts
// hunks. Paths are reported in first-appearance order without
// duplicates; /dev/null targets (deletions) are skipped.
func Parse(patch string) Diff {
	var d Diff
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(patch))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if hunkHeader.MatchString(line) {
			d.Hunks++
			continue
		}

		if !strings.HasPrefix(line, "+++ ") {
			continue
		}
		target := parseTarget(line[4:])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		d.Files = append(d.Files, target)
	}

	return d
}

// parseTarget normalizes one +++ header value. GNU diff appends a
// tab-separated timestamp; git prefixes targets with b/.
func parseTarget(raw string) string {
	if i := strings.IndexByte(raw, '\t'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"`)
	if raw == "/dev/null" {
		return ""
	}
	raw = strings.TrimPrefix(raw, "b/")
	return raw
}
