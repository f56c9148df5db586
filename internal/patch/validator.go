package patch

import (
	"fmt"
	"path"
	"strings"

	"github.com/voyantlabs/codectx/internal/models"
)

const (
	// maxPatchChars bounds the accepted patch size
	maxPatchChars = 300000

	// maxPatchFiles bounds how many files one patch may touch
	maxPatchFiles = 50
)

// Validate checks a unified diff against the safety rules and returns
// the verdict with the parsed file set. It never touches the
// filesystem; path rules are purely lexical.
func Validate(patch string, restrictTo []string, enforce bool) models.PatchValidation {
	var issues []string

	if strings.TrimSpace(patch) == "" {
		return models.PatchValidation{Issues: []string{"patch is empty"}}
	}
	if len(patch) > maxPatchChars {
		issues = append(issues, fmt.Sprintf("patch exceeds %d characters", maxPatchChars))
	}

	d := Parse(patch)
	if len(d.Files) == 0 {
		issues = append(issues, "patch contains no file headers")
	}
	if len(d.Files) > maxPatchFiles {
		issues = append(issues, fmt.Sprintf("patch touches %d files, limit is %d", len(d.Files), maxPatchFiles))
	}

	for _, f := range d.Files {
		issues = append(issues, pathIssues(f)...)
	}

	if enforce {
		allowed := make(map[string]bool, len(restrictTo))
		for _, f := range restrictTo {
			allowed[path.Clean(f)] = true
		}
		for _, f := range d.Files {
			if !allowed[path.Clean(f)] {
				issues = append(issues, fmt.Sprintf("File not allowed by restriction: %s", f))
			}
		}
	}

	return models.PatchValidation{
		OK:     len(issues) == 0,
		Issues: issues,
		Files:  d.Files,
	}
}

// pathIssues applies the path safety rules to one target. Diff paths
// are always slash-separated.
func pathIssues(f string) []string {
	var issues []string

	if strings.HasPrefix(f, "/") {
		issues = append(issues, fmt.Sprintf("absolute path not allowed: %s", f))
	}
	for _, seg := range strings.Split(f, "/") {
		if seg == ".." {
			issues = append(issues, fmt.Sprintf("path contains '..' segment: %s", f))
			break
		}
	}
	if cleaned := path.Clean(f); cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		issues = append(issues, fmt.Sprintf("path escapes repository root: %s", f))
	}

	return issues
}
