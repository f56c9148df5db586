package parser

import (
	"path"
	"strings"
)

// ResolveImports maps each parsed file to the repo-relative paths its
// imports resolve to. Targets that do not correspond to a parsed file
// are dropped, so the result only references real nodes.
func ResolveImports(files []*FileResult) map[string][]string {
	known := make(map[string]bool, len(files))
	for _, file := range files {
		known[file.FilePath] = true
	}

	resolved := make(map[string][]string)
	for _, file := range files {
		if file.Err != nil {
			continue
		}

		seen := make(map[string]bool)
		var targets []string
		for _, imp := range file.Imports {
			var target string
			var ok bool
			switch file.Language {
			case "python":
				target, ok = ResolvePythonImport(imp.Module, file.FilePath)
			case "javascript":
				target, ok = ResolveJSImport(imp.Module, file.FilePath)
			default:
				// Java imports name packages, not files
				continue
			}
			if !ok || !known[target] || seen[target] {
				continue
			}
			seen[target] = true
			targets = append(targets, target)
		}

		if len(targets) > 0 {
			resolved[file.FilePath] = targets
		}
	}

	return resolved
}

// ResolvePythonImport maps a dotted module to a candidate repo path.
// `a.b.c` becomes `a/b/c.py`. Leading dots anchor the module to the
// importing file's directory, one extra dot per parent level.
func ResolvePythonImport(module, fromFile string) (string, bool) {
	if module == "" {
		return "", false
	}

	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	rest := module[dots:]

	if dots == 0 {
		return strings.ReplaceAll(rest, ".", "/") + ".py", true
	}

	if rest == "" {
		// `from . import x` names a package, not a file
		return "", false
	}

	base := path.Dir(fromFile)
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}

	target := path.Join(base, strings.ReplaceAll(rest, ".", "/")) + ".py"
	return target, true
}

// ResolveJSImport maps a relative import specifier to a candidate repo
// path. Bare specifiers name packages and are discarded.
func ResolveJSImport(spec, fromFile string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}

	target := path.Join(path.Dir(fromFile), spec)
	if path.Ext(target) == "" {
		target += ".js"
	}
	return target, true
}
