// Package parser turns source files into extracted entities and
// embeddable chunks using tree-sitter. Python, JavaScript/TypeScript,
// and Java get full AST extraction; every other language falls back to
// fixed-window chunking.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Import the language bindings explicitly to ensure proper linking
var _ = tree_sitter_typescript.LanguageTypescript
var _ = tree_sitter_python.Language

// LanguageParser wraps tree-sitter parser with language-specific grammar
// IMPORTANT: Always call Close() to prevent memory leaks (CGO requirement)
type LanguageParser struct {
	parser   *sitter.Parser
	language *sitter.Language
	grammar  string
}

// NewLanguageParser creates a parser for the specified grammar.
// Supported grammars: javascript, typescript, tsx, python, java.
func NewLanguageParser(grammar string) (*LanguageParser, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}

	var language *sitter.Language
	switch grammar {
	case "javascript":
		language = sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "tsx":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	case "python":
		language = sitter.NewLanguage(tree_sitter_python.Language())
	case "java":
		language = sitter.NewLanguage(tree_sitter_java.Language())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported grammar: %s", grammar)
	}

	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", grammar, err)
	}

	return &LanguageParser{
		parser:   parser,
		language: language,
		grammar:  grammar,
	}, nil
}

// Close releases parser resources (REQUIRED - CGO memory management)
func (lp *LanguageParser) Close() {
	if lp.parser != nil {
		lp.parser.Close()
	}
}

// Parse parses source code and returns the syntax tree
// Caller must call tree.Close() when done
func (lp *LanguageParser) Parse(code []byte) (*sitter.Tree, error) {
	tree := lp.parser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code")
	}
	return tree, nil
}

// DetectLanguage returns the language tag for a file path, or "" when
// the file has no AST support. TypeScript files carry the javascript
// tag; the tag names the ecosystem, the grammar is picked separately.
func DetectLanguage(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".py", ".pyi", ".pyw":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts":
		return "javascript"
	case ".java":
		return "java"
	}
	return ""
}

// grammarFor maps a file path to the tree-sitter grammar that parses it
func grammarFor(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".py", ".pyi", ".pyw":
		return "python"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".java":
		return "java"
	}
	return ""
}

// ParseFile parses one file and extracts entities, imports, and chunks.
// absPath is read from disk; relPath is recorded in the result. An
// unsupported language yields a result with empty entity lists and no
// error. Read or parse failures are recorded on the result, not
// returned, so a repository walk survives individual bad files.
func ParseFile(absPath, relPath string) *FileResult {
	result := &FileResult{
		FilePath: filepath.ToSlash(relPath),
		Language: DetectLanguage(relPath),
	}

	code, err := os.ReadFile(absPath)
	if err != nil {
		result.Err = fmt.Errorf("failed to read file: %w", err)
		return result
	}

	result.LinesOfCode = countLines(code)

	grammar := grammarFor(relPath)
	if grammar == "" {
		// No AST support: the whole file is fixed windows
		result.Chunks = FixedChunks(code, 0, result.LinesOfCode-1)
		return result
	}

	lp, err := NewLanguageParser(grammar)
	if err != nil {
		result.Err = fmt.Errorf("failed to create parser: %w", err)
		return result
	}
	defer lp.Close()

	tree, err := lp.Parse(code)
	if err != nil {
		result.Err = fmt.Errorf("failed to parse: %w", err)
		return result
	}
	defer tree.Close()

	root := tree.RootNode()

	switch grammar {
	case "python":
		extractPython(root, code, result)
	case "javascript", "typescript", "tsx":
		extractJavaScript(root, code, result)
	case "java":
		extractJava(root, code, result)
	}

	result.Chunks = BuildChunks(code, result.LinesOfCode, result.Functions, result.Classes)

	return result
}

// getNodeText extracts text from a node using byte offsets
func getNodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}

// entityFromNode builds an Entity spanning the node, 0-based lines
func entityFromNode(name, signature string, node *sitter.Node, code []byte) Entity {
	return Entity{
		Name:      name,
		StartLine: int(node.StartPosition().Row),
		EndLine:   int(node.EndPosition().Row),
		Code:      getNodeText(node, code),
		Signature: signature,
	}
}

// countLines counts lines the way editors do: a trailing newline does
// not start a new line
func countLines(code []byte) int {
	if len(code) == 0 {
		return 0
	}
	n := strings.Count(string(code), "\n")
	if code[len(code)-1] != '\n' {
		n++
	}
	return n
}
