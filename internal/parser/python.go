package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractPython walks a Python AST collecting functions, classes, and
// imports
func extractPython(root *sitter.Node, code []byte, result *FileResult) {
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		switch node.Kind() {
		case "function_definition":
			pythonFunction(node, code, result)
		case "class_definition":
			pythonClass(node, code, result)
		case "import_statement":
			pythonImport(node, code, result)
		case "import_from_statement":
			pythonFromImport(node, code, result)
		}

		// Recurse to children
		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
}

// pythonFunction extracts a function or method definition
func pythonFunction(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	funcName := getNodeText(nameNode, code)
	params := getNodeText(node.ChildByFieldName("parameters"), code)

	signature := fmt.Sprintf("def %s%s", funcName, params)
	if returnType := node.ChildByFieldName("return_type"); returnType != nil {
		signature += " -> " + getNodeText(returnType, code)
	}

	// Methods carry their class name
	if className := pythonParentClass(node, code); className != "" {
		funcName = fmt.Sprintf("%s.%s", className, funcName)
	}

	result.Functions = append(result.Functions, entityFromNode(funcName, signature, node, code))
}

// pythonClass extracts a class definition
func pythonClass(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	className := getNodeText(nameNode, code)

	signature := fmt.Sprintf("class %s", className)
	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		signature = fmt.Sprintf("class %s%s", className, getNodeText(superclasses, code))
	}

	result.Classes = append(result.Classes, entityFromNode(className, signature, node, code))
}

// pythonImport handles `import a.b.c` and `import a.b.c as x`, one
// entry per imported module
func pythonImport(node *sitter.Node, code []byte, result *FileResult) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			result.Imports = append(result.Imports, Import{
				Module: getNodeText(child, code),
				Line:   int(node.StartPosition().Row),
			})
		case "aliased_import":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				result.Imports = append(result.Imports, Import{
					Module: getNodeText(nameNode, code),
					Line:   int(node.StartPosition().Row),
				})
			}
		}
	}
}

// pythonFromImport handles `from x.y import z`. The module text keeps
// leading dots so relative imports resolve against the importing file.
func pythonFromImport(node *sitter.Node, code []byte, result *FileResult) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	result.Imports = append(result.Imports, Import{
		Module: getNodeText(moduleNode, code),
		Line:   int(node.StartPosition().Row),
	})
}

// pythonParentClass finds the containing class name for methods
func pythonParentClass(node *sitter.Node, code []byte) string {
	current := node.Parent()
	for current != nil {
		if current.Kind() == "class_definition" {
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return getNodeText(nameNode, code)
			}
		}
		current = current.Parent()
	}
	return ""
}
