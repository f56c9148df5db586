package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractJava walks a Java AST. Interfaces and enums count as class
// entities alongside regular classes.
func extractJava(root *sitter.Node, code []byte, result *FileResult) {
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		switch node.Kind() {
		case "method_declaration":
			javaMethod(node, code, result)
		case "constructor_declaration":
			javaConstructor(node, code, result)
		case "class_declaration", "interface_declaration", "enum_declaration":
			javaClass(node, code, result)
		case "import_declaration":
			javaImport(node, code, result)
		}

		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
}

func javaMethod(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	methodName := getNodeText(nameNode, code)
	returnType := getNodeText(node.ChildByFieldName("type"), code)
	params := getNodeText(node.ChildByFieldName("parameters"), code)
	signature := fmt.Sprintf("%s %s%s", returnType, methodName, params)

	if className := javaParentClass(node, code); className != "" {
		methodName = fmt.Sprintf("%s.%s", className, methodName)
	}

	result.Functions = append(result.Functions, entityFromNode(methodName, signature, node, code))
}

func javaConstructor(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	// Constructor names already match their class
	ctorName := getNodeText(nameNode, code)
	params := getNodeText(node.ChildByFieldName("parameters"), code)
	signature := fmt.Sprintf("%s%s", ctorName, params)

	result.Functions = append(result.Functions, entityFromNode(ctorName, signature, node, code))
}

func javaClass(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	className := getNodeText(nameNode, code)

	keyword := "class"
	switch node.Kind() {
	case "interface_declaration":
		keyword = "interface"
	case "enum_declaration":
		keyword = "enum"
	}
	signature := fmt.Sprintf("%s %s", keyword, className)
	if superclass := node.ChildByFieldName("superclass"); superclass != nil {
		signature += " " + getNodeText(superclass, code)
	}

	result.Classes = append(result.Classes, entityFromNode(className, signature, node, code))
}

// javaImport records the imported package path. Java imports are kept
// for context only and never resolved to repository files.
func javaImport(node *sitter.Node, code []byte, result *FileResult) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child.Kind() == "scoped_identifier" || child.Kind() == "identifier" {
			result.Imports = append(result.Imports, Import{
				Module: getNodeText(child, code),
				Line:   int(node.StartPosition().Row),
			})
			return
		}
	}
}

func javaParentClass(node *sitter.Node, code []byte) string {
	current := node.Parent()
	for current != nil {
		switch current.Kind() {
		case "class_declaration", "interface_declaration", "enum_declaration":
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return getNodeText(nameNode, code)
			}
		}
		current = current.Parent()
	}
	return ""
}
