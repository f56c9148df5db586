package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractJavaScript walks a JavaScript or TypeScript AST. Both share
// one extractor since the grammars only differ in type syntax.
func extractJavaScript(root *sitter.Node, code []byte, result *FileResult) {
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		switch node.Kind() {
		case "function_declaration":
			jsFunction(node, code, result)
		case "method_definition":
			jsMethod(node, code, result)
		case "class_declaration":
			jsClass(node, code, result)
		case "interface_declaration":
			jsClass(node, code, result)
		case "lexical_declaration", "variable_declaration":
			jsDeclaredFunctions(node, code, result)
		case "import_statement":
			jsImport(node, code, result)
		}

		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
}

func jsFunction(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous functions are not addressable entities
		return
	}

	funcName := getNodeText(nameNode, code)
	params := getNodeText(node.ChildByFieldName("parameters"), code)
	signature := fmt.Sprintf("function %s%s", funcName, params)

	result.Functions = append(result.Functions, entityFromNode(funcName, signature, node, code))
}

func jsMethod(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	methodName := getNodeText(nameNode, code)
	params := getNodeText(node.ChildByFieldName("parameters"), code)
	signature := fmt.Sprintf("%s%s", methodName, params)

	if className := jsParentClass(node, code); className != "" {
		methodName = fmt.Sprintf("%s.%s", className, methodName)
	}

	result.Functions = append(result.Functions, entityFromNode(methodName, signature, node, code))
}

func jsClass(node *sitter.Node, code []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	className := getNodeText(nameNode, code)

	keyword := "class"
	if node.Kind() == "interface_declaration" {
		keyword = "interface"
	}
	signature := fmt.Sprintf("%s %s", keyword, className)
	if heritage := node.ChildByFieldName("heritage"); heritage != nil {
		signature += " " + getNodeText(heritage, code)
	}

	result.Classes = append(result.Classes, entityFromNode(className, signature, node, code))
}

// jsDeclaredFunctions handles `const f = () => {}` and
// `const g = function() {}`. Declarators whose initializer is not a
// function are ignored, as are anonymous initializers without a
// declarator name.
func jsDeclaredFunctions(node *sitter.Node, code []byte, result *FileResult) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		declarator := node.NamedChild(i)
		if declarator.Kind() != "variable_declarator" {
			continue
		}

		value := declarator.ChildByFieldName("value")
		if value == nil || !isFunctionValue(value.Kind()) {
			continue
		}

		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}

		funcName := getNodeText(nameNode, code)
		params := getNodeText(value.ChildByFieldName("parameters"), code)
		signature := fmt.Sprintf("const %s = %s", funcName, params)

		// The entity spans the whole declaration, not just the
		// initializer
		result.Functions = append(result.Functions, entityFromNode(funcName, signature, node, code))
	}
}

func isFunctionValue(kind string) bool {
	switch kind {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

func jsImport(node *sitter.Node, code []byte, result *FileResult) {
	sourceNode := node.ChildByFieldName("source")
	if sourceNode == nil {
		return
	}

	module := strings.Trim(getNodeText(sourceNode, code), "\"'`")
	if module == "" {
		return
	}

	result.Imports = append(result.Imports, Import{
		Module: module,
		Line:   int(node.StartPosition().Row),
	})
}

func jsParentClass(node *sitter.Node, code []byte) string {
	current := node.Parent()
	for current != nil {
		kind := current.Kind()
		if kind == "class_declaration" || kind == "class" {
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return getNodeText(nameNode, code)
			}
		}
		current = current.Parent()
	}
	return ""
}
