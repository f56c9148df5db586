package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/codectx/internal/models"
)

func writeFixture(t *testing.T, name, content string) (absPath, relPath string) {
	t.Helper()
	dir := t.TempDir()
	absPath = filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(absPath, []byte(content), 0o644))
	return absPath, name
}

func entityNames(entities []Entity) []string {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names
}

func TestParseFilePython(t *testing.T) {
	code := `import os
from utils.helpers import format_name

def greet(name):
    return "Hello " + name

class Greeter:
    def __init__(self, prefix):
        self.prefix = prefix

    def greet(self, name):
        return self.prefix + name
`
	abs, rel := writeFixture(t, "greeter.py", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Equal(t, "python", result.Language)
	assert.Equal(t, 12, result.LinesOfCode)
	assert.Equal(t, []string{"greet", "Greeter.__init__", "Greeter.greet"}, entityNames(result.Functions))
	assert.Equal(t, []string{"Greeter"}, entityNames(result.Classes))

	require.Len(t, result.Imports, 2)
	assert.Equal(t, Import{Module: "os", Line: 0}, result.Imports[0])
	assert.Equal(t, Import{Module: "utils.helpers", Line: 1}, result.Imports[1])

	greet := result.Functions[0]
	assert.Equal(t, "def greet(name)", greet.Signature)
	assert.Equal(t, 3, greet.StartLine)
	assert.Equal(t, 4, greet.EndLine)

	greeter := result.Classes[0]
	assert.Equal(t, "class Greeter", greeter.Signature)
	assert.Equal(t, 6, greeter.StartLine)
	assert.Equal(t, 11, greeter.EndLine)
}

func TestParseFilePythonRelativeImport(t *testing.T) {
	code := `from ..core import engine
from . import settings
`
	abs, rel := writeFixture(t, "mod.py", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	require.Len(t, result.Imports, 2)
	assert.Equal(t, "..core", result.Imports[0].Module)
	assert.Equal(t, ".", result.Imports[1].Module)
}

func TestParseFileJavaScript(t *testing.T) {
	code := `import { helper } from "./helper.js";

function main() {
  return helper();
}

const add = (a, b) => a + b;

class Service {
  run() {
    return this.name;
  }
}
`
	abs, rel := writeFixture(t, "app.js", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Equal(t, "javascript", result.Language)
	assert.Equal(t, []string{"main", "add", "Service.run"}, entityNames(result.Functions))
	assert.Equal(t, []string{"Service"}, entityNames(result.Classes))

	require.Len(t, result.Imports, 1)
	assert.Equal(t, Import{Module: "./helper.js", Line: 0}, result.Imports[0])

	add := result.Functions[1]
	assert.Equal(t, 6, add.StartLine)
	assert.Equal(t, 6, add.EndLine)
}

func TestParseFileJavaScriptSkipsAnonymousFunctions(t *testing.T) {
	code := `setTimeout(function() {
  console.log("tick");
}, 100);

const handlers = [() => 1, () => 2];
`
	abs, rel := writeFixture(t, "anon.js", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Empty(t, result.Functions)
}

func TestParseFileTypeScript(t *testing.T) {
	code := `import { Point } from "./geometry";

interface Shape {
  area(): number;
}

export function describe(shape: Shape): string {
  return "area " + shape.area();
}
`
	abs, rel := writeFixture(t, "shapes.ts", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Equal(t, "javascript", result.Language)
	assert.Equal(t, []string{"describe"}, entityNames(result.Functions))
	assert.Equal(t, []string{"Shape"}, entityNames(result.Classes))

	require.Len(t, result.Imports, 1)
	assert.Equal(t, "./geometry", result.Imports[0].Module)
}

func TestParseFileJava(t *testing.T) {
	code := `package com.example;

import java.util.List;

public class Calculator {
    private int total;

    public Calculator(int start) {
        this.total = start;
    }

    public int add(int value) {
        total += value;
        return total;
    }
}
`
	abs, rel := writeFixture(t, "Calculator.java", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Equal(t, "java", result.Language)
	assert.Equal(t, []string{"Calculator", "Calculator.add"}, entityNames(result.Functions))
	assert.Equal(t, []string{"Calculator"}, entityNames(result.Classes))

	require.Len(t, result.Imports, 1)
	assert.Equal(t, Import{Module: "java.util.List", Line: 2}, result.Imports[0])

	class := result.Classes[0]
	assert.Equal(t, 4, class.StartLine)
	assert.Equal(t, 15, class.EndLine)
}

func TestParseFileChunksInterleaveRegionsAndWindows(t *testing.T) {
	code := `import os
from utils.helpers import format_name

def greet(name):
    return "Hello " + name

class Greeter:
    def __init__(self, prefix):
        self.prefix = prefix

    def greet(self, name):
        return self.prefix + name
`
	abs, rel := writeFixture(t, "greeter.py", code)

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	require.Len(t, result.Chunks, 4)
	wantKinds := []models.ChunkKind{
		models.ChunkFixed, models.ChunkASTRegion, models.ChunkFixed, models.ChunkASTRegion,
	}
	wantSpans := [][2]int{{0, 2}, {3, 4}, {5, 5}, {6, 11}}
	for i, chunk := range result.Chunks {
		assert.Equal(t, wantKinds[i], chunk.Kind, "chunk %d kind", i)
		assert.Equal(t, wantSpans[i][0], chunk.StartLine, "chunk %d start", i)
		assert.Equal(t, wantSpans[i][1], chunk.EndLine, "chunk %d end", i)
	}
}

func TestParseFileUnsupportedLanguage(t *testing.T) {
	abs, rel := writeFixture(t, "notes.txt", "alpha\nbeta\n")

	result := ParseFile(abs, rel)
	require.NoError(t, result.Err)

	assert.Equal(t, "", result.Language)
	assert.Equal(t, 2, result.LinesOfCode)
	assert.Empty(t, result.Functions)
	assert.Empty(t, result.Classes)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, models.ChunkFixed, result.Chunks[0].Kind)
	assert.Equal(t, 0, result.Chunks[0].StartLine)
	assert.Equal(t, 1, result.Chunks[0].EndLine)
}

func TestParseFileMissingFile(t *testing.T) {
	result := ParseFile(filepath.Join(t.TempDir(), "missing.py"), "missing.py")

	require.Error(t, result.Err)
	assert.Equal(t, "python", result.Language)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.py", "python"},
		{"types.pyi", "python"},
		{"app.js", "javascript"},
		{"component.jsx", "javascript"},
		{"service.ts", "javascript"},
		{"view.tsx", "javascript"},
		{"module.mjs", "javascript"},
		{"Main.java", "java"},
		{"main.go", ""},
		{"README.md", ""},
		{"Makefile", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.path), tt.path)
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one\n", 1},
		{"one\ntwo", 2},
		{"one\ntwo\n", 2},
		{"\n", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, countLines([]byte(tt.code)), "%q", tt.code)
	}
}
