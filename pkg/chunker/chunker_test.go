// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package chunker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

func TestHeuristicChunkerGo(t *testing.T) {
	source := `package demo

func Alpha() int {
	if true {
		return 1
	}
	return 0
}

func Beta() {}
`
	chunks := NewHeuristicChunker(0).Chunk(SourceFile{Path: "pkg/demo/demo.go", Language: "go"}, []byte(source))
	require.Len(t, chunks, 2)

	assert.Equal(t, "Alpha", chunks[0].Name)
	assert.Equal(t, constant.ChunkTypeFunction, chunks[0].ChunkType)
	assert.Equal(t, "pkg/demo/demo.go:Alpha", chunks[0].QualifiedName)
	assert.Equal(t, 3, chunks[0].LineStart)
	assert.Equal(t, 2, chunks[0].Level)
	assert.Greater(t, chunks[0].CyclomaticComplexity, 1.0)

	assert.Equal(t, "Beta", chunks[1].Name)
}

func TestHeuristicChunkerPythonNesting(t *testing.T) {
	source := `class Repo:
    def save(self):
        pass

def main():
    pass
`
	chunks := NewHeuristicChunker(0).Chunk(SourceFile{Path: "app.py", Language: "python"}, []byte(source))
	require.Len(t, chunks, 3)

	assert.Equal(t, constant.ChunkTypeClass, chunks[0].ChunkType)
	assert.Equal(t, "Repo", chunks[0].Name)

	assert.Equal(t, constant.ChunkTypeMethod, chunks[1].ChunkType)
	assert.Equal(t, "Repo", chunks[1].ParentName)
	assert.Equal(t, "app.py:Repo.save", chunks[1].QualifiedName)

	assert.Equal(t, "main", chunks[2].Name)
	assert.Empty(t, chunks[2].ParentName)
}

func TestHeuristicChunkerFallsBackToModule(t *testing.T) {
	chunks := NewHeuristicChunker(0).Chunk(SourceFile{Path: "config.yaml", Language: "yaml"}, []byte("a: 1\nb: 2\n"))
	require.Len(t, chunks, 1)
	assert.Equal(t, constant.ChunkTypeModule, chunks[0].ChunkType)
	assert.Equal(t, "config.yaml", chunks[0].Name)
}

func TestChunkPointIDIsStable(t *testing.T) {
	chunk := Chunk{QualifiedName: "pkg/a.go:Handle"}
	first := chunk.PointID("repo-1", "abc123")
	second := chunk.PointID("repo-1", "abc123")
	other := chunk.PointID("repo-1", "def456")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 36)
}

func TestScannerSkipsBinariesAndOversized(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{1, 0, 2, 0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.go"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".DS_Store"), []byte("junk"), 0o644))

	files, err := NewScanner(50).Scan(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
	assert.Equal(t, "go", files[0].Language)
}
