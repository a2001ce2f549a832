// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
)

func viewFixture(t *testing.T) []chunker.SourceFile {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) chunker.SourceFile {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		return chunker.SourceFile{Path: name, AbsPath: full, Size: int64(len(content))}
	}
	return []chunker.SourceFile{
		write("pkg/service.go", "package pkg\n\nfunc Serve() {}\n"),
		write("README.md", "# Demo\nA test repository.\n"),
		write("main.go", "package main\n\nfunc main() {}\n"),
	}
}

func TestBuildRepoViewDeterministic(t *testing.T) {
	files := viewFixture(t)
	first := BuildRepoView(files)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, BuildRepoView(files))
	}

	// Input order must not matter.
	reversed := []chunker.SourceFile{files[2], files[0], files[1]}
	assert.Equal(t, first, BuildRepoView(reversed))
}

func TestBuildRepoViewContents(t *testing.T) {
	view := BuildRepoView(viewFixture(t))

	// Listing covers every file; priority files come before the rest.
	assert.Contains(t, view, "README.md")
	assert.Contains(t, view, "pkg/service.go")
	assert.Less(t, strings.Index(view, "## README.md"), strings.Index(view, "## main.go"))
	assert.Contains(t, view, "func Serve()")
}

func TestBuildRepoViewTruncatesLargeFiles(t *testing.T) {
	dir := t.TempDir()
	big := strings.Repeat("x", ExcerptSize+500)
	full := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(full, []byte(big), 0o644))

	view := BuildRepoView([]chunker.SourceFile{
		{Path: "main.go", AbsPath: full, Size: int64(len(big))},
	})
	assert.Contains(t, view, "... (truncated)")
	assert.Less(t, len(view), len(big))
}
