// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package aiscan runs the multi-model issue scan: a deterministic repo
// digest goes to every configured model in parallel, candidate issues
// are merged across models by similarity, and high-severity findings
// get a tool-calling investigation pass.
package aiscan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
)

// Digest size bounds. The repo view must stay deterministic and small
// enough for every configured model's context window.
const (
	ExcerptSize    = 3000
	MaxFileSize    = 64 * 1024
	MaxDigestFiles = 25
	MaxDigestSize  = 120 * 1024
)

// priorityFiles are included in the digest first when present.
var priorityFiles = []string{
	"README.md", "go.mod", "package.json", "requirements.txt",
	"pyproject.toml", "Cargo.toml", "Makefile", "Dockerfile",
	"docker-compose.yml", "config.yaml", "config.yml", ".env.example",
}

// BuildRepoView produces the text digest of a working tree: the file
// listing, then excerpts of priority and entry-point files. Output is
// byte-identical across runs for the same tree.
func BuildRepoView(files []chunker.SourceFile) string {
	sorted := make([]chunker.SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	b.WriteString("# Repository files\n")
	for _, f := range sorted {
		fmt.Fprintf(&b, "%s (%d bytes)\n", f.Path, f.Size)
	}
	b.WriteString("\n# File excerpts\n")

	included := 0
	seen := map[string]bool{}
	appendFile := func(f chunker.SourceFile) {
		if seen[f.Path] || included >= MaxDigestFiles || b.Len() >= MaxDigestSize {
			return
		}
		if f.Size > MaxFileSize {
			return
		}
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return
		}
		excerpt := string(content)
		if len(excerpt) > ExcerptSize {
			excerpt = excerpt[:ExcerptSize] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "\n## %s\n```\n%s\n```\n", f.Path, excerpt)
		seen[f.Path] = true
		included++
	}

	byPath := make(map[string]chunker.SourceFile, len(sorted))
	for _, f := range sorted {
		byPath[f.Path] = f
	}
	for _, name := range priorityFiles {
		if f, ok := byPath[name]; ok {
			appendFile(f)
		}
	}
	for _, f := range sorted {
		if isEntryPoint(f.Path) {
			appendFile(f)
		}
	}
	for _, f := range sorted {
		appendFile(f)
	}
	return b.String()
}

func isEntryPoint(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "main.go", "main.py", "index.js", "index.ts", "app.py", "server.js":
		return true
	}
	return strings.HasPrefix(path, "cmd/") && strings.HasSuffix(path, ".go")
}
