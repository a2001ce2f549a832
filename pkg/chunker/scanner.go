// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package chunker splits a working tree into embeddable code symbols.
package chunker

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// skipDirs are directory names never worth scanning.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

var skipFiles = map[string]bool{
	".DS_Store": true,
}

// SourceFile is one scannable file, path relative to the repo root.
type SourceFile struct {
	Path     string
	AbsPath  string
	Size     int64
	Language string
}

// Scanner walks a repository working tree
type Scanner struct {
	maxFileSize int64
}

// NewScanner creates a scanner that skips files above maxFileSize bytes
func NewScanner(maxFileSize int64) *Scanner {
	return &Scanner{maxFileSize: maxFileSize}
}

// Scan lists the source files under root, skipping VCS metadata,
// binaries, and oversized files
func (s *Scanner) Scan(root string) ([]SourceFile, error) {
	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if skipFiles[name] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
			log.Debugf("chunker: skipping oversized file %s (%d bytes)", path, info.Size())
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if isBinary(path) {
			return nil
		}

		files = append(files, SourceFile{
			Path:     rel,
			AbsPath:  path,
			Size:     info.Size(),
			Language: DetectLanguage(rel),
		})
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, "scan repository tree", errors.InternalError)
	}
	return files, nil
}

// isBinary sniffs the first bytes for a NUL, the same cheap test git
// uses
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 8000)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// DetectLanguage maps a file extension to a language tag, empty when
// unknown
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	case ".sh":
		return "shell"
	case ".sql":
		return "sql"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	case ".md":
		return "markdown"
	default:
		return ""
	}
}
