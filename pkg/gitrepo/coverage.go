// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package gitrepo

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// coverage artifact names probed in the repository root, in order.
var coverageArtifacts = []string{
	"lcov.info",
	"coverage/lcov.info",
	"coverage.out",
	"cover.out",
}

// ArtifactCoverage reads committed coverage artifacts (lcov traces or
// Go cover profiles) from the working tree. Repositories without an
// artifact get a nil map, not an error.
type ArtifactCoverage struct{}

// NewArtifactCoverage creates the artifact-based coverage analyzer
func NewArtifactCoverage() *ArtifactCoverage {
	return &ArtifactCoverage{}
}

// FileCoverage returns per-file line coverage rates in [0,1] keyed by
// repository-relative path.
func (a *ArtifactCoverage) FileCoverage(ctx context.Context, repoDir string) (map[string]float64, error) {
	for _, name := range coverageArtifacts {
		full := filepath.Join(repoDir, name)
		if _, err := os.Stat(full); err != nil {
			continue
		}
		var rates map[string]float64
		var err error
		if strings.HasSuffix(name, "lcov.info") {
			rates, err = parseLcov(full)
		} else {
			rates, err = parseGoCoverProfile(full, repoDir)
		}
		if err != nil {
			log.Warnf("gitrepo: unreadable coverage artifact %s: %v", name, err)
			continue
		}
		if len(rates) > 0 {
			return rates, nil
		}
	}
	return nil, nil
}

// parseLcov reads the SF/LF/LH records of an lcov trace file.
func parseLcov(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rates := make(map[string]float64)
	var currentFile string
	var found, hit int

	flush := func() {
		if currentFile != "" && found > 0 {
			rates[currentFile] = float64(hit) / float64(found)
		}
		currentFile, found, hit = "", 0, 0
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "SF:"):
			flush()
			currentFile = filepath.ToSlash(strings.TrimPrefix(line, "SF:"))
		case strings.HasPrefix(line, "LF:"):
			found, _ = strconv.Atoi(strings.TrimPrefix(line, "LF:"))
		case strings.HasPrefix(line, "LH:"):
			hit, _ = strconv.Atoi(strings.TrimPrefix(line, "LH:"))
		case line == "end_of_record":
			flush()
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rates, nil
}

// parseGoCoverProfile reads a `go test -coverprofile` file. Profile
// paths are module-qualified; they are mapped back to repo-relative
// paths via the module path in go.mod when present.
func parseGoCoverProfile(path, repoDir string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	modulePath := readModulePath(filepath.Join(repoDir, "go.mod"))

	type counts struct{ total, covered int }
	perFile := make(map[string]*counts)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "mode:") {
			continue
		}
		// file.go:start.col,end.col numStatements hitCount
		colon := strings.LastIndex(line, ":")
		if colon < 0 {
			continue
		}
		file := line[:colon]
		fields := strings.Fields(line[colon+1:])
		if len(fields) != 3 {
			continue
		}
		statements, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		hits, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}

		if modulePath != "" {
			file = strings.TrimPrefix(file, modulePath+"/")
		}
		c, ok := perFile[file]
		if !ok {
			c = &counts{}
			perFile[file] = c
		}
		c.total += statements
		if hits > 0 {
			c.covered += statements
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	rates := make(map[string]float64, len(perFile))
	for file, c := range perFile {
		if c.total > 0 {
			rates[file] = float64(c.covered) / float64(c.total)
		}
	}
	return rates, nil
}

func readModulePath(goModPath string) string {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module "))
		}
	}
	return ""
}
