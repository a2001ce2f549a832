// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package gitrepo shells out to the git CLI for clone, commit
// resolution, and history statistics.
package gitrepo

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// ChurnWindow is the history window for change statistics.
const ChurnWindow = 90 * 24 * time.Hour

var commitSHAPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// VCS abstracts the version-control operations the workers need.
type VCS interface {
	// CloneAtCommit produces a working tree of the repository at the
	// given commit under baseDir and returns its path.
	CloneAtCommit(ctx context.Context, repoURL, commitSHA, baseDir string) (string, error)
	// ResolveBranchHead returns the commit a branch currently points at.
	ResolveBranchHead(ctx context.Context, repoURL, branch string) (string, error)
	// ChurnStats computes per-file change statistics over ChurnWindow.
	ChurnStats(ctx context.Context, repoDir string) (map[string]*ChurnStat, error)
}

// ChurnStat is the history summary for one file.
type ChurnStat struct {
	Changes       int
	UniqueAuthors int
	LastModified  time.Time
}

// CoverageAnalyzer reports per-file test coverage when a coverage
// artifact is available. Implementations may return nil when the
// repository carries no coverage data.
type CoverageAnalyzer interface {
	FileCoverage(ctx context.Context, repoDir string) (map[string]float64, error)
}

// CLI implements VCS with the git executable
type CLI struct{}

// NewCLI creates the git CLI adapter
func NewCLI() *CLI {
	return &CLI{}
}

// IsCommitSHA reports whether s is a full 40-char hex commit id
func IsCommitSHA(s string) bool {
	return commitSHAPattern.MatchString(s)
}

// AuthenticatedURL injects an access token into the userinfo of an
// http(s) clone URL. Other schemes pass through unchanged.
func AuthenticatedURL(repoURL, token string) (string, error) {
	if token == "" {
		return repoURL, nil
	}
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", errors.NewError().WithCode(errors.RequestParameterInvalid).
			WithMessagef("invalid repo url %q", repoURL).WithError(err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return repoURL, nil
	}
	parsed.User = url.UserPassword("oauth2", token)
	return parsed.String(), nil
}

func (g *CLI) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.NewError().WithCode(errors.CodeUpstreamUnavailable).
			WithMessagef("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String())).
			WithError(err)
	}
	return stdout.String(), nil
}

// CloneAtCommit clones into a commit-scoped directory and checks out
// the commit. An existing checkout of the same commit is reused.
func (g *CLI) CloneAtCommit(ctx context.Context, repoURL, commitSHA, baseDir string) (string, error) {
	dest := filepath.Join(baseDir, commitSHA)
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		if head, err := g.run(ctx, dest, "rev-parse", "HEAD"); err == nil &&
			strings.TrimSpace(head) == commitSHA {
			log.Debugf("gitrepo: reusing checkout %s", dest)
			return dest, nil
		}
		_ = os.RemoveAll(dest)
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", errors.WrapError(err, "create clone base dir", errors.InternalError)
	}
	if _, err := g.run(ctx, "", "clone", "--no-checkout", repoURL, dest); err != nil {
		return "", err
	}
	if _, err := g.run(ctx, dest, "checkout", "--detach", commitSHA); err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}
	return dest, nil
}

// ResolveBranchHead asks the remote for the branch tip without cloning
func (g *CLI) ResolveBranchHead(ctx context.Context, repoURL, branch string) (string, error) {
	out, err := g.run(ctx, "", "ls-remote", repoURL, "refs/heads/"+branch)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 || !IsCommitSHA(fields[0]) {
		return "", errors.NewError().WithCode(errors.RequestDataNotExisted).
			WithMessagef("branch %s not found", branch)
	}
	return fields[0], nil
}

// ChurnStats parses `git log --since --name-only` into per-file change
// counts, author counts, and last-modified times.
func (g *CLI) ChurnStats(ctx context.Context, repoDir string) (map[string]*ChurnStat, error) {
	since := time.Now().Add(-ChurnWindow).Format("2006-01-02")
	out, err := g.run(ctx, repoDir,
		"log", "--since="+since, "--name-only", "--no-merges",
		"--format=commit%x09%ae%x09%at")
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*ChurnStat)
	authors := make(map[string]map[string]bool)
	var currentAuthor string
	var currentTime time.Time

	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "commit\t") {
			parts := strings.Split(line, "\t")
			if len(parts) == 3 {
				currentAuthor = parts[1]
				var unix int64
				_, _ = fmt.Sscanf(parts[2], "%d", &unix)
				currentTime = time.Unix(unix, 0)
			}
			continue
		}

		stat, ok := stats[line]
		if !ok {
			stat = &ChurnStat{}
			stats[line] = stat
			authors[line] = make(map[string]bool)
		}
		stat.Changes++
		if currentAuthor != "" {
			authors[line][currentAuthor] = true
		}
		if currentTime.After(stat.LastModified) {
			stat.LastModified = currentTime
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapError(err, "parse git log output", errors.InternalError)
	}

	for path, set := range authors {
		stats[path].UniqueAuthors = len(set)
	}
	return stats, nil
}
