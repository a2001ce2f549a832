// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/aiclient"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// Investigation bounds.
const (
	MaxInvestigationIterations = 8
	cliRunTimeout              = 10 * time.Second
	maxToolOutput              = 8 * 1024
	maxSearchResults           = 40
)

// forbiddenCommandParts blocks network access and destructive commands
// inside cli_run. The sandbox directory is the only filesystem surface.
var forbiddenCommandParts = []string{
	"curl", "wget", "nc ", "ssh", "scp", "rsync",
	"rm -rf", "mkfs", "dd ", "shutdown", "reboot",
	"git push", "git fetch", "git pull",
	"sudo", "apt ", "yum ", "pip install", "npm install", "go get",
}

const investigateSystemPrompt = `You verify a single suspected code
issue. Use the tools to inspect the repository. When you are certain,
answer with a JSON object {"verdict": "confirmed"|"refuted"|"inconclusive",
"explanation": "..."} and no tool calls. Be economical with tool use.`

// ToolInvocation is one executed tool call in the trace.
type ToolInvocation struct {
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// InvestigationResult is the agent's conclusion for one issue.
type InvestigationResult struct {
	Verdict     string           `json:"verdict"`
	Explanation string           `json:"explanation"`
	Iterations  int              `json:"iterations"`
	Trace       []ToolInvocation `json:"trace,omitempty"`
}

// Investigator runs the tool-calling verification loop inside one
// sandbox directory (the commit's working tree).
type Investigator struct {
	chat       ChatClient
	modelID    string
	sandboxDir string
}

// NewInvestigator creates an investigator bound to a sandbox directory
func NewInvestigator(chat ChatClient, modelID, sandboxDir string) *Investigator {
	return &Investigator{chat: chat, modelID: modelID, sandboxDir: sandboxDir}
}

var investigationTools = []aiclient.ToolSpec{
	{
		Name:        "read_file",
		Description: "Read a file from the repository, optionally a line range.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":       map[string]interface{}{"type": "string"},
				"line_start": map[string]interface{}{"type": "integer"},
				"line_end":   map[string]interface{}{"type": "integer"},
			},
			"required": []string{"path"},
		},
	},
	{
		Name:        "search",
		Description: "Search file contents for a substring, optionally restricted by a path glob.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query":     map[string]interface{}{"type": "string"},
				"path_glob": map[string]interface{}{"type": "string"},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "cli_run",
		Description: "Run a shell command inside the repository sandbox. No network, no destructive commands.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{"type": "string"},
			},
			"required": []string{"command"},
		},
	},
}

// Investigate runs the agent loop for one issue. Exceeding the
// iteration budget yields an inconclusive verdict, never an error.
func (inv *Investigator) Investigate(ctx context.Context, issue MergedIssue) *InvestigationResult {
	issueJSON, _ := json.Marshal(issue)
	messages := []aiclient.Message{
		{Role: "system", Content: investigateSystemPrompt},
		{Role: "user", Content: string(issueJSON)},
	}

	result := &InvestigationResult{Verdict: constant.VerdictInconclusive}
	for iteration := 0; iteration < MaxInvestigationIterations; iteration++ {
		result.Iterations = iteration + 1

		reply, err := inv.chat.ChatWithTools(ctx, inv.modelID, messages, investigationTools)
		if err != nil {
			log.Warnf("aiscan: investigation chat failed: %v", err)
			result.Explanation = "model unavailable during investigation"
			return result
		}
		messages = append(messages, *reply)

		if len(reply.ToolCalls) == 0 {
			verdict, explanation := parseVerdict(reply.Content)
			result.Verdict = verdict
			result.Explanation = explanation
			return result
		}

		for _, call := range reply.ToolCalls {
			invocation := inv.runTool(ctx, call)
			result.Trace = append(result.Trace, invocation)
			messages = append(messages, aiclient.Message{
				Role:       "tool",
				Content:    invocation.Output,
				ToolCallID: call.ID,
			})
		}
	}

	result.Explanation = "iteration budget exhausted"
	return result
}

func parseVerdict(content string) (string, string) {
	raw := aiclient.ExtractJSON(content)
	if raw != "" {
		var parsed struct {
			Verdict     string `json:"verdict"`
			Explanation string `json:"explanation"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			switch parsed.Verdict {
			case constant.VerdictConfirmed, constant.VerdictRefuted, constant.VerdictInconclusive:
				return parsed.Verdict, parsed.Explanation
			}
		}
	}
	return constant.VerdictInconclusive, strings.TrimSpace(content)
}

func (inv *Investigator) runTool(ctx context.Context, call aiclient.ToolCall) ToolInvocation {
	started := time.Now()
	output := inv.dispatchTool(ctx, call.Function.Name, call.Function.Arguments)
	if len(output) > maxToolOutput {
		output = output[:maxToolOutput] + "\n... (truncated)"
	}
	return ToolInvocation{
		Name:       call.Function.Name,
		Arguments:  call.Function.Arguments,
		Output:     output,
		DurationMS: time.Since(started).Milliseconds(),
	}
}

func (inv *Investigator) dispatchTool(ctx context.Context, name, arguments string) string {
	switch name {
	case "read_file":
		var args struct {
			Path      string `json:"path"`
			LineStart int    `json:"line_start"`
			LineEnd   int    `json:"line_end"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "error: bad arguments: " + err.Error()
		}
		return inv.readFile(args.Path, args.LineStart, args.LineEnd)
	case "search":
		var args struct {
			Query    string `json:"query"`
			PathGlob string `json:"path_glob"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "error: bad arguments: " + err.Error()
		}
		return inv.search(args.Query, args.PathGlob)
	case "cli_run":
		var args struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "error: bad arguments: " + err.Error()
		}
		return inv.cliRun(ctx, args.Command)
	default:
		return "error: unknown tool " + name
	}
}

// sandboxPath rejects escapes from the sandbox directory.
func (inv *Investigator) sandboxPath(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("path %q leaves the sandbox", relPath)
	}
	return filepath.Join(inv.sandboxDir, cleaned), nil
}

func (inv *Investigator) readFile(path string, lineStart, lineEnd int) string {
	full, err := inv.sandboxPath(path)
	if err != nil {
		return "error: " + err.Error()
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return "error: " + err.Error()
	}
	if lineStart <= 0 {
		return string(content)
	}
	lines := strings.Split(string(content), "\n")
	if lineStart > len(lines) {
		return "error: line_start beyond end of file"
	}
	if lineEnd <= 0 || lineEnd > len(lines) {
		lineEnd = len(lines)
	}
	return strings.Join(lines[lineStart-1:lineEnd], "\n")
}

func (inv *Investigator) search(query, pathGlob string) string {
	var b strings.Builder
	results := 0
	_ = filepath.WalkDir(inv.sandboxDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || results >= maxSearchResults {
			if results >= maxSearchResults {
				return filepath.SkipAll
			}
			return nil
		}
		rel, err := filepath.Rel(inv.sandboxDir, path)
		if err != nil {
			return nil
		}
		if strings.HasPrefix(rel, ".git/") {
			return nil
		}
		if pathGlob != "" {
			if ok, _ := filepath.Match(pathGlob, filepath.Base(rel)); !ok {
				return nil
			}
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(content), "\n") {
			if strings.Contains(line, query) {
				fmt.Fprintf(&b, "%s:%d: %s\n", rel, i+1, strings.TrimSpace(line))
				results++
				if results >= maxSearchResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if b.Len() == 0 {
		return "no matches"
	}
	return b.String()
}

func (inv *Investigator) cliRun(ctx context.Context, command string) string {
	lowered := strings.ToLower(command)
	for _, part := range forbiddenCommandParts {
		if strings.Contains(lowered, part) {
			return "error: command rejected by sandbox policy"
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cliRunTimeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = inv.sandboxDir
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return "error: command exceeded the wallclock limit"
	}
	if err != nil {
		return fmt.Sprintf("exit error: %v\n%s", err, out)
	}
	return string(out)
}
