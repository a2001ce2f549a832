// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/aiclient"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

// scriptedChat replays canned replies per model id; an entry with a
// non-nil err fails the call instead.
type scriptedChat struct {
	models  []string
	replies map[string][]scriptedReply
}

type scriptedReply struct {
	message *aiclient.Message
	err     error
}

func (c *scriptedChat) ModelIDs() []string { return c.models }

func (c *scriptedChat) Chat(ctx context.Context, modelID string, messages []aiclient.Message) (*aiclient.Message, error) {
	return c.ChatWithTools(ctx, modelID, messages, nil)
}

func (c *scriptedChat) ChatWithTools(ctx context.Context, modelID string, messages []aiclient.Message, tools []aiclient.ToolSpec) (*aiclient.Message, error) {
	queue := c.replies[modelID]
	if len(queue) == 0 {
		return nil, errors.New("no scripted reply for " + modelID)
	}
	next := queue[0]
	c.replies[modelID] = queue[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.message, nil
}

func toolCallMessage(name, arguments string) *aiclient.Message {
	call := aiclient.ToolCall{ID: "call-1", Type: "function"}
	call.Function.Name = name
	call.Function.Arguments = arguments
	return &aiclient.Message{Role: "assistant", ToolCalls: []aiclient.ToolCall{call}}
}

func newSandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.go"),
		[]byte("package auth\n\nvar secret = \"hunter2\"\n\nfunc Check() bool { return true }\n"), 0o644))
	return dir
}

func TestBroadScanToleratesFailingModel(t *testing.T) {
	chat := &scriptedChat{
		models: []string{"good", "bad"},
		replies: map[string][]scriptedReply{
			"good": {{message: &aiclient.Message{Role: "assistant", Content: `[
				{"dimension":"security","severity":"high","title":"Hardcoded secret","file":"auth.go","confidence":0.8}
			]`}}},
			"bad": {{err: errors.New("upstream timeout")}},
		},
	}

	var progressCalls int
	candidates, results := BroadScan(context.Background(), chat, "digest", func(done, total int) {
		progressCalls++
		assert.Equal(t, 2, total)
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, "good", candidates[0].ModelID)
	assert.Equal(t, "Hardcoded secret", candidates[0].Title)
	assert.Equal(t, 2, progressCalls)

	require.Len(t, results, 2)
	byModel := map[string]ModelResult{}
	for _, r := range results {
		byModel[r.ModelID] = r
	}
	assert.Empty(t, byModel["good"].Error)
	assert.Equal(t, 1, byModel["good"].IssueCount)
	assert.Contains(t, byModel["bad"].Error, "upstream timeout")
	assert.False(t, allModelsFailed(results))
}

func TestBroadScanMalformedReplyContributesNothing(t *testing.T) {
	chat := &scriptedChat{
		models: []string{"noisy"},
		replies: map[string][]scriptedReply{
			"noisy": {{message: &aiclient.Message{Role: "assistant", Content: "I could not find anything."}}},
		},
	}

	candidates, results := BroadScan(context.Background(), chat, "digest", nil)
	assert.Empty(t, candidates)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "no parseable JSON")
	assert.True(t, allModelsFailed(results))
}

func TestInvestigateRunsToolsThenVerdict(t *testing.T) {
	sandbox := newSandbox(t)
	chat := &scriptedChat{
		models: []string{"m"},
		replies: map[string][]scriptedReply{
			"m": {
				{message: toolCallMessage("read_file", `{"path":"auth.go"}`)},
				{message: &aiclient.Message{Role: "assistant",
					Content: `{"verdict":"confirmed","explanation":"secret is present"}`}},
			},
		},
	}

	inv := NewInvestigator(chat, "m", sandbox)
	result := inv.Investigate(context.Background(), MergedIssue{Title: "Hardcoded secret", File: "auth.go"})

	assert.Equal(t, constant.VerdictConfirmed, result.Verdict)
	assert.Equal(t, "secret is present", result.Explanation)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "read_file", result.Trace[0].Name)
	assert.Contains(t, result.Trace[0].Output, "hunter2")
}

func TestInvestigateIterationBudgetExhausted(t *testing.T) {
	sandbox := newSandbox(t)
	var replies []scriptedReply
	for i := 0; i < MaxInvestigationIterations+2; i++ {
		replies = append(replies, scriptedReply{message: toolCallMessage("search", `{"query":"secret"}`)})
	}
	chat := &scriptedChat{models: []string{"m"}, replies: map[string][]scriptedReply{"m": replies}}

	inv := NewInvestigator(chat, "m", sandbox)
	result := inv.Investigate(context.Background(), MergedIssue{Title: "Hardcoded secret"})

	assert.Equal(t, constant.VerdictInconclusive, result.Verdict)
	assert.Equal(t, "iteration budget exhausted", result.Explanation)
	assert.Equal(t, MaxInvestigationIterations, result.Iterations)
	assert.Len(t, result.Trace, MaxInvestigationIterations)
}

func TestInvestigateChatFailureIsInconclusive(t *testing.T) {
	chat := &scriptedChat{
		models:  []string{"m"},
		replies: map[string][]scriptedReply{"m": {{err: errors.New("connection refused")}}},
	}
	inv := NewInvestigator(chat, "m", t.TempDir())
	result := inv.Investigate(context.Background(), MergedIssue{Title: "anything"})

	assert.Equal(t, constant.VerdictInconclusive, result.Verdict)
	assert.Equal(t, "model unavailable during investigation", result.Explanation)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantVerdict string
	}{
		{"confirmed", `{"verdict":"confirmed","explanation":"yes"}`, constant.VerdictConfirmed},
		{"refuted", `{"verdict":"refuted","explanation":"no"}`, constant.VerdictRefuted},
		{"fenced", "```json\n{\"verdict\":\"inconclusive\",\"explanation\":\"meh\"}\n```", constant.VerdictInconclusive},
		{"unknown value", `{"verdict":"maybe"}`, constant.VerdictInconclusive},
		{"prose only", "I think it is probably fine.", constant.VerdictInconclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, _ := parseVerdict(tt.content)
			assert.Equal(t, tt.wantVerdict, verdict)
		})
	}
}

func TestSandboxPathRejectsEscapes(t *testing.T) {
	inv := NewInvestigator(nil, "m", "/tmp/sandbox")

	_, err := inv.sandboxPath("/etc/passwd")
	assert.Error(t, err)
	_, err = inv.sandboxPath("../escape")
	assert.Error(t, err)
	_, err = inv.sandboxPath("a/../../escape")
	assert.Error(t, err)

	full, err := inv.sandboxPath("pkg/./auth.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/sandbox", "pkg", "auth.go"), full)
}

func TestCliRunRejectsForbiddenCommands(t *testing.T) {
	inv := NewInvestigator(nil, "m", t.TempDir())
	for _, command := range []string{
		"curl https://example.com",
		"rm -rf /",
		"git push origin main",
		"sudo whoami",
		"PIP install requests",
	} {
		out := inv.cliRun(context.Background(), command)
		assert.Equal(t, "error: command rejected by sandbox policy", out, command)
	}
}

func TestCliRunExecutesInSandbox(t *testing.T) {
	sandbox := newSandbox(t)
	inv := NewInvestigator(nil, "m", sandbox)

	out := inv.cliRun(context.Background(), "ls")
	assert.Contains(t, out, "auth.go")
}

func TestSearchFindsMatches(t *testing.T) {
	inv := NewInvestigator(nil, "m", newSandbox(t))

	out := inv.search("hunter2", "")
	assert.Contains(t, out, "auth.go:3:")

	out = inv.search("hunter2", "*.py")
	assert.Equal(t, "no matches", out)
}

func TestReadFileLineRange(t *testing.T) {
	inv := NewInvestigator(nil, "m", newSandbox(t))

	out := inv.readFile("auth.go", 3, 3)
	assert.Equal(t, `var secret = "hunter2"`, strings.TrimSpace(out))

	out = inv.readFile("missing.go", 0, 0)
	assert.Contains(t, out, "error:")
}
