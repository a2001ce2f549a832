// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/aiclient"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

const scanSystemPrompt = `You are a code reviewer scanning a repository
digest for problems. Report issues as a JSON array of objects with
fields: dimension (category, optionally "category:subcategory"),
severity (critical|high|medium|low), title, description, file,
line_start, line_end, confidence (0..1), evidence. Report only issues
you can point to in the digest. Output only JSON.`

// ChatClient is the model-registry surface the scan needs.
type ChatClient interface {
	ModelIDs() []string
	Chat(ctx context.Context, modelID string, messages []aiclient.Message) (*aiclient.Message, error)
	ChatWithTools(ctx context.Context, modelID string, messages []aiclient.Message, tools []aiclient.ToolSpec) (*aiclient.Message, error)
}

// ModelResult records one model's contribution to the broad scan.
type ModelResult struct {
	ModelID    string `json:"model_id"`
	IssueCount int    `json:"issue_count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// BroadScan fans the repo view out to every configured model. A model
// that times out or answers garbage contributes nothing; the scan
// itself only fails when no model is configured at all.
func BroadScan(ctx context.Context, chat ChatClient, repoView string,
	onModelDone func(done, total int)) ([]CandidateIssue, []ModelResult) {

	models := chat.ModelIDs()
	results := make([]ModelResult, len(models))
	candidates := make([][]CandidateIssue, len(models))

	var wg sync.WaitGroup
	var doneCount int
	var mu sync.Mutex
	for i, modelID := range models {
		wg.Add(1)
		go func(i int, modelID string) {
			defer wg.Done()
			started := time.Now()
			issues, err := scanOneModel(ctx, chat, modelID, repoView)
			results[i] = ModelResult{
				ModelID:    modelID,
				IssueCount: len(issues),
				DurationMS: time.Since(started).Milliseconds(),
			}
			if err != nil {
				results[i].Error = err.Error()
				log.Warnf("aiscan: model %s contributed nothing: %v", modelID, err)
			}
			candidates[i] = issues

			mu.Lock()
			doneCount++
			done := doneCount
			mu.Unlock()
			if onModelDone != nil {
				onModelDone(done, len(models))
			}
		}(i, modelID)
	}
	wg.Wait()

	var all []CandidateIssue
	for _, list := range candidates {
		all = append(all, list...)
	}
	return all, results
}

func scanOneModel(ctx context.Context, chat ChatClient, modelID, repoView string) ([]CandidateIssue, error) {
	reply, err := chat.Chat(ctx, modelID, []aiclient.Message{
		{Role: "system", Content: scanSystemPrompt},
		{Role: "user", Content: repoView},
	})
	if err != nil {
		return nil, err
	}

	raw := aiclient.ExtractJSON(reply.Content)
	if raw == "" {
		return nil, errMalformedReply(modelID)
	}
	var issues []CandidateIssue
	if err := json.Unmarshal([]byte(raw), &issues); err != nil {
		return nil, errMalformedReply(modelID)
	}

	valid := issues[:0]
	for _, issue := range issues {
		if issue.Title == "" {
			continue
		}
		issue.ModelID = modelID
		issue.Severity = normalizeSeverity(issue.Severity)
		if issue.Confidence < 0 {
			issue.Confidence = 0
		}
		if issue.Confidence > 1 {
			issue.Confidence = 1
		}
		valid = append(valid, issue)
	}
	return valid, nil
}

type malformedReplyError struct{ modelID string }

func (e malformedReplyError) Error() string {
	return "model " + e.modelID + " returned no parseable JSON issues"
}

func errMalformedReply(modelID string) error {
	return malformedReplyError{modelID: modelID}
}

func normalizeSeverity(severity string) string {
	switch severity {
	case "critical", "high", "medium", "low":
		return severity
	default:
		return "medium"
	}
}
