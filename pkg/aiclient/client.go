// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package aiclient is a registry of OpenAI-compatible chat models with
// per-model timeouts and bounded retry.
package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/metrics"
)

const (
	retryCount = 2
	retryDelay = 1 * time.Second
)

// Message is one chat turn.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model's request to run one tool.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// ToolSpec declares one callable tool to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type modelClient struct {
	id   string
	http *resty.Client
}

// Client routes chat requests to configured models
type Client struct {
	models map[string]*modelClient
	order  []string
}

// New builds the model registry from config
func New(models []config.ModelConfig) *Client {
	c := &Client{models: make(map[string]*modelClient)}
	for _, m := range models {
		http := resty.New().
			SetBaseURL(m.Endpoint).
			SetTimeout(m.GetTimeout()).
			SetHeader("Content-Type", "application/json")
		if m.APIKeyEnv != "" {
			if key := os.Getenv(m.APIKeyEnv); key != "" {
				http.SetAuthToken(key)
			}
		}
		c.models[m.ID] = &modelClient{id: m.ID, http: http}
		c.order = append(c.order, m.ID)
	}
	return c
}

// ModelIDs returns the configured model ids in registration order
func (c *Client) ModelIDs() []string {
	return append([]string(nil), c.order...)
}

type chatRequest struct {
	Model    string                   `json:"model"`
	Messages []Message                `json:"messages"`
	Tools    []map[string]interface{} `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends the conversation to one model and returns its reply
func (c *Client) Chat(ctx context.Context, modelID string, messages []Message) (*Message, error) {
	return c.ChatWithTools(ctx, modelID, messages, nil)
}

// ChatWithTools is Chat with a tool declaration list; the reply may
// contain tool calls instead of content
func (c *Client) ChatWithTools(ctx context.Context, modelID string, messages []Message, tools []ToolSpec) (*Message, error) {
	model, ok := c.models[modelID]
	if !ok {
		return nil, errors.NewError().WithCode(errors.RequestParameterInvalid).
			WithMessagef("unknown model %s", modelID)
	}

	req := chatRequest{Model: modelID, Messages: messages}
	for _, tool := range tools {
		req.Tools = append(req.Tools, map[string]interface{}{
			"type":     "function",
			"function": tool,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= retryCount; attempt++ {
		if attempt > 0 {
			log.Warnf("aiclient: model %s attempt %d failed, retrying: %v", modelID, attempt, lastErr)
			select {
			case <-time.After(retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, errors.WrapError(ctx.Err(), "chat request cancelled", errors.CodeUpstreamUnavailable)
			}
		}

		var result chatResponse
		started := time.Now()
		resp, err := model.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post("/v1/chat/completions")
		metrics.ObserveLLMRequest(modelID, err, time.Since(started))
		if err != nil {
			lastErr = err
			continue
		}
		if resp.IsError() {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != 429 {
				break
			}
			continue
		}
		if len(result.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices from model %s", modelID)
			continue
		}
		reply := result.Choices[0].Message
		return &reply, nil
	}
	return nil, errors.WrapError(lastErr, fmt.Sprintf("model %s unavailable", modelID), errors.CodeUpstreamUnavailable)
}

// ExtractJSON pulls the first JSON object or array out of a model
// reply, tolerating markdown fences and prose around it. Returns an
// empty string when no JSON is found.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}
