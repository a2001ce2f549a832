// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package embedding calls an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

const (
	maxRetries     = 3
	baseRetryDelay = 2 * time.Second
)

// Client requests embeddings in bounded batches with retry
type Client struct {
	http      *resty.Client
	model     string
	batchSize int
}

// NewClient creates an embedding client from config. The API key is
// read from the configured environment variable.
func NewClient(cfg *config.EmbeddingConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.GetTimeout()).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			http.SetAuthToken(key)
		}
	}
	return &Client{
		http:      http,
		model:     cfg.Model,
		batchSize: cfg.GetBatchSize(),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, preserving order. Batches
// retry with exponential backoff; exhausted retries surface as
// UpstreamUnavailable.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.EmbedWithProgress(ctx, texts, nil)
}

// EmbedWithProgress is Embed with a per-batch completion callback,
// called with (done, total) input counts.
func (c *Client) EmbedWithProgress(ctx context.Context, texts []string, onBatch func(done, total int)) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
		if onBatch != nil {
			onBatch(end, len(texts))
		}
	}
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<(attempt-1))
			log.Warnf("embedding: batch attempt %d failed, retrying in %v: %v", attempt, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, errors.WrapError(ctx.Err(), "embedding request cancelled", errors.CodeUpstreamUnavailable)
			}
		}

		var result embeddingResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(embeddingRequest{Model: c.model, Input: batch}).
			SetResult(&result).
			Post("/v1/embeddings")
		if err != nil {
			lastErr = err
			continue
		}
		if resp.IsError() {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
			// Client errors other than rate limiting will not improve
			// on retry.
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != 429 {
				break
			}
			continue
		}
		if len(result.Data) != len(batch) {
			lastErr = fmt.Errorf("got %d embeddings for %d inputs", len(result.Data), len(batch))
			continue
		}

		vectors := make([][]float32, len(batch))
		for _, item := range result.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, errors.NewError().WithCode(errors.CodeUpstreamUnavailable).
					WithMessagef("embedding index %d out of range", item.Index)
			}
			vectors[item.Index] = item.Embedding
		}
		return vectors, nil
	}
	return nil, errors.WrapError(lastErr, "embedding provider unavailable", errors.CodeUpstreamUnavailable)
}
