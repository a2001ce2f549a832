// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package vectorindex adapts a Qdrant collection for code-symbol
// embeddings. Points are owned by (repository_id, commit_sha) and
// survive across analyses of the same commit.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/config"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

const (
	defaultRequestTimeout = 30 * time.Second
	scrollPageSize        = 256
	upsertBatchSize       = 128
)

// indexedFields lists payload fields that get a Qdrant payload index,
// with their field schema.
var indexedFields = map[string]string{
	"repository_id":         "keyword",
	"commit_sha":            "keyword",
	"file_path":             "keyword",
	"language":              "keyword",
	"level":                 "integer",
	"qualified_name":        "keyword",
	"cyclomatic_complexity": "float",
	"line_count":            "integer",
	"cluster_id":            "integer",
}

// Point is one vector with its typed payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}

// Client talks to the Qdrant REST API
type Client struct {
	http       *resty.Client
	collection string
	vectorSize int
}

// NewClient creates a vector index client from config
func NewClient(cfg *config.VectorIndexConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL()).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Content-Type", "application/json")
	return &Client{
		http:       http,
		collection: cfg.GetCollection(),
		vectorSize: cfg.GetVectorSize(),
	}
}

type qdrantEnvelope struct {
	Status interface{} `json:"status"`
	Result interface{} `json:"result"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.WrapError(err, fmt.Sprintf("vector index %s %s", method, path), errors.CodeVectorIndexError)
	}
	if resp.IsError() {
		return errors.NewError().WithCode(errors.CodeVectorIndexError).
			WithMessagef("vector index %s %s: status %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes when
// they do not exist yet. Safe to call on every startup.
func (c *Client) EnsureCollection(ctx context.Context) error {
	var exists struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := c.do(ctx, resty.MethodGet, fmt.Sprintf("/collections/%s/exists", c.collection), nil, &exists); err != nil {
		return err
	}
	if !exists.Result.Exists {
		body := map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     c.vectorSize,
				"distance": "Cosine",
			},
		}
		if err := c.do(ctx, resty.MethodPut, "/collections/"+c.collection, body, nil); err != nil {
			return err
		}
		log.Infof("vectorindex: created collection %s (size=%d, cosine)", c.collection, c.vectorSize)
	}

	for field, schema := range indexedFields {
		body := map[string]interface{}{
			"field_name":   field,
			"field_schema": schema,
		}
		// Re-creating an existing index is a no-op on the server side.
		if err := c.do(ctx, resty.MethodPut, fmt.Sprintf("/collections/%s/index", c.collection), body, nil); err != nil {
			log.Warnf("vectorindex: create payload index %s: %v", field, err)
		}
	}
	return nil
}

// Upsert writes points in batches. Point ids make the write idempotent.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := make([]map[string]interface{}, 0, end-start)
		for _, p := range points[start:end] {
			if err := p.Payload.Validate(); err != nil {
				log.Warnf("vectorindex: skipping point %s: %v", p.ID, err)
				continue
			}
			batch = append(batch, map[string]interface{}{
				"id":      p.ID,
				"vector":  p.Vector,
				"payload": p.Payload,
			})
		}
		if len(batch) == 0 {
			continue
		}
		body := map[string]interface{}{"points": batch}
		if err := c.do(ctx, resty.MethodPut,
			fmt.Sprintf("/collections/%s/points?wait=true", c.collection), body, nil); err != nil {
			return err
		}
	}
	return nil
}

// commitFilter builds the must-clause for one commit, optionally
// restricted to chunk types.
func commitFilter(repositoryID, commitSHA string, chunkTypes []string) map[string]interface{} {
	must := []map[string]interface{}{
		{"key": "repository_id", "match": map[string]interface{}{"value": repositoryID}},
		{"key": "commit_sha", "match": map[string]interface{}{"value": commitSHA}},
	}
	if len(chunkTypes) > 0 {
		must = append(must, map[string]interface{}{
			"key":   "chunk_type",
			"match": map[string]interface{}{"any": chunkTypes},
		})
	}
	return map[string]interface{}{"must": must}
}

type scrollResponse struct {
	Result struct {
		Points []struct {
			ID      interface{}            `json:"id"`
			Vector  []float32              `json:"vector"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
		NextPageOffset interface{} `json:"next_page_offset"`
	} `json:"result"`
}

// ScrollByCommit pages through every point of one commit. Points whose
// payload fails validation are skipped and logged, not fatal.
func (c *Client) ScrollByCommit(ctx context.Context, repositoryID, commitSHA string, chunkTypes []string, withVectors bool) ([]Point, error) {
	var points []Point
	var offset interface{}

	for {
		body := map[string]interface{}{
			"filter":       commitFilter(repositoryID, commitSHA, chunkTypes),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  withVectors,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp scrollResponse
		if err := c.do(ctx, resty.MethodPost,
			fmt.Sprintf("/collections/%s/points/scroll", c.collection), body, &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.Result.Points {
			payload, err := PayloadFromMap(raw.Payload)
			if err != nil {
				log.Warnf("vectorindex: skipping point %v: %v", raw.ID, err)
				continue
			}
			points = append(points, Point{
				ID:      fmt.Sprintf("%v", raw.ID),
				Vector:  raw.Vector,
				Payload: *payload,
			})
		}

		if resp.Result.NextPageOffset == nil {
			return points, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// ScoredPoint is one nearest-neighbor hit.
type ScoredPoint struct {
	Point
	Score float32 `json:"score"`
}

type searchResponse struct {
	Result []struct {
		ID      interface{}            `json:"id"`
		Score   float32                `json:"score"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"result"`
}

// Search returns the nearest points of one commit by cosine similarity
func (c *Client) Search(ctx context.Context, repositoryID, commitSHA string, vector []float32, limit int) ([]ScoredPoint, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"filter":       commitFilter(repositoryID, commitSHA, nil),
		"limit":        limit,
		"with_payload": true,
	}
	var resp searchResponse
	if err := c.do(ctx, resty.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", c.collection), body, &resp); err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, 0, len(resp.Result))
	for _, raw := range resp.Result {
		payload, err := PayloadFromMap(raw.Payload)
		if err != nil {
			log.Warnf("vectorindex: skipping hit %v: %v", raw.ID, err)
			continue
		}
		hits = append(hits, ScoredPoint{
			Point: Point{ID: fmt.Sprintf("%v", raw.ID), Payload: *payload},
			Score: raw.Score,
		})
	}
	return hits, nil
}

// SetClusterIDs writes cluster assignments back as payload-only
// updates, grouped so each cluster is one request
func (c *Client) SetClusterIDs(ctx context.Context, assignments map[string]int) error {
	byCluster := make(map[int][]string)
	for pointID, clusterID := range assignments {
		byCluster[clusterID] = append(byCluster[clusterID], pointID)
	}
	for clusterID, pointIDs := range byCluster {
		body := map[string]interface{}{
			"payload": map[string]interface{}{"cluster_id": clusterID},
			"points":  pointIDs,
		}
		if err := c.do(ctx, resty.MethodPost,
			fmt.Sprintf("/collections/%s/points/payload?wait=true", c.collection), body, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByCommit removes every point of one commit
func (c *Client) DeleteByCommit(ctx context.Context, repositoryID, commitSHA string) error {
	body := map[string]interface{}{
		"filter": commitFilter(repositoryID, commitSHA, nil),
	}
	return c.do(ctx, resty.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection), body, nil)
}
