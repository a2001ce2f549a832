// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/aiclient"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

const insightSystemPrompt = `You are a software architecture reviewer.
Given a repository architecture summary as JSON, produce actionable
insights. Answer with a JSON array of objects with fields:
insight_type (dead_code|hot_spot|architecture), title, description,
priority (high|medium|low), affected_files (array of paths),
suggested_action. Output only JSON.`

// ChatClient is the model-registry surface insight generation needs.
type ChatClient interface {
	ModelIDs() []string
	Chat(ctx context.Context, modelID string, messages []aiclient.Message) (*aiclient.Message, error)
}

// Insighter turns the cache document into SemanticAIInsight rows,
// via an LLM when one is configured and deterministically otherwise.
type Insighter struct {
	chat ChatClient
}

// NewInsighter creates an insight generator. chat may be nil.
func NewInsighter(chat ChatClient) *Insighter {
	return &Insighter{chat: chat}
}

type insightPayload struct {
	InsightType     string   `json:"insight_type"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        string   `json:"priority"`
	AffectedFiles   []string `json:"affected_files"`
	SuggestedAction string   `json:"suggested_action"`
}

// Generate produces insight rows for the analysis. LLM failures fall
// back to the deterministic summary insights so the track can still
// complete with degraded output.
func (g *Insighter) Generate(ctx context.Context, analysis *model.Analysis,
	doc *CacheDocument, deadCode []*model.DeadCodeFinding) ([]*model.SemanticAIInsight, error) {

	if g.chat != nil {
		if models := g.chat.ModelIDs(); len(models) > 0 {
			insights, err := g.generateLLM(ctx, models[0], analysis, doc)
			if err == nil {
				return insights, nil
			}
			log.Warnf("cluster: LLM insights failed, using summary fallback: %v", err)
		}
	}
	return g.fallback(analysis, doc, deadCode), nil
}

func (g *Insighter) generateLLM(ctx context.Context, modelID string,
	analysis *model.Analysis, doc *CacheDocument) ([]*model.SemanticAIInsight, error) {

	summaryJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	reply, err := g.chat.Chat(ctx, modelID, []aiclient.Message{
		{Role: "system", Content: insightSystemPrompt},
		{Role: "user", Content: string(summaryJSON)},
	})
	if err != nil {
		return nil, err
	}

	raw := aiclient.ExtractJSON(reply.Content)
	if raw == "" {
		return nil, fmt.Errorf("model %s returned no JSON", modelID)
	}
	var payloads []insightPayload
	if err := json.Unmarshal([]byte(raw), &payloads); err != nil {
		return nil, fmt.Errorf("model %s returned malformed insights: %w", modelID, err)
	}

	insights := make([]*model.SemanticAIInsight, 0, len(payloads))
	for _, p := range payloads {
		if p.Title == "" {
			continue
		}
		insights = append(insights, &model.SemanticAIInsight{
			ID:              uuid.NewString(),
			AnalysisID:      analysis.ID,
			InsightType:     normalizeInsightType(p.InsightType),
			Title:           p.Title,
			Description:     p.Description,
			Priority:        normalizePriority(p.Priority),
			AffectedFiles:   model.StringList(p.AffectedFiles),
			SuggestedAction: p.SuggestedAction,
		})
	}
	return insights, nil
}

// fallback derives insights straight from the findings, no model
// involved.
func (g *Insighter) fallback(analysis *model.Analysis, doc *CacheDocument,
	deadCode []*model.DeadCodeFinding) []*model.SemanticAIInsight {

	var insights []*model.SemanticAIInsight
	if len(deadCode) > 0 {
		files := make([]string, 0, len(deadCode))
		seen := map[string]bool{}
		for _, finding := range deadCode {
			if !seen[finding.FilePath] {
				seen[finding.FilePath] = true
				files = append(files, finding.FilePath)
			}
		}
		if len(files) > 10 {
			files = files[:10]
		}
		insights = append(insights, &model.SemanticAIInsight{
			ID:              uuid.NewString(),
			AnalysisID:      analysis.ID,
			InsightType:     constant.InsightTypeDeadCode,
			Title:           fmt.Sprintf("%d dead-code candidates detected", len(deadCode)),
			Description:     "Cluster outliers with no detected references; review and remove if confirmed unused.",
			Priority:        constant.PriorityMedium,
			AffectedFiles:   model.StringList(files),
			SuggestedAction: "Review each candidate and delete confirmed dead code.",
		})
	}
	if doc.Counts["hot_spots"] > 0 {
		insights = append(insights, &model.SemanticAIInsight{
			ID:              uuid.NewString(),
			AnalysisID:      analysis.ID,
			InsightType:     constant.InsightTypeHotSpot,
			Title:           fmt.Sprintf("%d files change unusually often", doc.Counts["hot_spots"]),
			Description:     "Files exceeding the churn threshold concentrate change risk.",
			Priority:        constant.PriorityHigh,
			SuggestedAction: "Add tests around the hottest files before the next refactor.",
		})
	}
	if len(insights) == 0 {
		insights = append(insights, &model.SemanticAIInsight{
			ID:              uuid.NewString(),
			AnalysisID:      analysis.ID,
			InsightType:     constant.InsightTypeArchitecture,
			Title:           "No architectural concerns detected",
			Description:     fmt.Sprintf("Health score %d with no dead code or hot spots found.", doc.HealthScore),
			Priority:        constant.PriorityLow,
			SuggestedAction: "No action needed.",
		})
	}
	return insights
}

func normalizeInsightType(t string) string {
	switch t {
	case constant.InsightTypeDeadCode, constant.InsightTypeHotSpot, constant.InsightTypeArchitecture:
		return t
	default:
		return constant.InsightTypeArchitecture
	}
}

func normalizePriority(p string) string {
	switch p {
	case constant.PriorityHigh, constant.PriorityMedium, constant.PriorityLow:
		return p
	default:
		return constant.PriorityMedium
	}
}
