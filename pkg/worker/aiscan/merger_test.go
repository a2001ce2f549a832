// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNearDuplicatesBoostsConfidence(t *testing.T) {
	candidates := []CandidateIssue{
		{
			Dimension:  "security:sql_injection",
			Severity:   "high",
			Title:      "SQL injection in user lookup",
			File:       "api/users.go",
			LineStart:  40,
			LineEnd:    55,
			Confidence: 0.7,
			ModelID:    "model-a",
		},
		{
			Dimension:  "security:sql_injection",
			Severity:   "high",
			Title:      "SQL injection in the user lookup",
			File:       "api/users.go",
			LineStart:  42,
			LineEnd:    55,
			Confidence: 0.65,
			ModelID:    "model-b",
		},
	}

	merged := Merge(candidates)
	require.Len(t, merged, 1)
	issue := merged[0]

	// Consensus pushes confidence above both inputs, capped at 1.
	assert.Greater(t, issue.Confidence, 0.7)
	assert.LessOrEqual(t, issue.Confidence, 1.0)
	assert.ElementsMatch(t, []string{"model-a", "model-b"}, issue.Models)
	// The higher-confidence member supplies the description fields.
	assert.Equal(t, "SQL injection in user lookup", issue.Title)
	assert.Equal(t, "security", issue.Category)
}

func TestMergeKeepsDistinctIssuesApart(t *testing.T) {
	candidates := []CandidateIssue{
		{Dimension: "security", Severity: "high", Title: "Hardcoded credentials", File: "config.go", Confidence: 0.8, ModelID: "a"},
		{Dimension: "performance", Severity: "medium", Title: "N+1 query in listing", File: "repo.go", Confidence: 0.6, ModelID: "b"},
		{Dimension: "maintainability", Severity: "low", Title: "God object in scheduler", File: "sched.go", Confidence: 0.5, ModelID: "c"},
	}

	merged := Merge(candidates)
	assert.Len(t, merged, 3)
	for _, issue := range merged {
		assert.Len(t, issue.Models, 1)
	}
}

func TestMergeRequiresSameFileAndCategory(t *testing.T) {
	a := CandidateIssue{Dimension: "security", Title: "Token leak in logs", File: "log.go", Confidence: 0.8}
	sameTitleOtherFile := a
	sameTitleOtherFile.File = "audit.go"
	sameTitleOtherCategory := a
	sameTitleOtherCategory.Dimension = "performance"

	assert.Equal(t, 0.0, Similarity(a, sameTitleOtherFile))
	assert.Equal(t, 0.0, Similarity(a, sameTitleOtherCategory))
	assert.GreaterOrEqual(t, Similarity(a, a), SimilarityThreshold)
}

func TestMergeConfidenceCap(t *testing.T) {
	var candidates []CandidateIssue
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, CandidateIssue{
			Dimension:  "security",
			Severity:   "critical",
			Title:      "Unsanitized template input",
			File:       "render.go",
			Confidence: 0.95,
			ModelID:    id,
		})
	}
	merged := Merge(candidates)
	require.Len(t, merged, 1)
	assert.Equal(t, 1.0, merged[0].Confidence)
}

func TestMergeOrdersBySeverity(t *testing.T) {
	merged := Merge([]CandidateIssue{
		{Dimension: "style", Severity: "low", Title: "Inconsistent naming", File: "a.go", ModelID: "m"},
		{Dimension: "security", Severity: "critical", Title: "RCE via eval", File: "b.go", ModelID: "m"},
		{Dimension: "perf", Severity: "medium", Title: "Quadratic join", File: "c.go", ModelID: "m"},
	})
	require.Len(t, merged, 3)
	assert.Equal(t, "critical", merged[0].Severity)
	assert.Equal(t, "medium", merged[1].Severity)
	assert.Equal(t, "low", merged[2].Severity)
}

func TestSequenceRatio(t *testing.T) {
	assert.Equal(t, 1.0, sequenceRatio("abc", "abc"))
	assert.Equal(t, 0.0, sequenceRatio("abc", "xyz"))
	assert.Equal(t, 1.0, sequenceRatio("", ""))
	assert.Equal(t, 0.0, sequenceRatio("abc", ""))

	// Near-identical strings score high.
	high := sequenceRatio("sql injection in user lookup", "sql injection in the user lookup")
	assert.Greater(t, high, 0.9)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "sql injection in users", normalizeTitle("SQL-Injection: in `users`!"))
	assert.Equal(t, "a b", normalizeTitle("  A   b  "))
}

func TestLineOverlap(t *testing.T) {
	mk := func(start, end int) CandidateIssue {
		return CandidateIssue{LineStart: start, LineEnd: end}
	}
	assert.Equal(t, 1.0, lineOverlap(mk(0, 0), mk(0, 0)))
	assert.Equal(t, 0.5, lineOverlap(mk(10, 20), mk(0, 0)))
	assert.Equal(t, 1.0, lineOverlap(mk(10, 20), mk(10, 20)))
	assert.Equal(t, 0.0, lineOverlap(mk(10, 20), mk(30, 40)))

	// Partial overlap: [10,20] vs [15,25] shares 6 of 16 lines.
	assert.InDelta(t, 6.0/16.0, lineOverlap(mk(10, 20), mk(15, 25)), 1e-9)
}
