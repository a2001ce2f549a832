// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package aiscan

import (
	"sort"
	"strings"
)

// Merger tuning. Similarity is a weighted sequence ratio; two
// candidates merge only above SimilarityThreshold. Consensus boosts
// confidence by ConsensusBoost per additional agreeing model, capped
// at 1.0.
const (
	SimilarityThreshold = 0.75
	titleWeight         = 0.8
	lineOverlapWeight   = 0.2
	ConsensusBoost      = 0.1
)

// CandidateIssue is one model's raw finding.
type CandidateIssue struct {
	Dimension   string  `json:"dimension"`
	Severity    string  `json:"severity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	File        string  `json:"file"`
	LineStart   int     `json:"line_start,omitempty"`
	LineEnd     int     `json:"line_end,omitempty"`
	Confidence  float64 `json:"confidence"`
	Evidence    string  `json:"evidence,omitempty"`
	ModelID     string  `json:"-"`
}

// MergedIssue is the deduplicated cross-model finding.
type MergedIssue struct {
	Dimension     string               `json:"dimension"`
	Category      string               `json:"category"`
	Severity      string               `json:"severity"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	File          string               `json:"file"`
	LineStart     int                  `json:"line_start,omitempty"`
	LineEnd       int                  `json:"line_end,omitempty"`
	Confidence    float64              `json:"confidence"`
	Evidence      string               `json:"evidence,omitempty"`
	Models        []string             `json:"models"`
	Investigation *InvestigationResult `json:"investigation,omitempty"`
}

// Merge deduplicates candidates across models. Candidates are grouped
// greedily in input order; each group becomes one merged issue whose
// description comes from its highest-confidence member and whose
// confidence is boosted by model consensus.
func Merge(candidates []CandidateIssue) []MergedIssue {
	var groups [][]CandidateIssue
	for _, candidate := range candidates {
		placed := false
		for gi, group := range groups {
			if Similarity(group[0], candidate) >= SimilarityThreshold {
				groups[gi] = append(group, candidate)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []CandidateIssue{candidate})
		}
	}

	merged := make([]MergedIssue, 0, len(groups))
	for _, group := range groups {
		merged = append(merged, mergeGroup(group))
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return severityRank(merged[i].Severity) < severityRank(merged[j].Severity)
	})
	return merged
}

func mergeGroup(group []CandidateIssue) MergedIssue {
	best := group[0]
	models := map[string]bool{}
	for _, c := range group {
		models[c.ModelID] = true
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	modelIDs := make([]string, 0, len(models))
	for id := range models {
		modelIDs = append(modelIDs, id)
	}
	sort.Strings(modelIDs)

	confidence := best.Confidence + ConsensusBoost*float64(len(modelIDs)-1)
	if confidence > 1.0 {
		confidence = 1.0
	}

	return MergedIssue{
		Dimension:   best.Dimension,
		Category:    dimensionCategory(best.Dimension),
		Severity:    best.Severity,
		Title:       best.Title,
		Description: best.Description,
		File:        best.File,
		LineStart:   best.LineStart,
		LineEnd:     best.LineEnd,
		Confidence:  confidence,
		Evidence:    best.Evidence,
		Models:      modelIDs,
	}
}

// Similarity scores two candidates in [0,1]. Different files or
// dimensions never merge.
func Similarity(a, b CandidateIssue) float64 {
	if a.File != b.File || dimensionCategory(a.Dimension) != dimensionCategory(b.Dimension) {
		return 0
	}
	title := sequenceRatio(normalizeTitle(a.Title), normalizeTitle(b.Title))
	return titleWeight*title + lineOverlapWeight*lineOverlap(a, b)
}

// normalizeTitle lowercases and collapses non-alphanumeric runs so
// punctuation variants of the same finding compare equal.
func normalizeTitle(title string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// dimensionCategory keeps the dimension prefix, e.g.
// "security:sql_injection" categorizes as "security".
func dimensionCategory(dimension string) string {
	if idx := strings.Index(dimension, ":"); idx > 0 {
		return dimension[:idx]
	}
	return dimension
}

// lineOverlap is the Jaccard overlap of the two line ranges. Ranges
// absent on both sides count as full overlap; absent on one side only,
// half.
func lineOverlap(a, b CandidateIssue) float64 {
	aHas := a.LineStart > 0
	bHas := b.LineStart > 0
	if !aHas && !bHas {
		return 1
	}
	if aHas != bHas {
		return 0.5
	}
	aEnd := a.LineEnd
	if aEnd < a.LineStart {
		aEnd = a.LineStart
	}
	bEnd := b.LineEnd
	if bEnd < b.LineStart {
		bEnd = b.LineStart
	}

	low := max(a.LineStart, b.LineStart)
	high := min(aEnd, bEnd)
	intersection := high - low + 1
	if intersection <= 0 {
		return 0
	}
	union := max(aEnd, bEnd) - min(a.LineStart, b.LineStart) + 1
	return float64(intersection) / float64(union)
}

// sequenceRatio is the classic similarity ratio 2*M/T where M is the
// total length of the common matching blocks and T the combined length.
func sequenceRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchingBlocks(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingBlocks sums the longest common substring and recurses on the
// remainders on each side of it.
func matchingBlocks(a, b string) int {
	aStart, bStart, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:aStart], b[:bStart])
	total += matchingBlocks(a[aStart+size:], b[bStart+size:])
	return total
}

func longestCommonSubstring(a, b string) (aStart, bStart, size int) {
	// lengths[j] is the common-suffix length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return aStart, bStart, size
}

func severityRank(severity string) int {
	switch severity {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	default:
		return 4
	}
}
