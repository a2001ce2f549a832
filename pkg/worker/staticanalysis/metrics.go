// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package staticanalysis owns the aggregate quality track: per-file
// metrics, the VCI score, and rule-based issues.
package staticanalysis

import (
	"math"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/chunker"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

// Thresholds and score weights. The VCI score is a closed-form function
// of the aggregates below; same inputs always yield the same score.
const (
	ComplexFunctionThreshold  = 15.0
	SevereComplexityThreshold = 25.0
	LongFunctionLines         = 120
	VeryLongFunctionLines     = 300

	complexityBaseline   = 1.0
	complexityWeight     = 5.0
	maxComplexityPenalty = 40.0

	longFunctionWeight     = 120.0
	maxLongFunctionPenalty = 30.0

	complexShareWeight     = 150.0
	maxComplexSharePenalty = 30.0
)

// Metrics is the aggregate blob stored on the analysis row.
type Metrics struct {
	TotalFiles       int            `json:"total_files"`
	TotalLines       int            `json:"total_lines"`
	TotalFunctions   int            `json:"total_functions"`
	LanguageFiles    map[string]int `json:"language_files"`
	AvgComplexity    float64        `json:"avg_complexity"`
	MaxComplexity    float64        `json:"max_complexity"`
	LongFunctions    int            `json:"long_functions"`
	ComplexFunctions int            `json:"complex_functions"`
}

// Aggregate folds chunk-level measurements into repository metrics.
func Aggregate(files []chunker.SourceFile, chunksByFile map[string][]chunker.Chunk) *Metrics {
	m := &Metrics{LanguageFiles: map[string]int{}}
	totalComplexity := 0.0

	for _, file := range files {
		m.TotalFiles++
		if file.Language != "" {
			m.LanguageFiles[file.Language]++
		}
		for _, chunk := range chunksByFile[file.Path] {
			m.TotalLines += chunk.LineCount
			if chunk.ChunkType == constant.ChunkTypeModule {
				continue
			}
			m.TotalFunctions++
			totalComplexity += chunk.CyclomaticComplexity
			if chunk.CyclomaticComplexity > m.MaxComplexity {
				m.MaxComplexity = chunk.CyclomaticComplexity
			}
			if chunk.LineCount > LongFunctionLines {
				m.LongFunctions++
			}
			if chunk.CyclomaticComplexity > ComplexFunctionThreshold {
				m.ComplexFunctions++
			}
		}
	}
	if m.TotalFunctions > 0 {
		m.AvgComplexity = totalComplexity / float64(m.TotalFunctions)
	}
	return m
}

// VCIScore maps the aggregates to [0,100] with two decimals. Higher is
// healthier.
func VCIScore(m *Metrics) float64 {
	score := 100.0

	excess := m.AvgComplexity - complexityBaseline
	if excess > 0 {
		score -= math.Min(excess*complexityWeight, maxComplexityPenalty)
	}
	if m.TotalFunctions > 0 {
		longShare := float64(m.LongFunctions) / float64(m.TotalFunctions)
		score -= math.Min(longShare*longFunctionWeight, maxLongFunctionPenalty)

		complexShare := float64(m.ComplexFunctions) / float64(m.TotalFunctions)
		score -= math.Min(complexShare*complexShareWeight, maxComplexSharePenalty)
	}

	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

// TechDebtLevel buckets a VCI score
func TechDebtLevel(score float64) string {
	switch {
	case score >= 80:
		return constant.TechDebtLow
	case score >= 60:
		return constant.TechDebtMedium
	case score >= 40:
		return constant.TechDebtHigh
	default:
		return constant.TechDebtCritical
	}
}
