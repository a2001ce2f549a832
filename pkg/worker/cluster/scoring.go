// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package cluster

import "math"

// Scoring weights. The formulas are closed-form: same inputs, same
// score, monotone in each input, clamped to [0,100]. The exact
// coefficients are local policy; the property tests pin the shape.
const (
	impactLineCap    = 200.0
	impactLineWeight = 40.0

	impactAgeCapDays = 365.0
	impactAgeWeight  = 30.0

	impactCentralityWeight = 30.0

	riskChurnCap    = 30.0
	riskChurnWeight = 50.0

	riskCoverageWeight  = 30.0
	riskCoverageNeutral = 15.0

	riskAuthorsCap    = 8.0
	riskAuthorsWeight = 20.0
)

// ImpactScore rates a dead-code finding. Bigger, older, and more
// central code costs more to carry.
func ImpactScore(lineCount, ageDays int, centrality float64) int {
	score := math.Min(float64(lineCount), impactLineCap) / impactLineCap * impactLineWeight
	score += math.Min(float64(ageDays), impactAgeCapDays) / impactAgeCapDays * impactAgeWeight
	score += clamp01(centrality) * impactCentralityWeight
	return clampScore(score)
}

// RiskScore rates a hot-spot file. High churn, low coverage, and many
// cooks raise the risk. A nil coverage contributes a neutral half
// weight rather than counting as either extreme.
func RiskScore(changes90d int, coverageRate *float64, uniqueAuthors int) int {
	score := math.Min(float64(changes90d), riskChurnCap) / riskChurnCap * riskChurnWeight
	if coverageRate != nil {
		score += (1 - clamp01(*coverageRate)) * riskCoverageWeight
	} else {
		score += riskCoverageNeutral
	}
	score += math.Min(float64(uniqueAuthors), riskAuthorsCap) / riskAuthorsCap * riskAuthorsWeight
	return clampScore(score)
}

// HealthScore condenses the architecture findings to [0,100].
func HealthScore(totalPoints, outliers, deadCode, hotSpots int) int {
	score := 100.0
	score -= math.Min(float64(deadCode)*2, 40)
	score -= math.Min(float64(hotSpots)*3, 30)
	if totalPoints > 0 {
		outlierShare := float64(outliers) / float64(totalPoints)
		score -= math.Min(outlierShare*60, 30)
	}
	return clampScore(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
