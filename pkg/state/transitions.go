// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package state

import (
	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

// transitionTable maps current status to the set of statuses reachable
// from it. Terminal statuses have no entry.
type transitionTable map[string]map[string]bool

var (
	staticTransitions = transitionTable{
		constant.StatusNone:    {constant.StatusPending: true},
		constant.StatusPending: {constant.StatusRunning: true, constant.StatusFailed: true},
		constant.StatusRunning: {constant.StatusCompleted: true, constant.StatusFailed: true},
		constant.StatusFailed:  {constant.StatusPending: true},
	}

	embeddingsTransitions = transitionTable{
		constant.StatusNone:    {constant.StatusPending: true},
		constant.StatusPending: {constant.StatusRunning: true, constant.StatusFailed: true},
		constant.StatusRunning: {constant.StatusCompleted: true, constant.StatusFailed: true},
		constant.StatusFailed:  {constant.StatusPending: true},
	}

	semanticCacheTransitions = transitionTable{
		constant.StatusNone:    {constant.StatusPending: true},
		constant.StatusPending: {constant.StatusComputing: true, constant.StatusFailed: true},
		constant.StatusComputing: {
			constant.StatusGeneratingInsights: true,
			constant.StatusCompleted:          true,
			constant.StatusFailed:             true,
		},
		constant.StatusGeneratingInsights: {constant.StatusCompleted: true, constant.StatusFailed: true},
		constant.StatusFailed:             {constant.StatusPending: true},
	}

	aiScanTransitions = transitionTable{
		constant.StatusNone:    {constant.StatusPending: true},
		constant.StatusPending: {constant.StatusRunning: true, constant.StatusFailed: true},
		constant.StatusRunning: {constant.StatusCompleted: true, constant.StatusFailed: true},
		constant.StatusFailed:  {constant.StatusPending: true},
	}
)

func tableForTrack(track constant.Track) transitionTable {
	switch track {
	case constant.TrackEmbeddings:
		return embeddingsTransitions
	case constant.TrackSemanticCache:
		return semanticCacheTransitions
	case constant.TrackAIScan:
		return aiScanTransitions
	default:
		return staticTransitions
	}
}

// CanTransition reports whether the track allows moving from the current
// status to the new one. Same-status moves are legal no-ops.
func CanTransition(track constant.Track, from, to string) bool {
	if from == to {
		return true
	}
	return tableForTrack(track)[from][to]
}

// isActiveStatus reports whether a status means work is in progress
func isActiveStatus(status string) bool {
	switch status {
	case constant.StatusRunning, constant.StatusComputing, constant.StatusGeneratingInsights:
		return true
	}
	return false
}
