// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/constant"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		track constant.Track
		from  string
		to    string
		want  bool
	}{
		{"static none to pending", constant.TrackStatic, constant.StatusNone, constant.StatusPending, true},
		{"static none to running skips pending", constant.TrackStatic, constant.StatusNone, constant.StatusRunning, false},
		{"static pending to running", constant.TrackStatic, constant.StatusPending, constant.StatusRunning, true},
		{"static pending to failed", constant.TrackStatic, constant.StatusPending, constant.StatusFailed, true},
		{"static pending to completed skips running", constant.TrackStatic, constant.StatusPending, constant.StatusCompleted, false},
		{"static running to completed", constant.TrackStatic, constant.StatusRunning, constant.StatusCompleted, true},
		{"static completed is terminal", constant.TrackStatic, constant.StatusCompleted, constant.StatusRunning, false},
		{"static failed retries to pending", constant.TrackStatic, constant.StatusFailed, constant.StatusPending, true},

		{"embeddings none to pending", constant.TrackEmbeddings, constant.StatusNone, constant.StatusPending, true},
		{"embeddings none to running skips pending", constant.TrackEmbeddings, constant.StatusNone, constant.StatusRunning, false},
		{"embeddings running to completed", constant.TrackEmbeddings, constant.StatusRunning, constant.StatusCompleted, true},
		{"embeddings completed is terminal", constant.TrackEmbeddings, constant.StatusCompleted, constant.StatusPending, false},

		{"semantic pending to computing", constant.TrackSemanticCache, constant.StatusPending, constant.StatusComputing, true},
		{"semantic pending to running is foreign", constant.TrackSemanticCache, constant.StatusPending, constant.StatusRunning, false},
		{"semantic computing to generating insights", constant.TrackSemanticCache, constant.StatusComputing, constant.StatusGeneratingInsights, true},
		{"semantic computing straight to completed", constant.TrackSemanticCache, constant.StatusComputing, constant.StatusCompleted, true},
		{"semantic generating insights to completed", constant.TrackSemanticCache, constant.StatusGeneratingInsights, constant.StatusCompleted, true},
		{"semantic generating insights back to computing", constant.TrackSemanticCache, constant.StatusGeneratingInsights, constant.StatusComputing, false},
		{"semantic failed retries to pending", constant.TrackSemanticCache, constant.StatusFailed, constant.StatusPending, true},

		{"ai scan none to pending", constant.TrackAIScan, constant.StatusNone, constant.StatusPending, true},
		{"ai scan running to failed", constant.TrackAIScan, constant.StatusRunning, constant.StatusFailed, true},

		{"same status is a legal no-op", constant.TrackStatic, constant.StatusRunning, constant.StatusRunning, true},
		{"terminal same status is a legal no-op", constant.TrackAIScan, constant.StatusCompleted, constant.StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.track, tt.from, tt.to))
		})
	}
}

func TestIsActiveStatus(t *testing.T) {
	assert.True(t, isActiveStatus(constant.StatusRunning))
	assert.True(t, isActiveStatus(constant.StatusComputing))
	assert.True(t, isActiveStatus(constant.StatusGeneratingInsights))
	assert.False(t, isActiveStatus(constant.StatusPending))
	assert.False(t, isActiveStatus(constant.StatusNone))
	assert.False(t, isActiveStatus(constant.StatusCompleted))
	assert.False(t, isActiveStatus(constant.StatusFailed))
}
