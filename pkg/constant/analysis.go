// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package constant

// Track identifies one of the independently-advancing substates of an
// analysis.
type Track string

const (
	TrackStatic        Track = "static"
	TrackEmbeddings    Track = "embeddings"
	TrackSemanticCache Track = "semantic_cache"
	TrackAIScan        Track = "ai_scan"
)

// Static (legacy aggregate) track statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Shared "not started" status of the embeddings / semantic-cache /
// AI-scan tracks.
const StatusNone = "none"

// Semantic-cache track statuses beyond the shared ones.
const (
	StatusComputing          = "computing"
	StatusGeneratingInsights = "generating_insights"
)

const (
	TriggerScheduled = "scheduled"
	TriggerWebhook   = "webhook"
	TriggerManual    = "manual"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

const (
	IssueStatusOpen    = "open"
	IssueStatusFixed   = "fixed"
	IssueStatusIgnored = "ignored"
	IssueStatusWontFix = "wont_fix"
)

const (
	CacheStatusPending   = "pending"
	CacheStatusUploading = "uploading"
	CacheStatusReady     = "ready"
	CacheStatusFailed    = "failed"
)

const (
	ObjectStatusUploading = "uploading"
	ObjectStatusReady     = "ready"
	ObjectStatusFailed    = "failed"
	ObjectStatusDeleted   = "deleted"
)

const (
	InsightTypeDeadCode     = "dead_code"
	InsightTypeHotSpot      = "hot_spot"
	InsightTypeArchitecture = "architecture"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	ChunkTypeFunction = "function"
	ChunkTypeClass    = "class"
	ChunkTypeMethod   = "method"
	ChunkTypeModule   = "module"
	ChunkTypeBlock    = "block"
)

const (
	VerdictConfirmed    = "confirmed"
	VerdictRefuted      = "refuted"
	VerdictInconclusive = "inconclusive"
)

const (
	TechDebtLow      = "low"
	TechDebtMedium   = "medium"
	TechDebtHigh     = "high"
	TechDebtCritical = "critical"
)

// Failure reasons recorded on the per-track error field.
const (
	ReasonHeartbeatStale = "heartbeat_stale"
	ReasonCancelled      = "cancelled"
)

// HotSpotChangeThreshold: a file is a hot spot iff it changed more than
// this many times in the last 90 days.
const HotSpotChangeThreshold = 10
