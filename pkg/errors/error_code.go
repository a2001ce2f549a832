// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package errors

const (
	RequestParameterInvalid int = 4001
	RequestDataExists       int = 4002
	AuthFailed              int = 4003
	RequestDataNotExisted   int = 4004
	PermissionDeny          int = 4005
	InvalidOperation        int = 4016

	// Analysis lifecycle errors.
	CodeAnalysisNotFound       int = 4040
	CodeAnalysisInFlight       int = 4090
	CodeRateLimited            int = 4290
	CodeInvalidStateTransition int = 5010
	CodeInvalidProgressValue   int = 5011

	InternalError    int = 5000
	InvalidDataError int = 5001
	CodeDatabaseError    = 5002
	ServiceUnavailable   = 5003

	// External collaborator failures.
	CodeUpstreamUnavailable int = 6001
	CodeObjectStorageError  int = 6002
	CodeVectorIndexError    int = 6003
	CodeCorruptPayload      int = 6004
	CodeHeartbeatStale      int = 6005
	CodeCacheNotReady       int = 6006

	CodeInitializeError = 7001
	CodeLackOfConfig    = 7002

	CodeRemoteServiceError = 8001
	CodeInvalidArgument    = 8002
)
