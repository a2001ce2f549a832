// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package dispatch

import (
	"github.com/AMD-AGI/Primus-CodeLens/pkg/crypto"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/database/model"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/errors"
	"github.com/AMD-AGI/Primus-CodeLens/pkg/gitrepo"
)

// sealToken encrypts an access token for storage. An empty token needs
// no sealer.
func sealToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sealer := crypto.Default()
	if sealer == nil {
		return "", errors.NewError().WithCode(errors.CodeLackOfConfig).
			WithMessage("access tokens require a configured secret key")
	}
	return sealer.Seal([]byte(token))
}

// CloneURL reconstructs the clone URL for an analysis, restoring the
// sealed access token when one was stored at dispatch time.
func CloneURL(analysis *model.Analysis) (string, error) {
	repoURL := analysis.Metrics.GetStringValue("repo_url")
	if repoURL == "" {
		return "", errors.NewError().WithCode(errors.RequestParameterInvalid).
			WithMessagef("analysis %s has no repo_url", analysis.ID)
	}

	sealed := analysis.Metrics.GetStringValue("access_token")
	if sealed == "" {
		return repoURL, nil
	}
	sealer := crypto.Default()
	if sealer == nil {
		return "", errors.NewError().WithCode(errors.CodeLackOfConfig).
			WithMessagef("analysis %s carries a sealed token but no secret key is configured", analysis.ID)
	}
	token, err := sealer.Open(sealed)
	if err != nil {
		return "", errors.WrapError(err, "unseal access token", errors.CodeCorruptPayload)
	}
	return gitrepo.AuthenticatedURL(repoURL, string(token))
}
