// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("ghp_example_token"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ghp_example_token")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghp_example_token"), opened)
}

func TestSealIsRandomized(t *testing.T) {
	sealer, err := NewSealer("passphrase")
	require.NoError(t, err)

	first, err := sealer.Seal([]byte("same value"))
	require.NoError(t, err)
	second, err := sealer.Seal([]byte("same value"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestOpenRejectsTampering(t *testing.T) {
	sealer, err := NewSealer("passphrase")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("secret"))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewSealer("different passphrase")
		require.NoError(t, err)
		_, err = other.Open(sealed)
		assert.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := sealer.Open(sealed[:10])
		assert.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := sealer.Open("%%%not-base64%%%")
		assert.Error(t, err)
	})
}

func TestNewSealerRequiresKey(t *testing.T) {
	_, err := NewSealer("")
	assert.Error(t, err)
}
