package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

func TestResolveUsesSourceTag(t *testing.T) {
	r := NewIdentityResolver(zap.NewNop())

	got, err := r.Resolve(models.Identity{Key: "12345", Source: models.SourcePrimary})
	require.NoError(t, err)
	assert.Equal(t, models.SourcePrimary, got.Store)
	assert.Equal(t, "12345", got.Key)
}

func TestResolveFallsBackToKeyShape(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewIdentityResolver(zap.New(core))

	cases := []struct {
		key   string
		store models.IdentitySource
		want  string
	}{
		{"64B7F0C2A1D3E4F5A6B7C8D9", models.SourcePrimary, "64b7f0c2a1d3e4f5a6b7c8d9"},
		{" 9001 ", models.SourceLegacy, "9001"},
		{"firebase-uid-xyz", models.SourcePrimary, "firebase-uid-xyz"},
	}
	for _, tc := range cases {
		got, err := r.Resolve(models.Identity{Key: tc.key, Source: "bogus"})
		require.NoError(t, err)
		assert.Equal(t, tc.store, got.Store, tc.key)
		assert.Equal(t, tc.want, got.Key)
	}
	assert.Equal(t, len(cases), logs.Len())
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewIdentityResolver(zap.NewNop())
	id := models.Identity{Key: "777"}

	first, err := r.Resolve(id)
	require.NoError(t, err)
	second, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveRejectsEmptyKey(t *testing.T) {
	r := NewIdentityResolver(zap.NewNop())
	_, err := r.Resolve(models.Identity{Key: "  ", Source: models.SourcePrimary})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}
