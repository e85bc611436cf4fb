package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpendsOneCredit(t *testing.T) {
	a := newTestApp(t)

	res := a.user(t, "POST", "/api/ai/generate", map[string]string{"kind": "summary", "prompt": "Go developer"})
	require.Equal(t, 200, res.status)
	assert.Equal(t, "draft: Go developer", res.body["text"])
	assert.Equal(t, float64(1), res.body["credit"].(map[string]any)["usedCredits"])
}

func TestGenerateFailureIsNotCharged(t *testing.T) {
	a := newTestApp(t)

	res := a.user(t, "POST", "/api/ai/generate", map[string]string{"kind": "summary", "prompt": "fail"})
	assert.Equal(t, 502, res.status)
	assert.Equal(t, true, res.body["retryable"])

	check := a.user(t, "GET", "/api/credits/check", nil)
	assert.Equal(t, float64(0), check.body["credit"].(map[string]any)["usedCredits"])
}

func TestGenerateUnknownKind(t *testing.T) {
	a := newTestApp(t)

	res := a.user(t, "POST", "/api/ai/generate", map[string]string{"kind": "haiku", "prompt": "x"})
	assert.Equal(t, 400, res.status)
	assert.Equal(t, "kind", res.body["field"])
}
