package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCompleteParsesFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		_, _ = w.Write([]byte(`{"model":"test-model","choices":[{"message":{"content":"  Seasoned engineer.  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "test-model"}, zap.NewNop())
	out, err := c.Complete(context.Background(), Request{Kind: "summary", Prompt: "backend dev"})
	require.NoError(t, err)
	assert.Equal(t, "Seasoned engineer.", out.Text)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"}, zap.NewNop())
	_, err := c.Complete(context.Background(), Request{Kind: "summary", Prompt: "x"})
	assert.Error(t, err)
}

func TestCompleteNotConfigured(t *testing.T) {
	c := NewClient(Config{}, zap.NewNop())
	_, err := c.Complete(context.Background(), Request{Kind: "summary"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSupportedKind(t *testing.T) {
	assert.True(t, SupportedKind("summary"))
	assert.False(t, SupportedKind("poem"))
}
