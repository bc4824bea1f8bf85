package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/llmgateway/agentflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-1",
			Model: "test-model",
			Choices: []wireChoice{
				{Index: 0, FinishReason: "stop", Message: wireMessage{Role: "assistant", Content: "hi there"}},
			},
			Usage: &wireUsage{PromptTokens: 10, CompletionTokens: 3},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY", "test-key")
	p := New(Config{ProviderID: "test", BaseURL: srv.URL, APIKeyEnv: "TEST_API_KEY"}, nil)

	resp, err := p.Complete(context.Background(), "test-model", &types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
	assert.False(t, resp.CostBreakdown.Estimated)
}

func TestCompleteMissingAPIKeyIsAuthMissing(t *testing.T) {
	os.Unsetenv("UNSET_KEY_VAR")
	p := New(Config{ProviderID: "test", BaseURL: "http://example.invalid", APIKeyEnv: "UNSET_KEY_VAR"}, nil)

	_, err := p.Complete(context.Background(), "m", &types.Request{})
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthMissing, types.GetErrorCode(err))
}

func TestCompleteRateLimitMapsToRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY_2", "k")
	p := New(Config{ProviderID: "test", BaseURL: srv.URL, APIKeyEnv: "TEST_API_KEY_2"}, nil)

	_, err := p.Complete(context.Background(), "m", &types.Request{})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestCompleteMissingUsageFallsBackToEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-2",
			Model: "test-model",
			Choices: []wireChoice{
				{Index: 0, FinishReason: "stop", Message: wireMessage{Role: "assistant", Content: "ok"}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY_3", "k")
	p := New(Config{ProviderID: "test", BaseURL: srv.URL, APIKeyEnv: "TEST_API_KEY_3"}, nil)

	resp, err := p.Complete(context.Background(), "test-model", &types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.CostBreakdown.Estimated)
	assert.Greater(t, resp.Usage.PromptTokens, 0)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"model-a"},{"id":"model-b"}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY_4", "k")
	p := New(Config{ProviderID: "test", BaseURL: srv.URL, APIKeyEnv: "TEST_API_KEY_4"}, nil)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"model-a", "model-b"}, models)
}

func TestCompleteRateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY_5", "k")
	p := New(Config{ProviderID: "test", BaseURL: srv.URL, APIKeyEnv: "TEST_API_KEY_5"}, nil)

	_, err := p.Complete(context.Background(), "m", &types.Request{})
	require.Error(t, err)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2*time.Second, e.RetryAfter)
}
