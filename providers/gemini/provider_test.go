package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/types"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_BASE_URL", srv.URL)
	return New(nil)
}

func TestCompleteHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		_ = json.NewEncoder(w).Encode(wireResponse{
			ResponseID:   "resp_1",
			ModelVersion: "gemini-2.5-flash",
			Candidates: []wireCandidate{{
				FinishReason: "STOP",
				Content:      wireContent{Role: "model", Parts: []wirePart{{Text: "hi there"}}},
			}},
			UsageMetadata: &wireUsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 4, TotalTokenCount: 16},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	resp, err := p.Complete(context.Background(), "gemini-2.5-flash", &types.Request{
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "be terse"},
			{Role: types.RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.False(t, resp.CostBreakdown.Estimated)
}

func TestCompleteMissingAPIKeyIsAuthMissing(t *testing.T) {
	p := New(nil)
	_, err := p.Complete(context.Background(), "gemini-2.5-flash", &types.Request{})
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthMissing, types.GetErrorCode(err))
}

func TestCompleteRateLimitMapsToRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	_, err := p.Complete(context.Background(), "gemini-2.5-flash", &types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestCompleteMissingUsageFallsBackToEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireResponse{
			ResponseID:   "resp_2",
			ModelVersion: "gemini-2.5-flash",
			Candidates: []wireCandidate{{
				FinishReason: "STOP",
				Content:      wireContent{Role: "model", Parts: []wirePart{{Text: "ok"}}},
			}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	resp, err := p.Complete(context.Background(), "gemini-2.5-flash", &types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.CostBreakdown.Estimated)
	assert.Greater(t, resp.Usage.PromptTokens, 0)
}

func TestToGeminiContentsExtractsSystemAndConvertsRoles(t *testing.T) {
	system, contents := toGeminiContents([]types.Message{
		{Role: types.RoleSystem, Content: "system prompt"},
		{Role: types.RoleUser, Content: "do the thing"},
		{Role: types.RoleAssistant, Content: "ok"},
	})
	require.NotNil(t, system)
	assert.Equal(t, "system prompt", system.Parts[0].Text)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestSupportsToolsAndStreaming(t *testing.T) {
	p := New(nil)
	assert.True(t, p.Supports("gemini-2.5-flash", providers.CapabilityTools))
	assert.True(t, p.Supports("gemini-2.5-flash", providers.CapabilityStreaming))
	assert.True(t, p.Supports("gemini-2.5-flash", providers.CapabilityVision))
	assert.False(t, p.Supports("gemini-2.5-flash", providers.CapabilityPromptCache))
}

func TestListModelsReturnsStaticSet(t *testing.T) {
	p := New(nil)
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Contains(t, models, "gemini-2.5-flash")
}
