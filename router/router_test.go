package router

import (
	"testing"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	doc := &catalog.Document{
		Version: "1",
		Updated: "2026-01-01",
		Providers: map[string]map[string]*catalog.Entry{
			"openai": {
				"gpt-4o-mini": {
					DisplayName:        "GPT-4o mini",
					ContextWindow:      128000,
					InputPricePerMTok:  0.15,
					OutputPricePerMTok: 0.60,
					Capabilities:       catalog.Capabilities{Vision: true, Tools: true},
					QualityScore:       0.70,
					LatencyClass:       catalog.LatencyFast,
				},
				"gpt-4o": {
					DisplayName:        "GPT-4o",
					ContextWindow:      128000,
					InputPricePerMTok:  2.50,
					OutputPricePerMTok: 10.00,
					Capabilities:       catalog.Capabilities{Vision: true, Tools: true, Reasoning: true},
					QualityScore:       0.92,
					LatencyClass:       catalog.LatencyStandard,
				},
			},
			"groq": {
				"llama-3.1-8b-instant": {
					DisplayName:        "Llama 3.1 8B Instant",
					ContextWindow:      131072,
					InputPricePerMTok:  0.05,
					OutputPricePerMTok: 0.08,
					Capabilities:       catalog.Capabilities{Tools: true},
					QualityScore:       0.50,
					LatencyClass:       catalog.LatencyUltra,
				},
			},
			"legacy": {
				"old-model": {
					DisplayName:        "Old Model",
					ContextWindow:      8192,
					InputPricePerMTok:  0.10,
					OutputPricePerMTok: 0.20,
					QualityScore:       0.60,
					LatencyClass:       catalog.LatencyFast,
					Deprecated:         true,
					ReplacementModelID: "gpt-4o-mini",
				},
			},
		},
	}
	require.NoError(t, cat.Load(doc))
	return cat
}

func simpleRequest() *types.Request {
	return &types.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hello there"}},
	}
}

func TestCostStrategyOrdersAscendingPrice(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyCost, Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, "llama-3.1-8b-instant", chain[0].ModelID, "cheapest non-deprecated model leads")
}

func TestQualityStrategyOrdersDescendingQuality(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyQuality, Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, "gpt-4o", chain[0].ModelID)
}

func TestLatencyStrategyOrdersAscendingLatencyRank(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyLatency, Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, "llama-3.1-8b-instant", chain[0].ModelID, "ultra latency class leads")
}

func TestDeprecatedEntriesExcludedByDefault(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyCost, Constraints{})
	require.NoError(t, err)
	for _, c := range chain {
		assert.False(t, c.Entry.Deprecated)
	}
}

func TestAllowDeprecatedIncludesFlaggedEntries(t *testing.T) {
	r := New(buildCatalog(t))
	r.ChainLength = 10
	chain, err := r.Route(simpleRequest(), StrategyCost, Constraints{AllowDeprecated: true})
	require.NoError(t, err)
	found := false
	for _, c := range chain {
		if c.ModelID == "old-model" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestContextWindowFilterDropsTooSmallModels(t *testing.T) {
	r := New(buildCatalog(t))
	req := simpleRequest()
	req.MaxOutputTokens = 1000
	chain, err := r.Route(req, StrategyCost, Constraints{MinContextWindow: 0})
	require.NoError(t, err)
	for _, c := range chain {
		assert.NotEqual(t, "old-model", c.ModelID, "8192-ctx legacy model is deprecated and excluded by default anyway")
	}
}

func TestRequiredCapabilitiesFilter(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyQuality, Constraints{RequiredCapabilities: []string{"reasoning"}})
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, "gpt-4o", chain[0].ModelID)
}

func TestExcludedProviderIsFilteredOut(t *testing.T) {
	r := New(buildCatalog(t))
	chain, err := r.Route(simpleRequest(), StrategyCost, Constraints{ExcludedProviders: []string{"groq"}})
	require.NoError(t, err)
	for _, c := range chain {
		assert.NotEqual(t, "groq", c.ProviderID)
	}
}

func TestNoEligibleModelWhenConstraintsExcludeEverything(t *testing.T) {
	r := New(buildCatalog(t))
	price := 0.001
	_, err := r.Route(simpleRequest(), StrategyCost, Constraints{MaxPricePerMTok: &price})
	require.Error(t, err)
	assert.Equal(t, types.ErrNoEligibleModel, types.GetErrorCode(err))
}

func TestChainLengthCapsAtK(t *testing.T) {
	r := New(buildCatalog(t))
	r.ChainLength = 2
	chain, err := r.Route(simpleRequest(), StrategyCost, Constraints{})
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestRoutingIsDeterministic(t *testing.T) {
	r := New(buildCatalog(t))
	req := simpleRequest()
	first, err := r.Route(req, StrategyHybrid, Constraints{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Route(req, StrategyHybrid, Constraints{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComplexityScoreHigherForReasoningPrompt(t *testing.T) {
	simple := &types.Request{Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	complex := &types.Request{Messages: []types.Message{{Role: types.RoleUser,
		Content: "Analyze and prove that the following algorithm's time complexity is optimal; derive a formal bound and explain the trade-offs in the design."}}}

	assert.Less(t, ComplexityScore(simple), ComplexityScore(complex))
}

func TestHybridDiffersFromCostAndQualityTopChoice(t *testing.T) {
	r := New(buildCatalog(t))
	reasoningReq := &types.Request{Messages: []types.Message{{Role: types.RoleUser,
		Content: "Prove that the square root of 2 is irrational. Derive the argument step by step."}}}

	costChain, err := r.Route(reasoningReq, StrategyCost, Constraints{})
	require.NoError(t, err)
	qualityChain, err := r.Route(reasoningReq, StrategyQuality, Constraints{})
	require.NoError(t, err)
	hybridChain, err := r.Route(reasoningReq, StrategyHybrid, Constraints{})
	require.NoError(t, err)

	assert.Equal(t, qualityChain[0].ModelID, hybridChain[0].ModelID, "high complexity hybrid should lean toward quality's pick")
	assert.NotEqual(t, costChain[0].ModelID, hybridChain[0].ModelID)
}

func TestModelIDPinsChainHead(t *testing.T) {
	r := New(buildCatalog(t))
	req := simpleRequest()
	req.ModelID = "gpt-4o"

	chain, err := r.Route(req, StrategyCost, Constraints{})
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	assert.Equal(t, "gpt-4o", chain[0].ModelID, "the request's own model outranks the strategy ordering")
	assert.Equal(t, "openai", chain[0].ProviderID)
	for _, c := range chain[1:] {
		assert.NotEqual(t, "gpt-4o", c.ModelID, "the pinned model fills only the head slot")
	}
	assert.Equal(t, "llama-3.1-8b-instant", chain[1].ModelID, "fallback slots stay strategy-ordered")
}

func TestUnknownModelIDIsModelNotFound(t *testing.T) {
	r := New(buildCatalog(t))
	req := simpleRequest()
	req.ModelID = "no-such-model"

	_, err := r.Route(req, StrategyCost, Constraints{})
	require.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))
}

func TestImageRequestFiltersVisionlessFallbacks(t *testing.T) {
	r := New(buildCatalog(t))
	req := &types.Request{
		ModelID: "gpt-4o",
		Messages: []types.Message{{
			Role:    types.RoleUser,
			Content: "what is in this picture?",
			Images:  []types.ImageContent{{MIME: "image/png", Base64: "aGk="}},
		}},
	}

	chain, err := r.Route(req, StrategyCost, Constraints{})
	require.NoError(t, err)
	for _, c := range chain {
		assert.True(t, c.Entry.Capabilities.Vision,
			"every candidate for an image request must be vision-capable, got %s", c.ModelID)
	}
}

func TestToolRequestFiltersToollessCandidates(t *testing.T) {
	r := New(buildCatalog(t))
	req := simpleRequest()
	req.ToolSpec = []types.ToolSchema{{Name: "get_weather", Parameters: []byte(`{"type":"object"}`)}}

	chain, err := r.Route(req, StrategyCost, Constraints{AllowDeprecated: true})
	require.NoError(t, err)
	require.NotEmpty(t, chain)
	for _, c := range chain {
		assert.True(t, c.Entry.Capabilities.Tools, "got tool-less candidate %s", c.ModelID)
	}
}
