package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/llmgateway/agentflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	return &Document{
		Version: "1",
		Updated: "2026-01-01",
		Providers: map[string]map[string]*Entry{
			"openai": {
				"gpt-4o-mini": {
					DisplayName:        "GPT-4o mini",
					ContextWindow:      128000,
					OutputCeiling:      16384,
					InputPricePerMTok:  0.15,
					OutputPricePerMTok: 0.60,
					Capabilities:       Capabilities{Vision: true, Tools: true},
					QualityScore:       0.7,
					LatencyClass:       LatencyFast,
				},
			},
			"groq": {
				"llama-3.1-8b-instant": {
					DisplayName:        "Llama 3.1 8B Instant",
					ContextWindow:      131072,
					InputPricePerMTok:  0.05,
					OutputPricePerMTok: 0.08,
					Capabilities:       Capabilities{Tools: true},
					QualityScore:       0.5,
					LatencyClass:       LatencyUltra,
				},
			},
		},
	}
}

func TestLoadAndLookup(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Load(sampleDoc()))

	e, err := cat.Lookup("openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, 128000, e.ContextWindow)
	assert.Equal(t, "openai", e.ProviderID)

	_, err = cat.Lookup("openai", "nonexistent")
	assert.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))
}

func TestLoadRejectsInvalidDocumentKeepsSnapshot(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Load(sampleDoc()))

	bad := sampleDoc()
	bad.Providers["openai"]["gpt-4o-mini"].ContextWindow = 0
	err := cat.Load(bad)
	require.Error(t, err)

	// Previous good snapshot must still be in effect.
	e, err := cat.Lookup("openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, 128000, e.ContextWindow)
}

func TestValidateRequestCapabilityMismatch(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Load(sampleDoc()))

	req := &types.Request{
		ModelID:  "llama-3.1-8b-instant",
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi", Images: []types.ImageContent{{MIME: "image/png", Base64: "AAAA"}}}},
	}
	violations, entry := cat.ValidateRequest(req, "groq", 2.0)
	require.NotNil(t, entry)
	require.Len(t, violations, 1)
	assert.Equal(t, "messages", violations[0].Field)
}

func TestValidateRequestTemperatureBoundary(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Load(sampleDoc()))

	req := &types.Request{ModelID: "gpt-4o-mini", Temperature: 2.01, Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}}
	violations, _ := cat.ValidateRequest(req, "openai", 2.0)
	require.Len(t, violations, 1)
	assert.Equal(t, "temperature", violations[0].Field)

	req.Temperature = 2.0
	violations, _ = cat.ValidateRequest(req, "openai", 2.0)
	assert.Empty(t, violations)
}

func TestSourceLoadOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "1",
		"providers": {
			"openai": {"gpt-4o-mini": {"context_window": 128000, "input_price_per_mtok": 0.15, "output_price_per_mtok": 0.6}}
		}
	}`), 0o644))

	cat := New()
	src := NewSource(path, 0, nil)
	require.NoError(t, src.LoadOnce(cat))

	e, err := cat.Lookup("openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, 128000, e.ContextWindow)
}

func TestIsDeprecated(t *testing.T) {
	cat := New()
	doc := sampleDoc()
	doc.Providers["openai"]["gpt-4o-mini"].Deprecated = true
	doc.Providers["openai"]["gpt-4o-mini"].ReplacementModelID = "gpt-4o"
	require.NoError(t, cat.Load(doc))

	dep, replacement := cat.IsDeprecated("gpt-4o-mini")
	assert.True(t, dep)
	assert.Equal(t, "gpt-4o", replacement)
}
