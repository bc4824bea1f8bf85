// Package openai is the dedicated OpenAI-native provider strategy.
// OpenAI's chat-completions wire format is the one the shared
// providers/openaicompat base already speaks, so this package embeds
// that base and only overrides what's genuinely OpenAI-specific: the
// Organization header and the capability answers.
package openai

import (
	"context"
	"net/http"

	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"github.com/llmgateway/agentflow/types"
	"go.uber.org/zap"
)

// Provider is the OpenAI-native strategy: OpenAI-compatible wire format
// plus OpenAI-specific header handling.
type Provider struct {
	*openaicompat.Provider
}

// New returns a Provider for native OpenAI. organization may be empty.
func New(organization string, logger *zap.Logger) *Provider {
	p := &Provider{}
	p.Provider = openaicompat.New(openaicompat.Config{
		ProviderID: "openai",
		BaseURL:    "https://api.openai.com/v1",
		APIKeyEnv:  "OPENAI_API_KEY",
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			if organization != "" {
				req.Header.Set("OpenAI-Organization", organization)
			}
			req.Header.Set("Content-Type", "application/json")
		},
	}, logger)
	return p
}

// Complete delegates to the OpenAI-compatible base; OpenAI applies
// prompt caching automatically server-side for repeated prefixes, so
// cache_hint only needs to reach the vendor as ordinary message
// content — no extra wire field is required, unlike Anthropic's
// explicit cache_control blocks.
func (p *Provider) Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error) {
	return p.Provider.Complete(ctx, modelID, req)
}

func (p *Provider) Supports(modelID string, capability providers.Capability) bool {
	switch capability {
	case providers.CapabilityTools, providers.CapabilityStreaming, providers.CapabilityVision:
		return true
	default:
		return p.Provider.Supports(modelID, capability)
	}
}
