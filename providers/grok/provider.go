// Package grok wires the OpenAI-compatible base to xAI's Grok API.
package grok

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for xAI Grok.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "grok",
		BaseURL:    "https://api.x.ai/v1",
		APIKeyEnv:  "XAI_API_KEY",
	}, logger)
}
