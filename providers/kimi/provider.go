// Package kimi wires the OpenAI-compatible base to Moonshot AI's Kimi
// API.
package kimi

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for Moonshot Kimi.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "kimi",
		BaseURL:    "https://api.moonshot.cn/v1",
		APIKeyEnv:  "KIMI_API_KEY",
	}, logger)
}
