// Package minimax wires the OpenAI-compatible base to MiniMax's API.
package minimax

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for MiniMax.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "minimax",
		BaseURL:    "https://api.minimax.chat/v1",
		APIKeyEnv:  "MINIMAX_API_KEY",
	}, logger)
}
