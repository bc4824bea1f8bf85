// Package groq wires the OpenAI-compatible base to Groq's
// low-latency inference API, the gateway's primary "ultra" latency
// class provider.
package groq

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for Groq.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "groq",
		BaseURL:    "https://api.groq.com/openai/v1",
		APIKeyEnv:  "GROQ_API_KEY",
	}, logger)
}
