// Package deepseek wires the OpenAI-compatible base to DeepSeek's API.
package deepseek

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for DeepSeek, talking OpenAI-compatible wire
// format to api.deepseek.com.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "deepseek",
		BaseURL:    "https://api.deepseek.com",
		APIKeyEnv:  "DEEPSEEK_API_KEY",
	}, logger)
}
