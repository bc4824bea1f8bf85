// Package glm wires the OpenAI-compatible base to Zhipu AI's GLM API.
package glm

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for Zhipu AI GLM.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "glm",
		BaseURL:    "https://open.bigmodel.cn/api/paas/v4",
		APIKeyEnv:  "GLM_API_KEY",
	}, logger)
}
