// Package qwen wires the OpenAI-compatible base to Alibaba's DashScope
// compatible-mode endpoint.
package qwen

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for Alibaba Qwen via DashScope's
// OpenAI-compatible mode.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "qwen",
		BaseURL:    "https://dashscope.aliyuncs.com/compatible-mode/v1",
		APIKeyEnv:  "QWEN_API_KEY",
	}, logger)
}
