// Package llama wires the OpenAI-compatible base to a third-party host
// for Meta's Llama models. Together AI is the default host; Groq and
// OpenRouter also serve Llama models through their own dedicated
// packages when that routing is preferred instead.
package llama

import (
	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// Host names a third-party Llama hosting provider.
type Host string

const (
	HostTogether Host = "together"
)

var hostBaseURLs = map[Host]string{
	HostTogether: "https://api.together.xyz/v1",
}

// New returns a Provider for Llama models via host (Together AI by
// default).
func New(host Host, logger *zap.Logger) *openaicompat.Provider {
	if host == "" {
		host = HostTogether
	}
	baseURL, ok := hostBaseURLs[host]
	if !ok {
		baseURL = hostBaseURLs[HostTogether]
	}
	return openaicompat.New(openaicompat.Config{
		ProviderID: "llama-" + string(host),
		BaseURL:    baseURL,
		APIKeyEnv:  "TOGETHER_API_KEY",
	}, logger)
}
