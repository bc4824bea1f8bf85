// Package openrouter wires the OpenAI-compatible base to OpenRouter's
// model-aggregating API. OpenRouter model IDs carry a vendor prefix
// ("meta-llama/llama-3.1-70b-instruct"); the catalog's model_id field
// is expected to already carry that prefix, so no translation happens
// here.
package openrouter

import (
	"net/http"

	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

// New returns a Provider for OpenRouter.
func New(logger *zap.Logger) *openaicompat.Provider {
	return openaicompat.New(openaicompat.Config{
		ProviderID: "openrouter",
		BaseURL:    "https://openrouter.ai/api/v1",
		APIKeyEnv:  "OPENROUTER_API_KEY",
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("HTTP-Referer", "https://github.com/llmgateway/agentflow")
		},
	}, logger)
}
