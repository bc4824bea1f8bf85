// Package ollama wires the OpenAI-compatible base to a local Ollama
// daemon. Ollama serves an OpenAI-compatible /v1/chat/completions
// endpoint alongside its native API, so this vendor rides the shared
// openaicompat.Provider exactly like the hosted vendor packages — the
// only real difference is that a local daemon needs no API key and its
// base URL is a loopback address rather than a public vendor host.
//
// Ollama's OpenAI-compatible endpoint does not reliably populate a
// usage block for every model build, so the shared base's
// tokenizer-heuristic fallback is what actually carries this vendor's
// cost accounting most of the time — CostBreakdown.Estimated is true
// whenever that happens.
package ollama

import (
	"os"
	"strings"

	"github.com/llmgateway/agentflow/providers/openaicompat"
	"go.uber.org/zap"
)

const defaultBaseURL = "http://localhost:11434"

// New returns a Provider for a local Ollama daemon. OLLAMA_BASE_URL, if
// set, overrides the default loopback address (e.g. to reach a daemon
// on another host in the cluster).
func New(logger *zap.Logger) *openaicompat.Provider {
	baseURL := defaultBaseURL
	if override := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); override != "" {
		baseURL = override
	}
	return openaicompat.New(openaicompat.Config{
		ProviderID:     "ollama",
		BaseURL:        baseURL,
		APIKeyEnv:      "OLLAMA_API_KEY",
		EndpointPath:   "/v1/chat/completions",
		ModelsEndpoint: "/v1/models",
		OptionalAuth:   true,
	}, logger)
}
