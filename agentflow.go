// Package agentflow provides a top-level convenience entry point for
// standing up a gateway.Dispatcher with minimal boilerplate: load a
// catalog file, register the stock provider set, and wire the defaults.
//
// Usage:
//
//	import "github.com/llmgateway/agentflow"
//
//	d, err := agentflow.New(agentflow.WithCatalogFile("catalog.json"))
//	resp, err := d.Dispatch(ctx, &types.Request{...})
//
// This is a thin wrapper around [gateway.New]; reach for [gateway.New]
// directly when finer control over Options is needed.
package agentflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/gateway"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/providers/anthropic"
	"github.com/llmgateway/agentflow/providers/deepseek"
	"github.com/llmgateway/agentflow/providers/gemini"
	"github.com/llmgateway/agentflow/providers/glm"
	"github.com/llmgateway/agentflow/providers/grok"
	"github.com/llmgateway/agentflow/providers/groq"
	"github.com/llmgateway/agentflow/providers/kimi"
	"github.com/llmgateway/agentflow/providers/minimax"
	"github.com/llmgateway/agentflow/providers/ollama"
	"github.com/llmgateway/agentflow/providers/openai"
	"github.com/llmgateway/agentflow/providers/openrouter"
	"github.com/llmgateway/agentflow/providers/qwen"
	"github.com/llmgateway/agentflow/router"
)

// settings accumulates Option values before New assembles a Dispatcher.
type settings struct {
	catalogPath string
	logger      *zap.Logger
	strategy    router.Strategy
}

// Option configures the Dispatcher built by [New].
type Option func(*settings)

// WithCatalogFile points New at the model catalog JSON file to load.
func WithCatalogFile(path string) Option {
	return func(s *settings) { s.catalogPath = path }
}

// WithLogger sets the zap logger the gateway logs through.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithStrategy sets the router strategy Dispatch uses when a call site
// doesn't override it via gateway.DispatchOptions.
func WithStrategy(strategy router.Strategy) Option {
	return func(s *settings) { s.strategy = strategy }
}

// New loads the catalog named by [WithCatalogFile], registers the stock
// set of providers that need only an API-key environment variable, and
// returns a ready-to-use gateway.Dispatcher.
//
// Providers requiring extra configuration (llama's third-party host
// selection, bedrock's AWS credential chain) are not registered by this
// convenience path; build a providers.Registry by hand and call
// gateway.New directly when those are needed.
func New(opts ...Option) (*gateway.Dispatcher, error) {
	s := &settings{strategy: router.StrategyHybrid}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalogPath == "" {
		return nil, fmt.Errorf("agentflow: WithCatalogFile is required")
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	cat := catalog.New()
	if err := catalog.NewSource(s.catalogPath, 0, s.logger).LoadOnce(cat); err != nil {
		return nil, fmt.Errorf("agentflow: loading catalog: %w", err)
	}

	registry := providers.NewRegistry()
	registry.Register("anthropic", anthropic.New(s.logger))
	registry.Register("deepseek", deepseek.New(s.logger))
	registry.Register("gemini", gemini.New(s.logger))
	registry.Register("glm", glm.New(s.logger))
	registry.Register("grok", grok.New(s.logger))
	registry.Register("groq", groq.New(s.logger))
	registry.Register("kimi", kimi.New(s.logger))
	registry.Register("minimax", minimax.New(s.logger))
	registry.Register("ollama", ollama.New(s.logger))
	registry.Register("openai", openai.New("", s.logger))
	registry.Register("openrouter", openrouter.New(s.logger))
	registry.Register("qwen", qwen.New(s.logger))

	return gateway.New(gateway.Options{
		Catalog:         cat,
		Router:          router.New(cat),
		Providers:       registry,
		Logger:          s.logger,
		DefaultStrategy: s.strategy,
	}), nil
}
