// =============================================================================
// AgentFlow gateway CLI
// =============================================================================
// A thin command-line front end over the request core: validate a model
// catalog file, inspect its entries, or dispatch a one-shot request
// through the Dispatcher. There is no HTTP/WebSocket server here — the
// gateway module is a library, and presentation-layer transports are
// out of scope.
//
// Usage:
//
//	agentflow version
//	agentflow catalog validate --file catalog.json
//	agentflow catalog list --file catalog.json
//	agentflow dispatch --catalog catalog.json --model gpt-4o-mini --prompt "hello"
// =============================================================================

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/llmgateway/agentflow/catalog"
	"github.com/llmgateway/agentflow/config"
	"github.com/llmgateway/agentflow/gateway"
	"github.com/llmgateway/agentflow/internal/metrics"
	"github.com/llmgateway/agentflow/internal/telemetry"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/providers/anthropic"
	"github.com/llmgateway/agentflow/providers/bedrock"
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
	"github.com/llmgateway/agentflow/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "catalog":
		runCatalog(os.Args[2:])
	case "dispatch":
		runDispatch(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// catalog subcommand
// =============================================================================

func runCatalog(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: agentflow catalog <validate|list> --file <path>")
		os.Exit(1)
	}

	sub := args[0]
	fs := flag.NewFlagSet("catalog "+sub, flag.ExitOnError)
	file := fs.String("file", "catalog.json", "path to the catalog JSON file")
	fs.Parse(args[1:])

	logger := initLogger(config.DefaultLogConfig())
	defer logger.Sync()

	cat := catalog.New()
	if err := catalog.NewSource(*file, 0, logger).LoadOnce(cat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	switch sub {
	case "validate":
		fmt.Printf("catalog %q is valid\n", *file)
	case "list":
		for _, e := range cat.List("") {
			fmt.Printf("%s/%s  %s  ctx=%d  in=$%.2f/MTok  out=$%.2f/MTok\n",
				e.ProviderID, e.ModelID, e.DisplayName, e.ContextWindow,
				e.InputPricePerMTok, e.OutputPricePerMTok)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown catalog subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// =============================================================================
// dispatch subcommand — one-shot request through the gateway
// =============================================================================

func runDispatch(args []string) {
	fs := flag.NewFlagSet("dispatch", flag.ExitOnError)
	catalogPath := fs.String("catalog", "catalog.json", "path to the catalog JSON file")
	modelID := fs.String("model", "", "model_id to dispatch against (empty lets the router choose)")
	prompt := fs.String("prompt", "", "user prompt text")
	strategy := fs.String("strategy", "hybrid", "router strategy: cost|quality|latency|hybrid")
	timeout := fs.Duration("timeout", 60*time.Second, "request timeout")
	fs.Parse(args)

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "--prompt is required")
		os.Exit(1)
	}

	logger := initLogger(config.DefaultLogConfig())
	defer logger.Sync()

	tel, err := telemetry.Init(config.DefaultTelemetryConfig(), logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without it", zap.Error(err))
	} else {
		defer tel.Shutdown(context.Background())
	}

	cat := catalog.New()
	if err := catalog.NewSource(*catalogPath, 0, logger).LoadOnce(cat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	registry := providers.NewRegistry()
	registry.Register("anthropic", anthropic.New(logger))
	registry.Register("deepseek", deepseek.New(logger))
	registry.Register("gemini", gemini.New(logger))
	registry.Register("glm", glm.New(logger))
	registry.Register("grok", grok.New(logger))
	registry.Register("groq", groq.New(logger))
	registry.Register("kimi", kimi.New(logger))
	registry.Register("minimax", minimax.New(logger))
	registry.Register("ollama", ollama.New(logger))
	registry.Register("openai", openai.New("", logger))
	registry.Register("openrouter", openrouter.New(logger))
	registry.Register("qwen", qwen.New(logger))

	// Bedrock authenticates via the AWS standard credential chain rather
	// than a single API key env var, so it fails closed: no chain
	// resolves (no env/profile/instance role configured) means no
	// "bedrock" entry in the registry instead of a provider that errors
	// on every call.
	if bp, err := bedrock.New(context.Background(), logger); err != nil {
		logger.Warn("bedrock provider unavailable, skipping registration", zap.Error(err))
	} else {
		registry.Register("bedrock", bp)
	}

	d := gateway.New(gateway.Options{
		Catalog:         cat,
		Router:          router.New(cat),
		Providers:       registry,
		Logger:          logger,
		Metrics:         metrics.NewCollector("agentflow", logger),
		DefaultStrategy: router.Strategy(*strategy),
	})

	req := &types.Request{
		ModelID:  *modelID,
		Messages: []types.Message{types.NewUserMessage(*prompt)},
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatch failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

// =============================================================================
// version and help
// =============================================================================

func printVersion() {
	fmt.Printf("AgentFlow gateway %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`AgentFlow - LLM gateway request core

Usage:
  agentflow <command> [options]

Commands:
  catalog validate   Load and validate a catalog JSON file
  catalog list       List provider/model entries in a catalog file
  dispatch           Send a one-shot request through the gateway
  version            Show version information
  help               Show this help message

Options for 'catalog validate'/'catalog list':
  --file <path>      Path to the catalog JSON file (default catalog.json)

Options for 'dispatch':
  --catalog <path>   Path to the catalog JSON file (default catalog.json)
  --model <id>       model_id to dispatch against (router picks if empty)
  --prompt <text>    User prompt text (required)
  --strategy <name>  cost|quality|latency|hybrid (default hybrid)
  --timeout <dur>    Request timeout (default 60s)

Examples:
  agentflow catalog validate --file catalog.json
  agentflow dispatch --catalog catalog.json --model gpt-4o-mini --prompt "hello"
  agentflow version`)
}

// =============================================================================
// logging
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
