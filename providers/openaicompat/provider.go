// Package openaicompat is the shared provider implementation embedded
// by every vendor whose wire format matches OpenAI's chat-completions
// endpoint (OpenAI, DeepSeek, Qwen, GLM, Kimi, MiniMax, Grok, Llama,
// Groq, OpenRouter, Ollama). Vendor packages parameterize
// this with {base_url, auth scheme, model-id translation} rather than
// subclassing it, per the gateway's "polymorphism without inheritance"
// rule.
//
// The wire types are hand-rolled rather than pulled from a vendor SDK:
// the surface this gateway drives (chat completions, SSE streaming,
// model listing) is small and stable, and one set of wire structs
// shared by a dozen vendors beats a dozen SDK dependency trees.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/llmgateway/agentflow/internal/tlsutil"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/types"
	"go.uber.org/zap"
)

// Config parameterizes one vendor's OpenAI-compatible endpoint.
type Config struct {
	ProviderID     string
	BaseURL        string
	APIKeyEnv      string
	EndpointPath   string // default "/chat/completions", relative to BaseURL
	ModelsEndpoint string // default "/models", relative to BaseURL
	Timeout        time.Duration

	// BuildHeaders overrides the default "Authorization: Bearer <key>"
	// header construction, for vendors using a different scheme.
	BuildHeaders func(req *http.Request, apiKey string)

	// CacheHintHeader/CacheHintValue let a vendor that exposes prompt
	// caching through an HTTP header (rather than an in-body field)
	// opt a request with any CacheHint message into it.
	CacheHintHeader string
	CacheHintValue  string

	// RequestsPerSecond/Burst configure client-side pacing ahead of
	// vendor 429s, one token bucket per Provider instance. Zero means
	// unlimited (the default — most vendor packages opt in explicitly).
	RequestsPerSecond float64
	Burst             int

	// OptionalAuth allows a missing APIKeyEnv value to proceed without
	// an AuthMissing error, for local-daemon vendors (e.g. Ollama) that
	// don't require credentials by default. The Authorization header is
	// only sent when a key is actually present.
	OptionalAuth bool
}

// Provider is the OpenAI-compatible base implementation. Vendor
// packages construct one of these directly; none of them need their
// own Complete/Stream logic.
type Provider struct {
	cfg       Config
	client    *http.Client
	logger    *zap.Logger
	tokenizer types.Tokenizer
	limiter   *rate.Limiter // nil when unlimited
}

// New builds a Provider for cfg.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Provider{
		cfg:       cfg,
		client:    tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:    logger.With(zap.String("component", "provider."+cfg.ProviderID)),
		tokenizer: types.NewEstimateTokenizer(),
		limiter:   limiter,
	}
}

// wait blocks until the rate limiter admits one more request, or ctx is
// cancelled first. A Provider with no configured RequestsPerSecond
// never blocks here.
func (p *Provider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return types.NewError(types.ErrCancelled, "rate limit wait: "+err.Error()).WithProvider(p.cfg.ProviderID)
	}
	return nil
}

func (p *Provider) ID() string { return p.cfg.ProviderID }

func (p *Provider) Supports(modelID string, capability providers.Capability) bool {
	// The base implementation has no catalog access of its own; the
	// dispatcher consults the catalog entry directly. A bare-bones
	// local answer avoids a nil-interface panic if called standalone.
	return capability == providers.CapabilityTools || capability == providers.CapabilityStreaming
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, apiKey)
		return
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}

// requireAuth reports whether a missing API key should fail the call.
func (p *Provider) requireAuth(apiKey string) error {
	if apiKey != "" || p.cfg.OptionalAuth {
		return nil
	}
	return types.NewError(types.ErrAuthMissing, fmt.Sprintf("%s: missing %s", p.cfg.ProviderID, p.cfg.APIKeyEnv)).
		WithProvider(p.cfg.ProviderID)
}

func (p *Provider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.cfg.BaseURL, "/"), path)
}

func (p *Provider) apiKey() string {
	return strings.TrimSpace(envLookup(p.cfg.APIKeyEnv))
}

func (p *Provider) requestBody(modelID string, req *types.Request, stream bool) wireRequest {
	return wireRequest{
		Model:       modelID,
		Messages:    toWireMessages(req.Messages),
		Tools:       toWireTools(req.ToolSpec),
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
}

// Complete issues a non-streaming call.
func (p *Provider) Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error) {
	apiKey := p.apiKey()
	if err := p.requireAuth(apiKey); err != nil {
		return nil, err
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body := p.requestBody(modelID, req, false)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.cfg.ProviderID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.cfg.ProviderID)
	}
	p.buildHeaders(httpReq, apiKey)
	p.applyCacheHintHeader(httpReq, req.Messages)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err, p.cfg.ProviderID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.cfg.ProviderID, resp.Header.Get("Retry-After"))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, types.NewError(types.ErrProviderProtocol, err.Error()).WithProvider(p.cfg.ProviderID).WithRetryable(true)
	}
	if len(wr.Choices) == 0 {
		return nil, types.NewError(types.ErrProviderProtocol, "empty choices array").WithProvider(p.cfg.ProviderID)
	}

	choice := wr.Choices[0]
	usage, estimated := p.usageOrEstimate(wr.Usage, req, choice.Message.Content)

	return &types.Response{
		Content:       choice.Message.Content,
		ModelIDActual: wr.Model,
		ProviderID:    p.cfg.ProviderID,
		Usage:         usage,
		LatencyMS:     time.Since(start).Milliseconds(),
		FinishReason:  choice.FinishReason,
		CreatedAt:     time.Now(),
		ToolCalls:     toNormalizedToolCalls(choice.Message.ToolCalls),
		CostBreakdown: &types.CostBreakdown{Estimated: estimated},
	}, nil
}

// Stream issues a streaming call over SSE.
func (p *Provider) Stream(ctx context.Context, modelID string, req *types.Request) (<-chan types.StreamChunk, error) {
	apiKey := p.apiKey()
	if err := p.requireAuth(apiKey); err != nil {
		return nil, err
	}
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	body := p.requestBody(modelID, req, true)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.cfg.ProviderID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.cfg.ProviderID)
	}
	p.buildHeaders(httpReq, apiKey)
	p.applyCacheHintHeader(httpReq, req.Messages)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err, p.cfg.ProviderID)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.cfg.ProviderID, resp.Header.Get("Retry-After"))
	}

	promptEstimate := p.tokenizer.CountMessagesTokens(req.Messages)
	return streamSSE(ctx, resp.Body, p.cfg.ProviderID, promptEstimate, p.tokenizer), nil
}

// ListModels hits the vendor's discovery endpoint.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.cfg.ProviderID)
	}
	p.buildHeaders(httpReq, p.apiKey())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapTransportError(err, p.cfg.ProviderID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.cfg.ProviderID, resp.Header.Get("Retry-After"))
	}

	var listResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, types.NewError(types.ErrProviderProtocol, err.Error()).WithProvider(p.cfg.ProviderID)
	}
	ids := make([]string, 0, len(listResp.Data))
	for _, m := range listResp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// usageOrEstimate returns the vendor-reported usage when present, else
// a tokenizer-derived estimate flagged for the cost accountant.
func (p *Provider) usageOrEstimate(wu *wireUsage, req *types.Request, completion string) (types.Usage, bool) {
	if wu != nil {
		return types.Usage{
			PromptTokens:     wu.PromptTokens,
			CompletionTokens: wu.CompletionTokens,
		}, false
	}
	return types.Usage{
		PromptTokens:     p.tokenizer.CountMessagesTokens(req.Messages),
		CompletionTokens: p.tokenizer.CountTokens(completion),
	}, true
}

func (p *Provider) applyCacheHintHeader(req *http.Request, messages []types.Message) {
	if p.cfg.CacheHintHeader == "" {
		return
	}
	if hasCacheHint(messages) {
		req.Header.Set(p.cfg.CacheHintHeader, p.cfg.CacheHintValue)
	}
}

func hasCacheHint(messages []types.Message) bool {
	for _, m := range messages {
		if m.CacheHint {
			return true
		}
	}
	return false
}

// envLookup sources vendor credentials from the process environment,
// per the gateway's credential design: absence is not a load-time
// error, only an AuthMissing error when a request actually targets
// this provider.
func envLookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
