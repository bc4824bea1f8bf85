// Package gemini is the dedicated Google Gemini native provider
// strategy. Gemini's wire format differs enough from both OpenAI and
// Anthropic (x-goog-api-key header, "contents"/"parts" message shape,
// a separate systemInstruction field, newline-delimited JSON objects
// instead of SSE `data:` framing) that it gets its own implementation
// rather than riding openaicompat.
//
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/llmgateway/agentflow/internal/tlsutil"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/types"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
)

// Provider implements providers.Provider for Google Gemini.
type Provider struct {
	baseURL   string
	apiKeyEnv string
	client    *http.Client
	logger    *zap.Logger
	tokenizer types.Tokenizer
}

// New returns a Provider for Gemini. GEMINI_BASE_URL, if set, overrides
// the default endpoint host (used in tests).
func New(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := defaultBaseURL
	if override := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")); override != "" {
		baseURL = override
	}
	return &Provider{
		baseURL:   baseURL,
		apiKeyEnv: "GEMINI_API_KEY",
		client:    tlsutil.SecureHTTPClient(90 * time.Second),
		logger:    logger.With(zap.String("component", "provider.gemini")),
		tokenizer: types.NewEstimateTokenizer(),
	}
}

func (p *Provider) ID() string { return "gemini" }

func (p *Provider) Supports(modelID string, capability providers.Capability) bool {
	switch capability {
	case providers.CapabilityTools, providers.CapabilityStreaming, providers.CapabilityVision:
		return true
	default:
		return false
	}
}

func (p *Provider) apiKey() string {
	return strings.TrimSpace(os.Getenv(p.apiKeyEnv))
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-goog-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// --- wire types ---

type wireContent struct {
	Role  string      `json:"role,omitempty"`
	Parts []wirePart  `json:"parts"`
}

type wirePart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall    `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResp    `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type wireFunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type wireTool struct {
	FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations,omitempty"`
}

type wireFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type wireGenerationConfig struct {
	Temperature     float32  `json:"temperature,omitempty"`
	TopP            float32  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type wireRequest struct {
	Contents          []wireContent         `json:"contents"`
	Tools             []wireTool            `json:"tools,omitempty"`
	GenerationConfig  *wireGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *wireContent          `json:"systemInstruction,omitempty"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason,omitempty"`
	Index        int         `json:"index"`
}

type wireUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type wireResponse struct {
	Candidates    []wireCandidate    `json:"candidates"`
	UsageMetadata *wireUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string             `json:"modelVersion,omitempty"`
	ResponseID    string             `json:"responseId,omitempty"`
}

type wireErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// toGeminiContents converts the normalized message list into Gemini's
// contents/parts shape, pulling the system message out into its own
// field the way Gemini's API requires.
func toGeminiContents(msgs []types.Message) (*wireContent, []wireContent) {
	var systemInstruction *wireContent
	var contents []wireContent

	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			systemInstruction = &wireContent{Parts: []wirePart{{Text: m.Content}}}
			continue
		}

		role := string(m.Role)
		if role == "assistant" {
			role = "model"
		}

		content := wireContent{Role: role}
		if m.Content != "" {
			content.Parts = append(content.Parts, wirePart{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var args map[string]interface{}
			if err := json.Unmarshal(tc.Arguments, &args); err == nil {
				content.Parts = append(content.Parts, wirePart{FunctionCall: &wireFunctionCall{Name: tc.Name, Args: args}})
			}
		}
		if m.Role == types.RoleTool && m.ToolCallID != "" {
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]interface{}{"result": m.Content}
			}
			content.Parts = append(content.Parts, wirePart{FunctionResponse: &wireFunctionResp{Name: m.Name, Response: response}})
		}

		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}

	return systemInstruction, contents
}

func toGeminiTools(tools []types.ToolSchema) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]wireFunctionDecl, 0, len(tools))
	for _, t := range tools {
		var params map[string]interface{}
		if err := json.Unmarshal(t.Parameters, &params); err == nil {
			declarations = append(declarations, wireFunctionDecl{Name: t.Name, Description: t.Description, Parameters: params})
		}
	}
	if len(declarations) == 0 {
		return nil
	}
	return []wireTool{{FunctionDeclarations: declarations}}
}

func (p *Provider) buildRequest(req *types.Request) wireRequest {
	systemInstruction, contents := toGeminiContents(req.Messages)
	body := wireRequest{
		Contents:          contents,
		Tools:             toGeminiTools(req.ToolSpec),
		SystemInstruction: systemInstruction,
	}
	if req.Temperature > 0 || req.TopP > 0 || req.MaxOutputTokens > 0 || len(req.Stop) > 0 {
		body.GenerationConfig = &wireGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
			StopSequences:   req.Stop,
		}
	}
	return body
}

func (p *Provider) endpoint(modelID, verb string) string {
	if modelID == "" {
		modelID = defaultModel
	}
	return fmt.Sprintf("%s/v1beta/models/%s:%s", strings.TrimRight(p.baseURL, "/"), modelID, verb)
}

// Complete issues a non-streaming generateContent call.
func (p *Provider) Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, types.NewError(types.ErrAuthMissing, "gemini: missing GEMINI_API_KEY").WithProvider(p.ID())
	}

	start := time.Now()
	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(modelID, "generateContent"), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrTransientNetwork, err.Error()).WithRetryable(true).WithProvider(p.ID())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body), p.ID())
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, types.NewError(types.ErrProviderProtocol, err.Error()).WithProvider(p.ID()).WithRetryable(true)
	}

	var content string
	var toolCalls []types.ToolCall
	var finishReason string
	if len(wr.Candidates) > 0 {
		c := wr.Candidates[0]
		finishReason = c.FinishReason
		for _, part := range c.Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, types.ToolCall{Name: part.FunctionCall.Name, Arguments: argsJSON})
			}
		}
	}

	usage := types.Usage{}
	estimated := wr.UsageMetadata == nil
	if wr.UsageMetadata != nil {
		usage = types.Usage{
			PromptTokens:     wr.UsageMetadata.PromptTokenCount,
			CompletionTokens: wr.UsageMetadata.CandidatesTokenCount,
		}
	} else {
		usage = types.Usage{
			PromptTokens:     p.tokenizer.CountMessagesTokens(req.Messages),
			CompletionTokens: p.tokenizer.CountTokens(content),
		}
	}

	return &types.Response{
		Content:       content,
		ModelIDActual: wr.ModelVersion,
		ProviderID:    p.ID(),
		Usage:         usage,
		LatencyMS:     time.Since(start).Milliseconds(),
		FinishReason:  finishReason,
		CreatedAt:     time.Now(),
		ToolCalls:     toolCalls,
		CostBreakdown: &types.CostBreakdown{Estimated: estimated},
	}, nil
}

// Stream issues a streamGenerateContent call with alt=sse (without it
// the endpoint streams one growing JSON array instead of discrete
// frames) and decodes the SSE events into normalized StreamChunks.
func (p *Provider) Stream(ctx context.Context, modelID string, req *types.Request) (<-chan types.StreamChunk, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, types.NewError(types.ErrAuthMissing, "gemini: missing GEMINI_API_KEY").WithProvider(p.ID())
	}

	payload, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(modelID, "streamGenerateContent")+"?alt=sse", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}
	p.buildHeaders(httpReq, apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrTransientNetwork, err.Error()).WithRetryable(true).WithProvider(p.ID())
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body), p.ID())
	}

	promptEstimate := p.tokenizer.CountMessagesTokens(req.Messages)
	ch := make(chan types.StreamChunk)
	go p.runStream(ctx, resp.Body, ch, promptEstimate)
	return ch, nil
}

func (p *Provider) runStream(ctx context.Context, body io.ReadCloser, ch chan<- types.StreamChunk, promptEstimate int) {
	defer body.Close()
	defer close(ch)

	reader := bufio.NewReader(body)
	var completion strings.Builder

	emit := func(c types.StreamChunk) bool {
		select {
		case <-ctx.Done():
			return false
		case ch <- c:
			return true
		}
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				emit(types.StreamChunk{FinishReason: "error", ProviderID: p.ID()})
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var wr wireResponse
		if err := json.Unmarshal([]byte(data), &wr); err != nil {
			continue
		}

		for _, c := range wr.Candidates {
			var deltaText string
			var deltaTools []types.ToolCall
			for _, part := range c.Content.Parts {
				if part.Text != "" {
					deltaText += part.Text
				}
				if part.FunctionCall != nil {
					argsJSON, _ := json.Marshal(part.FunctionCall.Args)
					deltaTools = append(deltaTools, types.ToolCall{Name: part.FunctionCall.Name, Arguments: argsJSON})
				}
			}
			completion.WriteString(deltaText)

			if c.FinishReason != "" {
				usage := &types.Usage{PromptTokens: promptEstimate, CompletionTokens: p.tokenizer.CountTokens(completion.String())}
				if wr.UsageMetadata != nil {
					usage = &types.Usage{PromptTokens: wr.UsageMetadata.PromptTokenCount, CompletionTokens: wr.UsageMetadata.CandidatesTokenCount}
				}
				if !emit(types.StreamChunk{DeltaContent: deltaText, DeltaToolCalls: deltaTools, FinishReason: c.FinishReason, AccumulatedUsage: usage, ProviderID: p.ID(), ModelIDActual: wr.ModelVersion}) {
					return
				}
				continue
			}

			if !emit(types.StreamChunk{DeltaContent: deltaText, DeltaToolCalls: deltaTools, ProviderID: p.ID(), ModelIDActual: wr.ModelVersion}) {
				return
			}
		}
	}
}

// ListModels returns a static discovery list; this module doesn't call
// Gemini's dynamic /v1beta/models endpoint to keep provider startup
// offline-friendly.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"gemini-2.5-flash", "gemini-2.5-pro"}, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp wireErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

func mapError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrAuthMissing, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "limit") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}
