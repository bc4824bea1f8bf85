// Package anthropic is the dedicated Anthropic-native provider strategy.
// Claude's wire format differs from OpenAI's enough (x-api-key auth,
// a separate system field, array-shaped message content, SSE events
// keyed by type rather than a uniform delta object) that it gets its
// own implementation rather than riding the OpenAI-compatible base.
//
// CacheHint messages are translated to an explicit cache_control
// block, Claude's prompt-caching directive; the usage block reports
// cache creation and cache read token counts separately from
// input_tokens, which this provider folds back into the normalized
// Usage so prompt_tokens always covers the whole prompt.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/llmgateway/agentflow/internal/tlsutil"
	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/types"
	"go.uber.org/zap"
)

const (
	defaultBaseURL      = "https://api.anthropic.com"
	defaultModel        = "claude-3-5-sonnet-20241022"
	defaultMaxTokens    = 4096
	anthropicAPIVersion = "2023-06-01"
)

// Provider implements the Provider interface for Anthropic Claude.
type Provider struct {
	baseURL   string
	apiKeyEnv string
	client    *http.Client
	logger    *zap.Logger
	tokenizer types.Tokenizer
}

// New returns a Provider for Anthropic Claude. ANTHROPIC_BASE_URL, if
// set, overrides the default endpoint host (used in tests).
func New(logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := defaultBaseURL
	if override := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); override != "" {
		baseURL = override
	}
	return &Provider{
		baseURL:   baseURL,
		apiKeyEnv: "ANTHROPIC_API_KEY",
		client:    tlsutil.SecureHTTPClient(90 * time.Second),
		logger:    logger.With(zap.String("component", "provider.anthropic")),
		tokenizer: types.NewEstimateTokenizer(),
	}
}

func (p *Provider) ID() string { return "anthropic" }

func (p *Provider) Supports(modelID string, capability providers.Capability) bool {
	switch capability {
	case providers.CapabilityTools, providers.CapabilityStreaming, providers.CapabilityVision, providers.CapabilityPromptCache:
		return true
	default:
		return false
	}
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func (p *Provider) endpoint() string {
	return fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.baseURL, "/"))
}

// cacheControl is Claude's per-content-block prompt caching directive.
type cacheControl struct {
	Type string `json:"type"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	Content      string          `json:"content,omitempty"`
	CacheControl *cacheControl   `json:"cache_control,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	StopSeq     []string      `json:"stop_sequences,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
}

type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Role       string        `json:"role"`
	Content    []wireContent `json:"content"`
	Model      string        `json:"model"`
	StopReason string        `json:"stop_reason"`
	Usage      *wireUsage    `json:"usage,omitempty"`
}

type streamEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index,omitempty"`
	Delta        *streamDelta  `json:"delta,omitempty"`
	ContentBlock *wireContent  `json:"content_block,omitempty"`
	Message      *wireResponse `json:"message,omitempty"`
	Usage        *wireUsage    `json:"usage,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// toClaudeMessages extracts the system prompt and converts the rest,
// tagging any CacheHint message's last content block with an ephemeral
// cache_control directive — Claude caches everything up to and
// including that block on the vendor side.
func toClaudeMessages(msgs []types.Message) (string, []wireMessage) {
	var system string
	var out []wireMessage

	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = m.Content
			continue
		}
		if m.Role == types.RoleTool {
			out = append(out, wireMessage{
				Role: "user",
				Content: []wireContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
			continue
		}

		wm := wireMessage{Role: string(m.Role)}
		if m.Content != "" {
			wm.Content = append(wm.Content, wireContent{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			wm.Content = append(wm.Content, wireContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
		}
		if m.CacheHint && len(wm.Content) > 0 {
			wm.Content[len(wm.Content)-1].CacheControl = &cacheControl{Type: "ephemeral"}
		}
		if len(wm.Content) > 0 {
			out = append(out, wm)
		}
	}
	return system, out
}

func toClaudeTools(tools []types.ToolSchema) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

func chooseMaxTokens(req *types.Request) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	return defaultMaxTokens
}

func (p *Provider) buildRequest(modelID string, req *types.Request, stream bool) wireRequest {
	system, messages := toClaudeMessages(req.Messages)
	return wireRequest{
		Model:       modelID,
		Messages:    messages,
		System:      system,
		MaxTokens:   chooseMaxTokens(req),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeq:     req.Stop,
		Stream:      stream,
		Tools:       toClaudeTools(req.ToolSpec),
	}
}

func (p *Provider) apiKey() string {
	return strings.TrimSpace(os.Getenv(p.apiKeyEnv))
}

// Complete issues a non-streaming call.
func (p *Provider) Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, types.NewError(types.ErrAuthMissing, "anthropic: missing ANTHROPIC_API_KEY").WithProvider(p.ID())
	}

	start := time.Now()
	payload, err := json.Marshal(p.buildRequest(modelID, req, false))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
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
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body), p.ID(), resp.Header.Get("Retry-After"))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, types.NewError(types.ErrProviderProtocol, err.Error()).WithProvider(p.ID()).WithRetryable(true)
	}

	var content string
	var toolCalls []types.ToolCall
	for _, c := range wr.Content {
		switch c.Type {
		case "text":
			content += c.Text
		case "tool_use":
			toolCalls = append(toolCalls, types.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Input})
		}
	}

	usage := types.Usage{}
	estimated := wr.Usage == nil
	if wr.Usage != nil {
		// input_tokens excludes cache reads on this wire; the normalized
		// PromptTokens counts all input, cached or not.
		usage = types.Usage{
			PromptTokens:     wr.Usage.InputTokens + wr.Usage.CacheReadInputTokens,
			CompletionTokens: wr.Usage.OutputTokens,
			CacheWriteTokens: wr.Usage.CacheCreationInputTokens,
			CacheReadTokens:  wr.Usage.CacheReadInputTokens,
		}
	} else {
		usage = types.Usage{
			PromptTokens:     p.tokenizer.CountMessagesTokens(req.Messages),
			CompletionTokens: p.tokenizer.CountTokens(content),
		}
	}

	return &types.Response{
		Content:       content,
		ModelIDActual: wr.Model,
		ProviderID:    p.ID(),
		Usage:         usage,
		LatencyMS:     time.Since(start).Milliseconds(),
		FinishReason:  wr.StopReason,
		CreatedAt:     time.Now(),
		ToolCalls:     toolCalls,
		CostBreakdown: &types.CostBreakdown{Estimated: estimated},
	}, nil
}

// Stream issues a streaming call and decodes Claude's typed SSE event
// sequence into the normalized StreamChunk shape.
func (p *Provider) Stream(ctx context.Context, modelID string, req *types.Request) (<-chan types.StreamChunk, error) {
	apiKey := p.apiKey()
	if apiKey == "" {
		return nil, types.NewError(types.ErrAuthMissing, "anthropic: missing ANTHROPIC_API_KEY").WithProvider(p.ID())
	}

	payload, err := json.Marshal(p.buildRequest(modelID, req, true))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
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
		return nil, mapError(resp.StatusCode, readErrMsg(resp.Body), p.ID(), resp.Header.Get("Retry-After"))
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
	var currentModel string
	var completion strings.Builder
	var startUsage *wireUsage // input/cache token counts arrive on message_start
	toolAccumulator := make(map[int]*types.ToolCall)

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
		if line == "" || strings.HasPrefix(line, "event:") || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			emit(types.StreamChunk{FinishReason: "error", ProviderID: p.ID()})
			return
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				currentModel = event.Message.Model
				startUsage = event.Message.Usage
			}
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				toolAccumulator[event.Index] = &types.ToolCall{
					ID: event.ContentBlock.ID, Name: event.ContentBlock.Name, Arguments: json.RawMessage("{}"),
				}
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			if event.Delta.Type == "text_delta" {
				completion.WriteString(event.Delta.Text)
				if !emit(types.StreamChunk{DeltaContent: event.Delta.Text, ProviderID: p.ID(), ModelIDActual: currentModel}) {
					return
				}
			} else if event.Delta.Type == "input_json_delta" {
				if tc, ok := toolAccumulator[event.Index]; ok {
					tc.Arguments = append(tc.Arguments, []byte(event.Delta.PartialJSON)...)
				}
			}
		case "content_block_stop":
			if tc, ok := toolAccumulator[event.Index]; ok {
				if !emit(types.StreamChunk{DeltaToolCalls: []types.ToolCall{*tc}, ProviderID: p.ID(), ModelIDActual: currentModel}) {
					return
				}
				delete(toolAccumulator, event.Index)
			}
		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				usage := &types.Usage{PromptTokens: promptEstimate, CompletionTokens: p.tokenizer.CountTokens(completion.String())}
				if event.Usage != nil {
					usage.CompletionTokens = event.Usage.OutputTokens
				}
				if startUsage != nil {
					usage.PromptTokens = startUsage.InputTokens + startUsage.CacheReadInputTokens
					usage.CacheWriteTokens = startUsage.CacheCreationInputTokens
					usage.CacheReadTokens = startUsage.CacheReadInputTokens
				}
				emit(types.StreamChunk{FinishReason: event.Delta.StopReason, AccumulatedUsage: usage, ProviderID: p.ID(), ModelIDActual: currentModel})
				return
			}
		case "message_stop":
			return
		}
	}
}

// ListModels returns a static discovery list; Anthropic has no
// public model-listing endpoint as of this writing.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return string(data)
}

func mapError(status int, msg string, provider string, retryAfter string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewError(types.ErrAuthMissing, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		e := types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
		if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
			e = e.WithRetryAfter(time.Duration(secs) * time.Second)
		} else if at, err := http.ParseTime(retryAfter); err == nil && time.Until(at) > 0 {
			e = e.WithRetryAfter(time.Until(at))
		}
		return e
	case http.StatusBadRequest:
		if strings.Contains(msg, "credit") || strings.Contains(msg, "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithProvider(provider)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case 529:
		return types.NewError(types.ErrModelOverloaded, msg).WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}
