package types

import "time"

// CachePolicy controls how the response cache treats a request.
type CachePolicy string

const (
	// CachePolicyAuto is the default: cacheable non-streaming responses
	// that finished cleanly are stored and served from cache.
	CachePolicyAuto CachePolicy = ""
	// CachePolicyBypass skips both cache lookup and cache storage for
	// this request.
	CachePolicyBypass CachePolicy = "bypass"
)

// Request is the normalized chat-completion request accepted by the
// gateway. A provider strategy never sees a vendor-specific shape — it
// always translates from this one.
type Request struct {
	// ModelID, when set, pins the router's chain head to that model;
	// when empty the router chooses freely under the active strategy.
	ModelID         string        `json:"model_id"`
	Messages        []Message     `json:"messages"`
	Temperature     float32       `json:"temperature"`
	MaxOutputTokens int           `json:"max_output_tokens,omitempty"`
	TopP            float32       `json:"top_p,omitempty"`
	Stop            []string      `json:"stop,omitempty"`
	StreamFlag      bool          `json:"stream_flag,omitempty"`
	ToolSpec        []ToolSchema  `json:"tool_spec,omitempty"`
	CachePolicy     CachePolicy   `json:"cache_policy,omitempty"`
	SessionID       string        `json:"session_id,omitempty"`
}

// Usage records token consumption for a single call. All fields are
// counts, never estimates masquerading as exact figures — estimated
// usage is flagged on the Response's CostBreakdown instead.
type Usage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	CachedPromptTokens  int `json:"cached_prompt_tokens,omitempty"`
	CacheWriteTokens    int `json:"cache_write_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_tokens,omitempty"`
	ReasoningTokens     int `json:"reasoning_tokens,omitempty"`
}

// CostTerm names one addend of a Response's cost_usd, for auditing.
type CostTerm struct {
	Name       string  `json:"name"`
	Tokens     int     `json:"tokens"`
	PricePerMT float64 `json:"price_per_mtok"`
	AmountUSD  float64 `json:"amount_usd"`
}

// CostBreakdown is the itemized derivation of a Response's cost_usd.
type CostBreakdown struct {
	Terms       []CostTerm `json:"terms"`
	FromCache   bool       `json:"from_cache,omitempty"`
	Estimated   bool       `json:"estimated,omitempty"`
}

// Sum returns the sum of all term amounts, rounded to the nearest
// $0.000001 the way the cost accountant rounds cost_usd itself.
func (b CostBreakdown) Sum() float64 {
	var total float64
	for _, t := range b.Terms {
		total += t.AmountUSD
	}
	return RoundCost(total)
}

// RoundCost rounds a dollar amount to the nearest $0.000001.
func RoundCost(v float64) float64 {
	const scale = 1e6
	if v < 0 {
		return -RoundCost(-v)
	}
	return float64(int64(v*scale+0.5)) / scale
}

// Response is the normalized chat-completion response returned by the
// gateway, regardless of which vendor actually served the call.
type Response struct {
	Content         string         `json:"content"`
	ModelIDActual   string         `json:"model_id_actual"`
	ProviderID      string         `json:"provider_id"`
	Usage           Usage          `json:"usage"`
	CostUSD         float64        `json:"cost_usd"`
	LatencyMS       int64          `json:"latency_ms"`
	FinishReason    string         `json:"finish_reason"`
	CreatedAt       time.Time      `json:"created_at"`
	CostBreakdown   *CostBreakdown `json:"cost_breakdown,omitempty"`
	ToolCalls       []ToolCall     `json:"tool_calls,omitempty"`
}

// StreamChunk is one element of a dispatch_stream sequence. Every stream
// carries exactly one chunk with a non-empty FinishReason, and it is
// always the last chunk yielded; that chunk also carries the complete,
// authoritative Usage.
type StreamChunk struct {
	DeltaContent     string     `json:"delta_content,omitempty"`
	DeltaToolCalls   []ToolCall `json:"delta_tool_calls,omitempty"`
	AccumulatedUsage *Usage     `json:"accumulated_usage,omitempty"`
	FinishReason     string     `json:"finish_reason,omitempty"`

	// Attribution metadata carried alongside the delta so stream
	// consumers and the gateway's own bookkeeping know which candidate
	// is speaking without waiting for the final chunk.
	ProviderID    string `json:"provider_id,omitempty"`
	ModelIDActual string `json:"model_id_actual,omitempty"`
}
