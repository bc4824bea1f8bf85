// Package tokenizer provides a catalog-aware types.Tokenizer that counts
// OpenAI-family prompts exactly via tiktoken and falls back to the
// CJK-aware character estimator for every other vendor.
//
// Encoders initialize lazily and degrade to the estimator when a BPE
// rank file cannot be loaded, so the types.Tokenizer methods never
// return errors and drop straight into router.Router.Tokenizer and
// gateway.Options.Tokenizer without an adapter at every call site.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/llmgateway/agentflow/types"
)

// modelEncoding names the tiktoken encoding and declared context size for
// a known OpenAI model family. Prefix-matched so "gpt-4o-2024-08-06"
// resolves against the "gpt-4o" entry.
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":            {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
}

// Tiktoken adapts tiktoken-go to types.Tokenizer for a single model,
// falling back to a character-based estimate if the encoding fails to
// initialize (e.g. no network access to fetch the BPE rank file).
type Tiktoken struct {
	model     string
	encoding  string
	fallback  *types.EstimateTokenizer
	once      sync.Once
	enc       *tiktoken.Tiktoken
	initErr   error
}

// New returns a Tiktoken tokenizer for model, resolving its encoding by
// exact match or longest known prefix, defaulting to cl100k_base for
// unrecognized OpenAI-shaped model names.
func New(model string) *Tiktoken {
	encoding := "cl100k_base"
	if info, ok := lookupEncoding(model); ok {
		encoding = info.encoding
	}
	return &Tiktoken{model: model, encoding: encoding, fallback: types.NewEstimateTokenizer()}
}

func lookupEncoding(model string) (struct {
	encoding  string
	maxTokens int
}, bool) {
	if info, ok := modelEncodings[model]; ok {
		return info, true
	}
	var best string
	var bestInfo struct {
		encoding  string
		maxTokens int
	}
	for prefix, info := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best, bestInfo = prefix, info
		}
	}
	return bestInfo, best != ""
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = err
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens implements types.Tokenizer.
func (t *Tiktoken) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessageTokens implements types.Tokenizer, replicating the
// OpenAI chat-format per-message overhead (role/name markers).
func (t *Tiktoken) CountMessageTokens(msg types.Message) int {
	if err := t.init(); err != nil {
		return t.fallback.CountMessageTokens(msg)
	}
	tokens := 4 + len(t.enc.Encode(msg.Content, nil, nil)) + len(t.enc.Encode(string(msg.Role), nil, nil))
	if msg.Name != "" {
		tokens += len(t.enc.Encode(msg.Name, nil, nil))
	}
	for _, tc := range msg.ToolCalls {
		tokens += len(t.enc.Encode(tc.Name, nil, nil))
		tokens += len(tc.Arguments) / 4
	}
	return tokens
}

// CountMessagesTokens implements types.Tokenizer.
func (t *Tiktoken) CountMessagesTokens(msgs []types.Message) int {
	total := 3 // conversation-end overhead
	for _, msg := range msgs {
		total += t.CountMessageTokens(msg)
	}
	return total
}

// EstimateToolTokens implements types.Tokenizer.
func (t *Tiktoken) EstimateToolTokens(tools []types.ToolSchema) int {
	if err := t.init(); err != nil {
		return t.fallback.EstimateToolTokens(tools)
	}
	total := 0
	for _, tool := range tools {
		total += len(t.enc.Encode(tool.Name, nil, nil))
		total += len(t.enc.Encode(tool.Description, nil, nil))
		total += len(tool.Parameters) / 4
		total += 10
	}
	return total
}

// ByFamily selects a per-model-family Tokenizer: exact tiktoken counts for
// OpenAI-shaped model IDs (openai, openrouter passthrough of an OpenAI
// model, any openaicompat model sharing the gpt-* naming), and the
// CJK-aware character estimator for every other vendor, whose tokenizers
// are either undocumented or not worth vendoring a BPE table for.
type ByFamily struct {
	fallback *types.EstimateTokenizer
}

// NewByFamily returns the router/gateway default Tokenizer.
func NewByFamily() *ByFamily {
	return &ByFamily{fallback: types.NewEstimateTokenizer()}
}

func (b *ByFamily) tokenizerFor(model string) types.Tokenizer {
	if _, ok := lookupEncoding(model); ok {
		return New(model)
	}
	return b.fallback
}

func (b *ByFamily) CountTokens(text string) int {
	return b.fallback.CountTokens(text)
}

func (b *ByFamily) CountMessageTokens(msg types.Message) int {
	return b.fallback.CountMessageTokens(msg)
}

// CountMessagesTokens picks the tokenizer by the last assistant/user
// message's implied model family is not knowable here (the Tokenizer
// interface is model-agnostic), so ByFamily applies its OpenAI-exact
// path only through CountForModel; CountMessagesTokens itself uses the
// estimator, matching the interface the router was built against.
func (b *ByFamily) CountMessagesTokens(msgs []types.Message) int {
	return b.fallback.CountMessagesTokens(msgs)
}

func (b *ByFamily) EstimateToolTokens(tools []types.ToolSchema) int {
	return b.fallback.EstimateToolTokens(tools)
}

// CountForModel counts prompt tokens for msgs+tools using the exact
// tiktoken encoder when model is a recognized OpenAI family member, and
// the character estimator otherwise. Callers that know the target model
// up front (the cost accountant, per-candidate budget pre-checks) should
// prefer this over the model-agnostic types.Tokenizer methods.
func (b *ByFamily) CountForModel(model string, msgs []types.Message, tools []types.ToolSchema) int {
	tk := b.tokenizerFor(model)
	return tk.CountMessagesTokens(msgs) + tk.EstimateToolTokens(tools)
}
