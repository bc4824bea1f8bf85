package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmgateway/agentflow/types"
)

func TestLookupEncodingPrefixMatch(t *testing.T) {
	info, ok := lookupEncoding("gpt-4o-2024-08-06")
	assert.True(t, ok, "dated gpt-4o IDs resolve via prefix")
	assert.Equal(t, "o200k_base", info.encoding)

	_, ok = lookupEncoding("claude-3-5-sonnet-20241022")
	assert.False(t, ok)
}

func TestCountTokensNeverZeroForText(t *testing.T) {
	// Works with or without a reachable BPE rank file: the encoder
	// falls back to the character estimator when it cannot initialize.
	tk := New("gpt-4o-mini")
	assert.Greater(t, tk.CountTokens("hello world, this is a prompt"), 0)
	assert.Equal(t, 0, tk.CountTokens(""))
}

func TestByFamilyCountForModel(t *testing.T) {
	b := NewByFamily()
	msgs := []types.Message{{Role: types.RoleUser, Content: "what is 2+2?"}}

	openaiCount := b.CountForModel("gpt-4o-mini", msgs, nil)
	otherCount := b.CountForModel("llama-3.1-8b-instant", msgs, nil)
	assert.Greater(t, openaiCount, 0)
	assert.Greater(t, otherCount, 0)
}
