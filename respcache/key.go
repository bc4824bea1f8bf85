package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/llmgateway/agentflow/types"
)

// keyMaterial is the stable, ordered projection of a request hashed
// into a cache key. stream_flag and session_id are deliberately
// excluded: two requests differing only in those fields must collide
// on the same key.
type keyMaterial struct {
	ProviderID      string             `json:"provider_id"`
	ModelID         string             `json:"model_id"`
	Messages        []keyMessage       `json:"messages"`
	Temperature     float32            `json:"temperature"`
	MaxOutputTokens int                `json:"max_output_tokens"`
	TopP            float32            `json:"top_p"`
	Stop            []string           `json:"stop"`
	ToolSpec        []types.ToolSchema `json:"tool_spec"`
}

// keyMessage is a Message stripped of per-instance noise (timestamps,
// caller metadata) that would otherwise make two semantically identical
// requests hash to different keys.
type keyMessage struct {
	Role       types.Role           `json:"role"`
	Content    string               `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCalls  []types.ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	Images     []types.ImageContent `json:"images,omitempty"`
	CacheHint  bool                 `json:"cache_hint,omitempty"`
}

func toKeyMessages(msgs []types.Message) []keyMessage {
	out := make([]keyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, keyMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Images:     m.Images,
			CacheHint:  m.CacheHint,
		})
	}
	return out
}

// Key computes the stable cache key for (providerID, modelID, req).
func Key(providerID, modelID string, req *types.Request) string {
	stop := append([]string(nil), req.Stop...)
	sort.Strings(stop)

	m := keyMaterial{
		ProviderID:      providerID,
		ModelID:         modelID,
		Messages:        toKeyMessages(req.Messages),
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		TopP:            req.TopP,
		Stop:            stop,
		ToolSpec:        req.ToolSpec,
	}
	// Deterministic marshal: json.Marshal sorts map keys and struct
	// fields follow declaration order, so this is stable across calls.
	data, _ := json.Marshal(m)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
