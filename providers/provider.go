// Package providers defines the capability interface every vendor
// strategy implements and the shared config/error-mapping helpers those
// strategies build on.
//
// The pattern throughout is an interface plus constructor-
// parameterized structs, never subclassing: the OpenAI-wire family is
// one shared implementation configured per vendor, and the dedicated
// vendors (Anthropic, Gemini, Bedrock) implement the same four
// operations directly.
package providers

import (
	"context"

	"github.com/llmgateway/agentflow/types"
)

// Capability names a provider/model feature the router and validator
// query before routing a request to it.
type Capability string

const (
	CapabilityVision      Capability = "vision"
	CapabilityTools       Capability = "tools"
	CapabilityReasoning   Capability = "reasoning"
	CapabilityPromptCache Capability = "prompt_cache"
	CapabilityStreaming   Capability = "streaming"
)

// Provider is the polymorphic seam of the gateway: one implementation
// per vendor family, each translating the normalized request/response
// shape to and from that vendor's wire format. The retry driver and
// router never see a concrete provider type, only this interface.
type Provider interface {
	// ID returns the provider_id this instance serves, e.g. "openai".
	ID() string

	// Complete issues a non-streaming call for req against modelID and
	// returns the normalized response.
	Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error)

	// Stream issues a streaming call. The returned channel yields zero
	// or more content chunks followed by exactly one chunk carrying a
	// non-empty FinishReason and the authoritative (or estimated) usage;
	// it is closed after that chunk or after ctx is cancelled. A
	// non-nil error means the stream could not be started at all — no
	// chunk will ever arrive on the channel in that case.
	Stream(ctx context.Context, modelID string, req *types.Request) (<-chan types.StreamChunk, error)

	// ListModels is best-effort: vendors without a discovery endpoint
	// may return the catalog's projection for this provider instead.
	ListModels(ctx context.Context) ([]string, error)

	// Supports is a cheap local lookup, never a network call.
	Supports(modelID string, capability Capability) bool
}
