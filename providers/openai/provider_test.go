package openai

import (
	"testing"

	"github.com/llmgateway/agentflow/providers"
)

func TestNewSetsProviderID(t *testing.T) {
	p := New("", nil)
	if p.ID() != "openai" {
		t.Fatalf("expected provider id openai, got %s", p.ID())
	}
}

func TestSupportsVisionAndTools(t *testing.T) {
	p := New("", nil)
	if !p.Supports("gpt-4o", providers.CapabilityVision) {
		t.Fatalf("expected vision support")
	}
	if !p.Supports("gpt-4o", providers.CapabilityTools) {
		t.Fatalf("expected tools support")
	}
}
