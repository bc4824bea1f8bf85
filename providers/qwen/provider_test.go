package qwen

import "testing"

func TestNewSetsProviderID(t *testing.T) {
	p := New(nil)
	if p.ID() != "qwen" {
		t.Fatalf("expected provider id qwen, got %s", p.ID())
	}
}
