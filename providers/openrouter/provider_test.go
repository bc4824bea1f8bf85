package openrouter

import "testing"

func TestNewSetsProviderID(t *testing.T) {
	p := New(nil)
	if p.ID() != "openrouter" {
		t.Fatalf("expected provider id openrouter, got %s", p.ID())
	}
}
