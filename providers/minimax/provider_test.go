package minimax

import "testing"

func TestNewSetsProviderID(t *testing.T) {
	p := New(nil)
	if p.ID() != "minimax" {
		t.Fatalf("expected provider id minimax, got %s", p.ID())
	}
}
