package groq

import "testing"

func TestNewSetsProviderID(t *testing.T) {
	p := New(nil)
	if p.ID() != "groq" {
		t.Fatalf("expected provider id groq, got %s", p.ID())
	}
}
