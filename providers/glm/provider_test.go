package glm

import "testing"

func TestNewSetsProviderID(t *testing.T) {
	p := New(nil)
	if p.ID() != "glm" {
		t.Fatalf("expected provider id glm, got %s", p.ID())
	}
}
