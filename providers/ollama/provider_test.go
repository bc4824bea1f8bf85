package ollama

import (
	"context"
	"os"
	"testing"

	"github.com/llmgateway/agentflow/types"
)

func TestNewDefaultsToLocalhost(t *testing.T) {
	p := New(nil)
	if p.ID() != "ollama" {
		t.Fatalf("expected provider id ollama, got %s", p.ID())
	}
}

func TestNewHonorsOllamaBaseURLOverride(t *testing.T) {
	os.Setenv("OLLAMA_BASE_URL", "http://ollama-host:11434")
	defer os.Unsetenv("OLLAMA_BASE_URL")
	p := New(nil)
	if p.ID() != "ollama" {
		t.Fatalf("expected provider id ollama, got %s", p.ID())
	}
}

// TestCompleteDoesNotRequireAPIKey asserts the local-daemon provider
// never rejects a call for a missing API key the way hosted vendors
// do — it should attempt the HTTP call (and fail on connection refused
// against a nonexistent daemon) rather than short-circuit with
// ErrAuthMissing.
func TestCompleteDoesNotRequireAPIKey(t *testing.T) {
	os.Unsetenv("OLLAMA_API_KEY")
	os.Setenv("OLLAMA_BASE_URL", "http://127.0.0.1:1")
	defer os.Unsetenv("OLLAMA_BASE_URL")

	p := New(nil)
	_, err := p.Complete(context.Background(), "llama3", &types.Request{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	if err == nil {
		t.Fatal("expected a transport error against an unreachable daemon")
	}
	if types.GetErrorCode(err) == types.ErrAuthMissing {
		t.Fatalf("ollama must not require an API key, got ErrAuthMissing")
	}
}
