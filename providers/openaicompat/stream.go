package openaicompat

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/llmgateway/agentflow/types"
)

// streamSSE parses an OpenAI-compatible SSE stream. It accumulates
// completion text so that if the vendor never emits a usage field, the
// final chunk still carries an estimated Usage instead of a zero value.
func streamSSE(ctx streamContext, body io.ReadCloser, providerID string, promptEstimate int, tokenizer types.Tokenizer) <-chan types.StreamChunk {
	ch := make(chan types.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		reader := bufio.NewReader(body)
		var completion strings.Builder
		var finalUsage *types.Usage

		emit := func(chunk types.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- chunk:
				return true
			}
		}

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					emit(types.StreamChunk{FinishReason: "error", ProviderID: providerID})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var wr wireResponse
			if err := json.Unmarshal([]byte(data), &wr); err != nil {
				emit(types.StreamChunk{FinishReason: "error", ProviderID: providerID})
				return
			}
			if wr.Usage != nil {
				finalUsage = &types.Usage{PromptTokens: wr.Usage.PromptTokens, CompletionTokens: wr.Usage.CompletionTokens}
			}

			for _, choice := range wr.Choices {
				delta := ""
				if choice.Delta != nil {
					delta = choice.Delta.Content
				}
				completion.WriteString(delta)

				if choice.FinishReason == "" {
					if !emit(types.StreamChunk{
						DeltaContent:  delta,
						ProviderID:    providerID,
						ModelIDActual: wr.Model,
					}) {
						return
					}
					continue
				}

				usage := finalUsage
				if usage == nil {
					usage = &types.Usage{
						PromptTokens:     promptEstimate,
						CompletionTokens: tokenizer.CountTokens(completion.String()),
					}
				}
				emit(types.StreamChunk{
					DeltaContent:     delta,
					FinishReason:     choice.FinishReason,
					AccumulatedUsage: usage,
					ProviderID:       providerID,
					ModelIDActual:    wr.Model,
				})
				return
			}
		}
	}()
	return ch
}

// streamContext is the minimal slice of context.Context this package
// needs, kept as an interface so tests can supply a bare cancellation
// signal without constructing a full context.Context.
type streamContext interface {
	Done() <-chan struct{}
}
