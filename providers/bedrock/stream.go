package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/llmgateway/agentflow/types"
)

// Stream issues a ConverseStream call and adapts Bedrock's typed event
// stream into the normalized StreamChunk channel, accumulating tool
// calls per content-block index the same way the anthropic provider
// does for its SSE loop.
func (p *Provider) Stream(ctx context.Context, modelID string, req *types.Request) (<-chan types.StreamChunk, error) {
	conversation, system, err := buildMessages(req.Messages)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(modelID),
		Messages:        conversation,
		System:          system,
		ToolConfig:      buildToolConfig(req.ToolSpec),
		InferenceConfig: inferenceConfig(req),
	}

	output, err := p.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, mapAWSError(err, p.ID())
	}
	stream := output.GetStream()
	if stream == nil {
		return nil, types.NewError(types.ErrProviderProtocol, "bedrock: converse stream missing event stream").WithProvider(p.ID())
	}

	ch := make(chan types.StreamChunk)
	go p.runStream(ctx, modelID, stream, ch)
	return ch, nil
}

// pendingStop buffers MessageStop until the Metadata event (which
// carries usage) arrives, since Bedrock emits them as two separate
// events but this gateway's StreamChunk contract requires the final
// chunk to carry both FinishReason and the authoritative Usage
// together — unlike Anthropic, whose message_delta event already
// bundles both.
type pendingStop struct {
	reason string
	armed  bool
}

func (p *Provider) runStream(ctx context.Context, modelID string, stream *bedrockruntime.ConverseStreamEventStream, ch chan<- types.StreamChunk) {
	defer close(ch)
	defer stream.Close()

	toolAccumulator := make(map[int32]*types.ToolCall)
	var stop pendingStop

	emit := func(c types.StreamChunk) bool {
		c.ProviderID = p.ID()
		c.ModelIDActual = modelID
		select {
		case <-ctx.Done():
			return false
		case ch <- c:
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					emit(types.StreamChunk{FinishReason: "error"})
				} else if stop.armed {
					emit(types.StreamChunk{FinishReason: stop.reason})
				}
				return
			}
			cont, done := p.handleStreamEvent(event, toolAccumulator, &stop, emit)
			if done {
				return
			}
			if !cont {
				return
			}
		}
	}
}

// contentIndex dereferences Bedrock's *int32 content-block index,
// defaulting to 0 for the (unexpected) nil case rather than dropping
// the event outright.
func contentIndex(idx *int32) int32 {
	if idx == nil {
		return 0
	}
	return *idx
}

// handleStreamEvent applies one Converse stream event. The first
// return value is false when the channel consumer went away; the
// second is true once the terminal chunk (post-Metadata) has been
// emitted and the loop should stop.
func (p *Provider) handleStreamEvent(event any, toolAccumulator map[int32]*types.ToolCall, stop *pendingStop, emit func(types.StreamChunk) bool) (cont bool, done bool) {
	switch ev := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockStart:
		if start, ok := ev.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
			tc := &types.ToolCall{Arguments: []byte("")}
			if start.Value.ToolUseId != nil {
				tc.ID = *start.Value.ToolUseId
			}
			if start.Value.Name != nil {
				tc.Name = *start.Value.Name
			}
			toolAccumulator[contentIndex(ev.Value.ContentBlockIndex)] = tc
		}
		return true, false

	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		idx := contentIndex(ev.Value.ContentBlockIndex)
		switch delta := ev.Value.Delta.(type) {
		case *brtypes.ContentBlockDeltaMemberText:
			if delta.Value == "" {
				return true, false
			}
			return emit(types.StreamChunk{DeltaContent: delta.Value}), false
		case *brtypes.ContentBlockDeltaMemberToolUse:
			if tc, ok := toolAccumulator[idx]; ok && delta.Value.Input != nil {
				tc.Arguments = append(tc.Arguments, []byte(*delta.Value.Input)...)
			}
		}
		return true, false

	case *brtypes.ConverseStreamOutputMemberContentBlockStop:
		idx := contentIndex(ev.Value.ContentBlockIndex)
		if tc, ok := toolAccumulator[idx]; ok {
			delete(toolAccumulator, idx)
			return emit(types.StreamChunk{DeltaToolCalls: []types.ToolCall{*tc}}), false
		}
		return true, false

	case *brtypes.ConverseStreamOutputMemberMessageStop:
		stop.armed = true
		stop.reason = string(ev.Value.StopReason)
		return true, false

	case *brtypes.ConverseStreamOutputMemberMetadata:
		usage := &types.Usage{}
		if ev.Value.Usage != nil {
			usage = &types.Usage{
				PromptTokens:     int(aws.ToInt32(ev.Value.Usage.InputTokens)),
				CompletionTokens: int(aws.ToInt32(ev.Value.Usage.OutputTokens)),
				CacheReadTokens:  int(aws.ToInt32(ev.Value.Usage.CacheReadInputTokens)),
				CacheWriteTokens: int(aws.ToInt32(ev.Value.Usage.CacheWriteInputTokens)),
			}
		}
		reason := stop.reason
		ok := emit(types.StreamChunk{FinishReason: reason, AccumulatedUsage: usage})
		return ok, true

	default:
		return true, false
	}
}
