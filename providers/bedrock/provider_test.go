package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgateway/agentflow/types"
)

// fakeRuntime implements RuntimeClient without talking to AWS.
type fakeRuntime struct {
	converseOutput *bedrockruntime.ConverseOutput
	converseErr    error
	lastInput      *bedrockruntime.ConverseInput
}

func (f *fakeRuntime) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	return f.converseOutput, f.converseErr
}

func (f *fakeRuntime) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fr := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role:    brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello from claude"}},
				},
			},
			StopReason: brtypes.StopReasonEndTurn,
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(12),
				OutputTokens: aws.Int32(4),
			},
		},
	}
	p := NewWithRuntime(fr, nil)

	resp, err := p.Complete(context.Background(), "anthropic.claude-3-5-sonnet-20241022-v2:0", &types.Request{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.False(t, resp.CostBreakdown.Estimated)
	assert.Equal(t, "bedrock", resp.ProviderID)
}

func TestCompleteFlagsEstimatedUsageWhenMissing(t *testing.T) {
	fr := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hi"}}},
			},
		},
	}
	p := NewWithRuntime(fr, nil)

	resp, err := p.Complete(context.Background(), "amazon.nova-lite-v1:0", &types.Request{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.True(t, resp.CostBreakdown.Estimated)
}

func TestCompleteTranslatesToolUse(t *testing.T) {
	fr := &fakeRuntime{
		converseOutput: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String("call-1"),
						Name:      aws.String("get_weather"),
						Input:     toDocument([]byte(`{"city":"sf"}`)),
					},
				}}},
			},
		},
	}
	p := NewWithRuntime(fr, nil)

	resp, err := p.Complete(context.Background(), "anthropic.claude-3-5-sonnet-20241022-v2:0", &types.Request{
		Messages: []types.Message{types.NewUserMessage("weather?")},
		ToolSpec: []types.ToolSchema{{Name: "get_weather", Parameters: []byte(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
}

func TestCompleteMapsThrottlingToRateLimited(t *testing.T) {
	fr := &fakeRuntime{converseErr: &throttlingError{}}
	p := NewWithRuntime(fr, nil)

	_, err := p.Complete(context.Background(), "anthropic.claude-3-5-sonnet-20241022-v2:0", &types.Request{
		Messages: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

func TestBuildMessagesExtractsSystemBlock(t *testing.T) {
	conversation, system, err := buildMessages([]types.Message{
		types.NewSystemMessage("be terse").WithMetadata(nil),
		types.NewUserMessage("hi").WithMetadata(nil),
	})
	require.NoError(t, err)
	require.Len(t, system, 1)
	require.Len(t, conversation, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, conversation[0].Role)
}

func TestSupportsReportsCoreCapabilities(t *testing.T) {
	p := NewWithRuntime(&fakeRuntime{}, nil)
	assert.True(t, p.Supports("anthropic.claude-3-5-sonnet-20241022-v2:0", "tools"))
	assert.True(t, p.Supports("anthropic.claude-3-5-sonnet-20241022-v2:0", "streaming"))
	assert.False(t, p.Supports("anthropic.claude-3-5-sonnet-20241022-v2:0", "unknown"))
}

// throttlingError is a minimal smithy.APIError fake for exercising
// mapAWSError without constructing a real AWS response.
type throttlingError struct{}

func (e *throttlingError) Error() string        { return "throttled" }
func (e *throttlingError) ErrorCode() string    { return "ThrottlingException" }
func (e *throttlingError) ErrorMessage() string { return "too many requests" }
func (e *throttlingError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
