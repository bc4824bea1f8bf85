// Package bedrock is the cloud-bedrock provider family: a thin strategy
// over the AWS Bedrock Converse API, authenticated through the AWS
// standard credential chain rather than a single bearer token the way
// every other vendor in this gateway is.
//
// The RuntimeClient seam exists so tests can substitute a fake for the
// live AWS client; everything else is a straight translation between
// the normalized request/response shapes and the Converse API's typed
// ones.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.uber.org/zap"

	"github.com/llmgateway/agentflow/providers"
	"github.com/llmgateway/agentflow/types"
)

const defaultMaxTokens = 4096

// RuntimeClient mirrors the subset of *bedrockruntime.Client this
// provider drives, so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Provider implements the Provider interface over AWS Bedrock's Converse
// API. Unlike every other provider in this package, it authenticates via
// the AWS standard credential chain (environment, shared config/profile,
// EC2/ECS instance role, SSO) instead of a single vendor API key.
type Provider struct {
	runtime RuntimeClient
	logger  *zap.Logger
}

// New constructs a Provider by resolving the AWS standard credential
// chain via config.LoadDefaultConfig. It fails closed: a gateway
// deployment that never configures AWS credentials simply does not
// register a "bedrock" provider rather than registering one that errors
// on every call.
func New(ctx context.Context, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bedrock: resolve AWS credential chain: %w", err)
	}
	return &Provider{
		runtime: bedrockruntime.NewFromConfig(cfg),
		logger:  logger.With(zap.String("component", "provider.bedrock")),
	}, nil
}

// NewWithRuntime builds a Provider around an already-constructed runtime
// client (or test fake), skipping credential resolution entirely.
func NewWithRuntime(runtime RuntimeClient, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{runtime: runtime, logger: logger.With(zap.String("component", "provider.bedrock"))}
}

func (p *Provider) ID() string { return "bedrock" }

func (p *Provider) Supports(modelID string, capability providers.Capability) bool {
	switch capability {
	case providers.CapabilityTools, providers.CapabilityStreaming, providers.CapabilityVision, providers.CapabilityPromptCache:
		return true
	default:
		return false
	}
}

// ListModels has no live discovery call wired here — Bedrock model
// availability is account- and region-specific, so the catalog's own
// projection for this provider is the source of truth (mirrors the
// anthropic provider's static-list approach for the same reason).
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func chooseMaxTokens(req *types.Request) int32 {
	if req.MaxOutputTokens > 0 {
		return int32(req.MaxOutputTokens)
	}
	return int32(defaultMaxTokens)
}

func inferenceConfig(req *types.Request) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(chooseMaxTokens(req))}
	if req.Temperature > 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = aws.Float32(req.TopP)
	}
	if len(req.Stop) > 0 {
		cfg.StopSequences = req.Stop
	}
	return cfg
}

// buildMessages splits the normalized conversation into Bedrock's
// Converse shape: a system block list plus a conversational turn list.
// A CacheHint message gets a trailing CachePointBlock, the Converse
// equivalent of Claude's cache_control directive.
func buildMessages(msgs []types.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	conversation := make([]brtypes.Message, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			if m.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			}
			if m.CacheHint {
				system = append(system, &brtypes.SystemContentBlockMemberCachePoint{
					Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
				})
			}
			continue
		}

		var role brtypes.ConversationRole
		switch m.Role {
		case types.RoleUser, types.RoleTool:
			role = brtypes.ConversationRoleUser
		case types.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}

		blocks := make([]brtypes.ContentBlock, 0, 1+len(m.ToolCalls))
		switch m.Role {
		case types.RoleTool:
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(m.ToolCallID),
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Content}},
			}})
		default:
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     toDocument(tc.Arguments),
				}})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.CacheHint {
			blocks = append(blocks, &brtypes.ContentBlockMemberCachePoint{
				Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
			})
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	return conversation, system, nil
}

func buildToolConfig(tools []types.ToolSchema) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	list := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		list = append(list, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(t.Parameters)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: list}
}

func toDocument(raw json.RawMessage) document.Interface {
	var v any = map[string]any{"type": "object"}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &v)
	}
	return document.NewLazyDocument(&v)
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

// Complete issues a non-streaming Converse call.
func (p *Provider) Complete(ctx context.Context, modelID string, req *types.Request) (*types.Response, error) {
	start := time.Now()
	conversation, system, err := buildMessages(req.Messages)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithProvider(p.ID())
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		Messages:        conversation,
		System:          system,
		ToolConfig:      buildToolConfig(req.ToolSpec),
		InferenceConfig: inferenceConfig(req),
	}

	output, err := p.runtime.Converse(ctx, input)
	if err != nil {
		return nil, mapAWSError(err, p.ID())
	}
	return translateResponse(output, modelID, p.ID(), time.Since(start))
}

func translateResponse(output *bedrockruntime.ConverseOutput, modelID, providerID string, latency time.Duration) (*types.Response, error) {
	if output == nil {
		return nil, types.NewError(types.ErrProviderProtocol, "bedrock: converse response is nil").WithProvider(providerID)
	}

	resp := &types.Response{
		ModelIDActual: modelID,
		ProviderID:    providerID,
		LatencyMS:     latency.Milliseconds(),
		CreatedAt:     time.Now(),
		FinishReason:  string(output.StopReason),
	}

	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				resp.Content += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				var id, name string
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				if v.Value.Name != nil {
					name = *v.Value.Name
				}
				resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
					ID: id, Name: name, Arguments: decodeDocument(v.Value.Input),
				})
			}
		}
	}

	estimated := output.Usage == nil
	if output.Usage != nil {
		resp.Usage = types.Usage{
			PromptTokens:     int(aws.ToInt32(output.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			CacheReadTokens:  int(aws.ToInt32(output.Usage.CacheReadInputTokens)),
			CacheWriteTokens: int(aws.ToInt32(output.Usage.CacheWriteInputTokens)),
		}
	}
	resp.CostBreakdown = &types.CostBreakdown{Estimated: estimated}
	return resp, nil
}

// mapAWSError classifies an AWS SDK error onto this gateway's closed
// ErrorCode taxonomy the way every other provider's mapError does,
// using smithy's typed error surface instead of an HTTP status code.
func mapAWSError(err error, providerID string) *types.Error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return types.NewError(types.ErrRateLimited, apiErr.ErrorMessage()).WithRetryable(true).WithProvider(providerID)
		case "AccessDeniedException", "UnrecognizedClientException":
			return types.NewError(types.ErrAuthMissing, apiErr.ErrorMessage()).WithProvider(providerID)
		case "ValidationException":
			return types.NewError(types.ErrInvalidRequest, apiErr.ErrorMessage()).WithProvider(providerID)
		case "ModelNotReadyException", "ServiceUnavailableException":
			return types.NewError(types.ErrUpstreamError, apiErr.ErrorMessage()).WithRetryable(true).WithProvider(providerID)
		case "ModelTimeoutException":
			return types.NewError(types.ErrUpstreamTimeout, apiErr.ErrorMessage()).WithRetryable(true).WithProvider(providerID)
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return types.NewError(types.ErrRateLimited, err.Error()).WithRetryable(true).WithProvider(providerID)
	}
	return types.NewError(types.ErrUpstreamError, err.Error()).WithRetryable(true).WithProvider(providerID)
}

