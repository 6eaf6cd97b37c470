package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockModelClient implements ModelClient over the Bedrock Converse API with native tool use.
type BedrockModelClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockModelClient(api bedrockConverseAPI, modelID string) *BedrockModelClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockModelClient{api: api, modelID: modelID}
}

func (c *BedrockModelClient) Converse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	if strings.TrimSpace(c.modelID) == "" {
		return ModelResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages, err := bedrockMessages(req.Turns)
	if err != nil {
		return ModelResponse{}, err
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
		ToolConfig:      bedrockToolConfig(req.Tools),
	})
	if err != nil {
		return ModelResponse{}, err
	}
	return bedrockResponse(out)
}

func bedrockToolConfig(tools []ToolSchema) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.JSONSchema())},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: specs}
}

func bedrockMessages(turns []Turn) ([]brtypes.Message, error) {
	messages := make([]brtypes.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			content := strings.TrimSpace(turn.Text)
			if content == "" {
				continue
			}
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case RoleAssistant:
			var blocks []brtypes.ContentBlock
			if text := strings.TrimSpace(turn.Text); text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: text})
			}
			for _, call := range turn.ToolCalls {
				input, err := decodeArguments(call.Arguments)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(call.ID),
					Name:      aws.String(call.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case RoleTool:
			blocks := make([]brtypes.ContentBlock, 0, len(turn.ToolResults))
			for _, res := range turn.ToolResults {
				block := brtypes.ToolResultBlock{
					ToolUseId: aws.String(res.CallID),
					Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: res.Content}},
				}
				if res.IsError {
					block.Status = brtypes.ToolResultStatusError
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: block})
			}
			// Tool results travel in a user message directly after the tool use.
			messages = append(messages, brtypes.Message{Role: brtypes.ConversationRoleUser, Content: blocks})
		default:
			return nil, fmt.Errorf("conversation: unsupported role %q", turn.Role)
		}
	}
	return messages, nil
}

func bedrockResponse(out *bedrockruntime.ConverseOutput) (ModelResponse, error) {
	if out == nil {
		return ModelResponse{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ModelResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}

	var (
		text  strings.Builder
		calls []ToolCall
	)
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			var args json.RawMessage = []byte("{}")
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return ModelResponse{}, fmt.Errorf("conversation: decode tool input: %w", err)
				}
				args = raw
			}
			calls = append(calls, ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	if len(calls) == 0 && strings.TrimSpace(text.String()) == "" {
		return ModelResponse{}, errors.New("conversation: bedrock response contained no text or tool use")
	}

	resp := ModelResponse{
		Text:       strings.TrimSpace(text.String()),
		ToolCalls:  calls,
		StopReason: string(out.StopReason),
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

// decodeArguments turns raw tool arguments into the map form the SDKs expect.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("conversation: tool arguments are not a JSON object: %w", err)
	}
	return args, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
