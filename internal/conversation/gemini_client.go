package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GeminiModelClient implements ModelClient using Gemini function calling.
type GeminiModelClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiModelClient creates a new Gemini model client.
func NewGeminiModelClient(ctx context.Context, apiKey, modelID string) (*GeminiModelClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiModelClient{
		client:  client,
		modelID: modelID,
	}, nil
}

func (c *GeminiModelClient) Converse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	contents, err := geminiContents(req.Turns)
	if err != nil {
		return ModelResponse{}, err
	}
	if len(contents) == 0 {
		return ModelResponse{}, errors.New("conversation: gemini requires at least one message")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiResponse(resp)
}

// Close releases resources held by the Gemini client.
func (c *GeminiModelClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiDeclarations(tools []ToolSchema) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range t.Params {
			schema.Properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}
	return decls
}

func geminiContents(turns []Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleUser:
			text := strings.TrimSpace(turn.Text)
			if text == "" {
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(text)}})
		case RoleAssistant:
			var parts []genai.Part
			if text := strings.TrimSpace(turn.Text); text != "" {
				parts = append(parts, genai.Text(text))
			}
			for _, call := range turn.ToolCalls {
				args, err := decodeArguments(call.Arguments)
				if err != nil {
					return nil, err
				}
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case RoleTool:
			parts := make([]genai.Part, 0, len(turn.ToolResults))
			for _, res := range turn.ToolResults {
				payload := map[string]any{"result": res.Content}
				if res.IsError {
					payload = map[string]any{"error": res.Content}
				}
				parts = append(parts, genai.FunctionResponse{Name: res.Name, Response: payload})
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: parts})
		default:
			return nil, fmt.Errorf("conversation: unsupported role %q", turn.Role)
		}
	}
	return contents, nil
}

func geminiResponse(resp *genai.GenerateContentResponse) (ModelResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return ModelResponse{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ModelResponse{}, errors.New("conversation: gemini returned empty content")
	}

	var (
		text  strings.Builder
		calls []ToolCall
	)
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil {
				return ModelResponse{}, fmt.Errorf("conversation: encode gemini args: %w", err)
			}
			// Gemini does not assign call ids.
			calls = append(calls, ToolCall{ID: "gemini-" + uuid.NewString(), Name: p.Name, Arguments: args})
		}
	}

	result := ModelResponse{
		Text:       strings.TrimSpace(text.String()),
		ToolCalls:  calls,
		StopReason: candidate.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}
