package conversation

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrModelUnavailable marks model calls that timed out or failed.
var ErrModelUnavailable = errors.New("conversation: model unavailable")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleTool carries tool results back to the model.
	RoleTool = "tool"
)

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers a ToolCall.
type ToolResult struct {
	CallID  string `json:"callId"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// Turn is one transcript entry.
type Turn struct {
	Role        string       `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Add accumulates usage across model calls.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
	}
}

type ModelRequest struct {
	System      []string
	Turns       []Turn
	Tools       []ToolSchema
	MaxTokens   int32
	Temperature float32
}

type ModelResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      TokenUsage
}

// ModelClient is the language-model collaborator. Implementations must not assume
// the transcript ends with a user turn.
type ModelClient interface {
	Converse(ctx context.Context, req ModelRequest) (ModelResponse, error)
}
