package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/voice-scheduler/internal/scheduling"
	"github.com/wolfman30/voice-scheduler/internal/toolcall"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// MaxBodyBytes caps inbound webhook bodies.
const MaxBodyBytes = 1 << 20

const (
	unrecognizedMessage = "I'm sorry, I didn't receive your booking details. Could you tell me your name and the day and time you'd like?"
	tooLargeMessage     = "I'm sorry, that request was too large for me to handle. Could you try again?"
)

// ToolCallService resolves one normalized tool call into a spoken reply.
type ToolCallService interface {
	Handle(ctx context.Context, inv toolcall.Invocation) scheduling.Reply
}

// ToolResult is one entry of the voice platform's expected response.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// ToolResponse is the JSON body returned to the voice platform. Every result is a
// complete sentence for text-to-speech.
type ToolResponse struct {
	Results []ToolResult `json:"results"`
}

// VoiceToolHandler receives tool-call webhooks from the voice platform.
type VoiceToolHandler struct {
	service ToolCallService
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewVoiceToolHandler(service ToolCallService, m *metrics.BookingMetrics, logger *logging.Logger) *VoiceToolHandler {
	if service == nil {
		panic("handlers: tool call service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceToolHandler{service: service, metrics: m, logger: logger}
}

// HandleToolCalls is the HTTP handler for POST /webhooks/voice/tool-calls.
func (h *VoiceToolHandler) HandleToolCalls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("voice-tool: body too large", "limit", MaxBodyBytes)
			h.metrics.ObserveWebhook("too_large")
			h.writeResponse(w, http.StatusRequestEntityTooLarge, ToolResponse{Results: []ToolResult{{Result: tooLargeMessage}}})
			return
		}
		h.logger.Error("voice-tool: failed to read body", "error", err)
		h.metrics.ObserveWebhook("bad_request")
		h.writeResponse(w, http.StatusBadRequest, ToolResponse{Results: []ToolResult{{Result: unrecognizedMessage}}})
		return
	}

	invocations, err := toolcall.NormalizeAll(body)
	if err != nil {
		h.logger.Warn("voice-tool: payload not recognized", "error", err, "bytes", len(body))
		h.metrics.ObserveWebhook("rejected")
		h.writeResponse(w, http.StatusBadRequest, ToolResponse{Results: []ToolResult{{Result: unrecognizedMessage}}})
		return
	}

	resp := ToolResponse{Results: make([]ToolResult, 0, len(invocations))}
	for _, inv := range invocations {
		reply := h.service.Handle(ctx, inv)
		resp.Results = append(resp.Results, ToolResult{ToolCallID: inv.ToolCallID, Result: reply.Message})
	}

	h.logger.Info("voice-tool: handled",
		"call_id", invocations[0].CallID,
		"tool_calls", len(invocations),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	h.metrics.ObserveWebhook("ok")
	h.writeResponse(w, http.StatusOK, resp)
}

func (h *VoiceToolHandler) writeResponse(w http.ResponseWriter, status int, resp ToolResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
