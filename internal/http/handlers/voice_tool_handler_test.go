package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/voice-scheduler/internal/scheduling"
	"github.com/wolfman30/voice-scheduler/internal/toolcall"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

type recordingService struct {
	got []toolcall.Invocation
}

func (s *recordingService) Handle(ctx context.Context, inv toolcall.Invocation) scheduling.Reply {
	s.got = append(s.got, inv)
	return scheduling.Reply{ToolCallID: inv.ToolCallID, Message: "Handled " + string(inv.Tool) + "."}
}

func post(t *testing.T, h *VoiceToolHandler, body []byte) (*httptest.ResponseRecorder, ToolResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/tool-calls", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleToolCalls(rec, req)

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, resp
}

func TestVoiceToolHandlerAnswersEachToolCall(t *testing.T) {
	svc := &recordingService{}
	h := NewVoiceToolHandler(svc, nil, logging.Default())

	payload := `{"message":{"type":"tool-calls","call":{"id":"call-1"},"toolCalls":[
		{"id":"tc-1","type":"function","function":{"name":"checkAvailability","arguments":{"startTime":"2024-01-15T14:00:00-05:00"}}},
		{"id":"tc-2","type":"function","function":{"name":"bookAppointment","arguments":{"Name":"John Doe","Date and Time":"2024-01-15T14:00:00-05:00"}}}
	]}}`
	rec, resp := post(t, h, []byte(payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp.Results)
	}
	if resp.Results[0].ToolCallID != "tc-1" || resp.Results[0].Result != "Handled checkAvailability." {
		t.Fatalf("unexpected first result %+v", resp.Results[0])
	}
	if resp.Results[1].ToolCallID != "tc-2" {
		t.Fatalf("unexpected second result %+v", resp.Results[1])
	}
	if svc.got[1].Arguments.Name != "John Doe" || svc.got[1].CallID != "call-1" {
		t.Fatalf("unexpected invocation %+v", svc.got[1])
	}
}

func TestVoiceToolHandlerRejectsUnrecognizedPayload(t *testing.T) {
	svc := &recordingService{}
	h := NewVoiceToolHandler(svc, nil, nil)

	rec, resp := post(t, h, []byte(`{"message":{"type":"status-update"}}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(resp.Results) != 1 || !strings.HasSuffix(resp.Results[0].Result, "?") {
		t.Fatalf("expected a spoken result, got %+v", resp.Results)
	}
	if len(svc.got) != 0 {
		t.Fatalf("service must not run for unrecognized payloads")
	}
}

func TestVoiceToolHandlerBodyLimit(t *testing.T) {
	svc := &recordingService{}
	h := NewVoiceToolHandler(svc, nil, nil)

	big := `{"toolCall":{"id":"x","name":"bookAppointment","arguments":{"notes":"` + strings.Repeat("a", MaxBodyBytes) + `"}}}`
	rec, resp := post(t, h, []byte(big))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if len(resp.Results) != 1 || resp.Results[0].Result == "" {
		t.Fatalf("expected a spoken result, got %+v", resp.Results)
	}
	if len(svc.got) != 0 {
		t.Fatalf("service must not run for oversized payloads")
	}
}
