package toolcall

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const displayArgs = `{"Name":"John Doe","Phone Number":"+15551234567","Email Address":"john@example.com","Date and Time":"2024-01-15T14:00:00-05:00"}`

const snakeArgs = `{"name":"John Doe","phone_number":"+15551234567","email_address":"john@example.com","date_and_time":"2024-01-15T14:00:00-05:00"}`

func TestNormalizeShapesAreEquivalent(t *testing.T) {
	quotedSnake, err := json.Marshal(snakeArgs)
	require.NoError(t, err)

	payloads := map[string]string{
		"body.message": `{"body":{"message":{"type":"tool-calls","call":{"id":"call-1"},"toolCalls":[{"id":"tc-1","type":"function","function":{"name":"bookAppointment","arguments":` + displayArgs + `}}]}}}`,
		"message":      `{"message":{"type":"tool-calls","call":{"id":"call-1"},"toolCalls":[{"id":"tc-1","type":"function","function":{"name":"bookAppointment","arguments":` + displayArgs + `}}]}}`,
		"flat":         `{"call":{"id":"call-1"},"toolCall":{"id":"tc-1","name":"book_appointment","arguments":` + string(quotedSnake) + `}}`,
		"deep":         `{"event":{"payload":{"call":{"id":"call-1"},"items":[{"toolCall":{"id":"tc-1","function":{"name":"Book Appointment","arguments":` + snakeArgs + `}}}]}}}`,
	}

	want := Invocation{
		ToolCallID: "tc-1",
		Tool:       ToolBookAppointment,
		CallID:     "call-1",
		Arguments: Arguments{
			Name:     "John Doe",
			Phone:    "+15551234567",
			Email:    "john@example.com",
			DateTime: "2024-01-15T14:00:00-05:00",
		},
	}
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			got, err := Normalize([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, want, got)

			gotJSON, err := json.Marshal(got)
			require.NoError(t, err)
			assert.Equal(t, string(wantJSON), string(gotJSON))

			again, err := Normalize([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"message":`},
		{"empty object", `{}`},
		{"no tool shape", `{"message":{"type":"status-update","status":"ended"}}`},
		{"unknown tool", `{"toolCall":{"id":"x","name":"transferCall","arguments":{}}}`},
		{"array arguments", `{"toolCall":{"id":"x","name":"bookAppointment","arguments":[1,2]}}`},
		{"bad argument string", `{"toolCall":{"id":"x","name":"bookAppointment","arguments":"{name:"}}`},
		{"non-object toolCalls entry", `{"message":{"toolCalls":["bookAppointment"]}}`},
		{"scalar", `"bookAppointment"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.payload))
			if !errors.Is(err, ErrNotRecognized) {
				t.Fatalf("expected ErrNotRecognized, got %v (%+v)", err, got)
			}
			if got != (Invocation{}) {
				t.Fatalf("expected zero invocation on failure, got %+v", got)
			}
		})
	}
}

func TestNormalizeDeepScanIsBounded(t *testing.T) {
	inner := `{"toolCall":{"id":"tc-1","name":"bookAppointment","arguments":{"name":"Jane"}}}`

	shallow := inner
	for i := 0; i < 5; i++ {
		shallow = `{"wrap":` + shallow + `}`
	}
	inv, err := Normalize([]byte(shallow))
	require.NoError(t, err)
	assert.Equal(t, "Jane", inv.Arguments.Name)

	deep := inner
	for i := 0; i < maxScanDepth+2; i++ {
		deep = `{"wrap":` + deep + `}`
	}
	_, err = Normalize([]byte(deep))
	assert.ErrorIs(t, err, ErrNotRecognized)

	noise := make([]string, maxScanNodes+10)
	for i := range noise {
		noise[i] = "0"
	}
	wide := `{"a":[` + strings.Join(noise, ",") + `],"b":` + inner + `}`
	_, err = Normalize([]byte(wide))
	assert.ErrorIs(t, err, ErrNotRecognized)
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	payload := `{"message":{"call":{"id":"call-9"},"toolCalls":[
		{"id":"a","function":{"name":"checkAvailability","arguments":{"startTime":"2024-01-15T14:00:00-05:00","endTime":"2024-01-15T14:30:00-05:00"}}},
		{"id":"b","function":{"name":"bookAppointment","arguments":{"name":"John"}}}
	]}}`

	all, err := NormalizeAll([]byte(payload))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ToolCheckAvailability, all[0].Tool)
	assert.Equal(t, "2024-01-15T14:30:00-05:00", all[0].Arguments.EndTime)
	assert.Equal(t, ToolBookAppointment, all[1].Tool)
	assert.Equal(t, "call-9:b", all[1].DeliveryKey())
}

func TestParseArgumentsDialects(t *testing.T) {
	args, err := parseArguments(map[string]any{
		"customerName": "Ann Lee",
		"phone":        json.Number("5551234567"),
		"date":         "2024-01-15",
		"time":         "14:00",
		"Business ID":  "biz-7",
		"ignored":      map[string]any{"x": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Arguments{
		Name:       "Ann Lee",
		Phone:      "5551234567",
		DateTime:   "2024-01-15 14:00",
		BusinessID: "biz-7",
	}, args)
	assert.Equal(t, "2024-01-15 14:00", args.RequestedTime())
}

func TestNormalizeTool(t *testing.T) {
	tests := map[string]Tool{
		"bookAppointment":    ToolBookAppointment,
		"book_appointment":   ToolBookAppointment,
		"Book Appointment":   ToolBookAppointment,
		"checkAvailability":  ToolCheckAvailability,
		"check_availability": ToolCheckAvailability,
		"Check Availability": ToolCheckAvailability,
	}
	for in, want := range tests {
		got, ok := normalizeTool(in)
		if !ok || got != want {
			t.Fatalf("normalizeTool(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := normalizeTool("endCall"); ok {
		t.Fatalf("expected endCall to be unknown")
	}
}

func TestDeliveryKeyRequiresBothIDs(t *testing.T) {
	assert.Equal(t, "", Invocation{ToolCallID: "tc"}.DeliveryKey())
	assert.Equal(t, "c:tc", Invocation{CallID: "c", ToolCallID: "tc"}.DeliveryKey())
}
