// Package main runs E2E scenarios against a running voice-scheduler API.
//
// Scenarios cover:
//   - All four inbound payload shapes resolving to the same answer
//   - Direct booking of an open slot
//   - A conflicting booking receiving alternatives
//   - Past-date rejection
//   - Retried deliveries replaying the stored result
//   - Unrecognized payloads
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go [scenario-name]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	apiBase  string
	timezone *time.Location
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type toolResponse struct {
	Results []struct {
		ToolCallID string `json:"toolCallId"`
		Result     string `json:"result"`
	} `json:"results"`
}

func post(payload any) (int, toolResponse, error) {
	var body []byte
	switch p := payload.(type) {
	case string:
		body = []byte(p)
	default:
		var err error
		if body, err = json.Marshal(p); err != nil {
			return 0, toolResponse{}, err
		}
	}
	resp, err := http.Post(apiBase+"/webhooks/voice/tool-calls", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, toolResponse{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out toolResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return resp.StatusCode, out, fmt.Errorf("decode %q: %w", string(raw), err)
	}
	return resp.StatusCode, out, nil
}

func toolCall(id, name string, args map[string]string) map[string]any {
	return map[string]any{"id": id, "type": "function", "function": map[string]any{"name": name, "arguments": args}}
}

func messagePayload(callID string, calls ...map[string]any) map[string]any {
	return map[string]any{"message": map[string]any{
		"type":      "tool-calls",
		"call":      map[string]any{"id": callID},
		"toolCalls": calls,
	}}
}

// nextWeekday returns the next Monday-Friday date at least days ahead, at hh:mm local time.
func nextWeekday(days, hh, mm int) time.Time {
	d := time.Now().In(timezone).AddDate(0, 0, days)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, timezone)
}

func first(resp toolResponse) string {
	if len(resp.Results) == 0 {
		return ""
	}
	return resp.Results[0].Result
}

func scenarioPayloadShapes(t *T) {
	start := nextWeekday(14, 11, 0).Format(time.RFC3339)
	args := map[string]string{"startTime": start}
	shapes := []map[string]any{
		{"body": messagePayload("", toolCall("s1", "checkAvailability", args))},
		messagePayload("", toolCall("s1", "checkAvailability", args)),
		{"toolCall": map[string]any{"id": "s1", "name": "checkAvailability", "arguments": args}},
		{"envelope": map[string]any{"deep": []any{map[string]any{"id": "s1", "name": "checkAvailability", "arguments": args}}}},
	}

	var answers []string
	for i, shape := range shapes {
		status, resp, err := post(shape)
		if err != nil {
			t.fatalf("shape %d: %v", i, err)
			return
		}
		t.check(fmt.Sprintf("shape %d accepted", i), status == http.StatusOK)
		answers = append(answers, first(resp))
	}
	same := true
	for _, a := range answers[1:] {
		same = same && a == answers[0]
	}
	t.check("all shapes produce the same spoken result", same)
}

func scenarioBookThenConflict(t *T) {
	slot := nextWeekday(21, 10, 0).Format(time.RFC3339)
	book := func(callID, name string) string {
		_, resp, err := post(messagePayload(callID, toolCall(uuid.NewString(), "bookAppointment", map[string]string{
			"Name": name, "Phone Number": "+15005550006", "Date and Time": slot,
		})))
		if err != nil {
			t.fatalf("book: %v", err)
		}
		return first(resp)
	}

	firstReply := book(uuid.NewString(), "John Doe")
	t.check("first caller is booked", strings.Contains(firstReply, "has been booked"))

	secondReply := book(uuid.NewString(), "Jane Roe")
	t.check("second caller is offered alternatives", strings.Contains(secondReply, "these times are available"))
}

func scenarioPastDate(t *T) {
	_, resp, err := post(messagePayload(uuid.NewString(), toolCall("p1", "bookAppointment", map[string]string{
		"Name": "John Doe", "Date and Time": "2020-01-06T14:00:00-05:00",
	})))
	if err != nil {
		t.fatalf("post: %v", err)
		return
	}
	t.check("past date is rejected", strings.Contains(first(resp), "already passed"))
}

func scenarioReplay(t *T) {
	callID := uuid.NewString()
	payload := messagePayload(callID, toolCall("r1", "bookAppointment", map[string]string{
		"Name": "Replay Caller", "Date and Time": nextWeekday(28, 15, 30).Format(time.RFC3339),
	}))
	_, firstResp, err := post(payload)
	if err != nil {
		t.fatalf("first delivery: %v", err)
		return
	}
	_, retryResp, err := post(payload)
	if err != nil {
		t.fatalf("retry: %v", err)
		return
	}
	t.check("first delivery books", strings.Contains(first(firstResp), "has been booked"))
	t.check("retry replays the same result", first(retryResp) == first(firstResp))
}

func scenarioUnrecognized(t *T) {
	status, resp, err := post(`{"event":"call.started"}`)
	if err != nil {
		t.fatalf("post: %v", err)
		return
	}
	t.check("unrecognized payload is a 400", status == http.StatusBadRequest)
	t.check("unrecognized payload still has a spoken result", first(resp) != "")
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}
	tz := os.Getenv("BUSINESS_TIMEZONE")
	if tz == "" {
		tz = "America/New_York"
	}
	var err error
	if timezone, err = time.LoadLocation(tz); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR: invalid BUSINESS_TIMEZONE:", err)
		os.Exit(1)
	}

	scenarios := []scenario{
		{"payload-shapes", scenarioPayloadShapes},
		{"book-then-conflict", scenarioBookThenConflict},
		{"past-date", scenarioPastDate},
		{"replay", scenarioReplay},
		{"unrecognized", scenarioUnrecognized},
	}

	// Filter by name if argument provided
	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
