package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/booking"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// MaxIterations caps model round trips per run.
const MaxIterations = 10

// AgentRequest is a booking request whose time is still natural language.
type AgentRequest struct {
	booking.Request
	RequestedTime string
	BusinessName  string
}

// AgentResult is the terminal state of a run.
type AgentResult struct {
	Outcome    booking.Outcome
	Iterations int
	Usage      TokenUsage
	// Transcript holds every turn after the system prompt, including tool results.
	Transcript []Turn
}

// Agent runs the bounded tool-calling loop against the booking coordinator.
type Agent struct {
	model         ModelClient
	coordinator   *booking.Coordinator
	maxIterations int
	maxTokens     int32
	logger        *logging.Logger
}

// NewAgent wires an agent. maxIterations <= 0 uses MaxIterations.
func NewAgent(model ModelClient, coordinator *booking.Coordinator, maxIterations int, logger *logging.Logger) *Agent {
	if model == nil {
		panic("conversation: model client required")
	}
	if coordinator == nil {
		panic("conversation: booking coordinator required")
	}
	if maxIterations <= 0 {
		maxIterations = MaxIterations
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Agent{model: model, coordinator: coordinator, maxIterations: maxIterations, maxTokens: 1024, logger: logger}
}

// runState is the agent's own record of tool effects, used to decide the outcome.
type runState struct {
	booked       *booking.Outcome
	lastBook     *booking.Outcome
	lastCheck    *booking.CheckResult
	alternatives []schedule.TimeWindow
	reported     *reportOutcomeArgs
}

// Run drives the conversation until the model reports an outcome, stops calling tools,
// fails, or exhausts the iteration budget.
func (a *Agent) Run(ctx context.Context, req AgentRequest) AgentResult {
	hours := a.coordinator.Hours()
	system := []string{SchedulingPrompt(req.BusinessName, hours, a.coordinator.Now())}
	if kp := KnowledgePrompt(req.ContextPrompt); kp != "" {
		system = append(system, kp)
	}
	turns := []Turn{{Role: RoleUser, Text: RequestSummary(req)}}
	tools := AgentTools()

	logger := a.logger.With("business_id", req.BusinessID, "call_log_id", req.CallLogID)
	state := &runState{}
	var usage TokenUsage

	for i := 1; i <= a.maxIterations; i++ {
		resp, err := a.model.Converse(ctx, ModelRequest{
			System:      system,
			Turns:       turns,
			Tools:       tools,
			MaxTokens:   a.maxTokens,
			Temperature: 0,
		})
		if err != nil {
			logger.Error("model call failed", "iteration", i, "error", err)
			return AgentResult{Outcome: a.failed(booking.FailureModelError, state), Iterations: i, Usage: usage, Transcript: turns}
		}
		usage = usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			logger.Info("model finished without tool calls", "iteration", i)
			turns = append(turns, Turn{Role: RoleAssistant, Text: resp.Text})
			return AgentResult{Outcome: a.reconcile(state, "", resp.Text), Iterations: i, Usage: usage, Transcript: turns}
		}

		turns = append(turns, Turn{Role: RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls})
		results := make([]ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			res := a.execute(ctx, req, call, state)
			logger.Debug("tool executed", "iteration", i, "tool", call.Name, "tool_call_id", call.ID, "is_error", res.IsError)
			results = append(results, res)
		}

		turns = append(turns, Turn{Role: RoleTool, ToolResults: results})
		if state.reported != nil {
			logger.Info("model reported outcome", "iteration", i, "status", state.reported.Status)
			return AgentResult{Outcome: a.reconcile(state, state.reported.Status, state.reported.Message), Iterations: i, Usage: usage, Transcript: turns}
		}
	}

	logger.Warn("agent hit iteration ceiling", "max_iterations", a.maxIterations)
	return AgentResult{Outcome: a.failed(booking.FailureMaxIterations, state), Iterations: a.maxIterations, Usage: usage, Transcript: turns}
}

// execute runs one tool call. Argument errors, tool errors, and panics become error results.
func (a *Agent) execute(ctx context.Context, req AgentRequest, call ToolCall, state *runState) (result ToolResult) {
	result = ToolResult{CallID: call.ID, Name: call.Name}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			result.Content = fmt.Sprintf("Error: the %s tool failed unexpectedly. Try again or report the outcome.", call.Name)
			result.IsError = true
		}
	}()

	var (
		content string
		err     error
	)
	switch call.Name {
	case ToolCheckAvailability:
		content, err = a.checkAvailability(ctx, call.Arguments, state)
	case ToolBookAppointment:
		content, err = a.bookAppointment(ctx, req, call.Arguments, state)
	case ToolReportOutcome:
		content, err = a.reportOutcome(call.Arguments, state)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}
	if err != nil {
		result.Content = "Error: " + err.Error()
		result.IsError = true
		return result
	}
	result.Content = content
	return result
}

func (a *Agent) checkAvailability(ctx context.Context, raw json.RawMessage, state *runState) (string, error) {
	var args checkAvailabilityArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	w, err := a.parseWindow(args.StartTime, args.EndTime)
	if err != nil {
		return "", err
	}

	res := a.coordinator.Check(ctx, w)
	state.lastCheck = &res
	if res.Err != nil {
		return "", fmt.Errorf("calendar unavailable: %s", res.Message)
	}
	if len(res.Alternatives) > 0 {
		state.alternatives = res.Alternatives
	}
	return a.describe(res.Message, res.Alternatives), nil
}

func (a *Agent) bookAppointment(ctx context.Context, req AgentRequest, raw json.RawMessage, state *runState) (string, error) {
	if state.booked != nil {
		return "", errors.New("an appointment was already booked during this call; report the outcome instead of booking again")
	}
	var args bookAppointmentArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	w, err := a.parseWindow(args.StartTime, args.EndTime)
	if err != nil {
		return "", err
	}

	br := req.Request
	br.Window = w
	if strings.TrimSpace(args.Name) != "" {
		br.CallerName = strings.TrimSpace(args.Name)
	}
	if br.CallerPhone == "" {
		br.CallerPhone = strings.TrimSpace(args.Phone)
	}
	if br.CallerEmail == "" {
		br.CallerEmail = strings.TrimSpace(args.Email)
	}

	out := a.coordinator.Book(ctx, br)
	state.lastBook = &out
	switch out.Kind {
	case booking.KindBooked:
		state.booked = &out
	case booking.KindAlternativesOffered:
		state.alternatives = out.Alternatives
	}
	return a.describe(out.Message, out.Alternatives), nil
}

func (a *Agent) reportOutcome(raw json.RawMessage, state *runState) (string, error) {
	var args reportOutcomeArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return "", err
	}
	args.Status = strings.ToLower(strings.TrimSpace(args.Status))
	switch args.Status {
	case ReportBooked, ReportAlternativesOffered, ReportNoAlternatives, ReportNeedsInformation, ReportFailed:
	default:
		return "", fmt.Errorf("unknown status %q", args.Status)
	}
	state.reported = &args
	return "Outcome recorded.", nil
}

// describe appends machine-readable times so the model can book an offered alternative.
func (a *Agent) describe(message string, alts []schedule.TimeWindow) string {
	if len(alts) == 0 {
		return message
	}
	loc := a.coordinator.Hours().Location()
	iso := make([]string, 0, len(alts))
	for _, w := range alts {
		iso = append(iso, w.Start.In(loc).Format(time.RFC3339))
	}
	return fmt.Sprintf("%s\nAlternative start times (ISO-8601): %s", message, strings.Join(iso, ", "))
}

func (a *Agent) parseWindow(startRaw, endRaw string) (schedule.TimeWindow, error) {
	hours := a.coordinator.Hours()
	start, err := schedule.ParseInstant(startRaw, hours.Location())
	if err != nil {
		return schedule.TimeWindow{}, fmt.Errorf("startTime must be ISO-8601: %w", err)
	}
	if strings.TrimSpace(endRaw) == "" {
		return hours.SlotAt(start), nil
	}
	end, err := schedule.ParseInstant(endRaw, hours.Location())
	if err != nil {
		return schedule.TimeWindow{}, fmt.Errorf("endTime must be ISO-8601: %w", err)
	}
	w, err := schedule.NewTimeWindow(start, end)
	if err != nil {
		return schedule.TimeWindow{}, err
	}
	return w, nil
}

// reportedKinds maps reportOutcome statuses onto outcome kinds.
var reportedKinds = map[string]booking.Kind{
	ReportBooked:              booking.KindBooked,
	ReportAlternativesOffered: booking.KindAlternativesOffered,
	ReportNoAlternatives:      booking.KindNoAlternatives,
	ReportNeedsInformation:    booking.KindFailed,
	ReportFailed:              booking.KindFailed,
}

// reconcile decides the outcome from recorded tool effects. The model's prose replaces
// the rendered message only when its reported status agrees with that outcome; without a
// reported status it is spoken only over outcomes backed by a tool effect.
func (a *Agent) reconcile(state *runState, reported, prose string) booking.Outcome {
	prose = strings.TrimSpace(prose)
	withProse := func(out booking.Outcome) booking.Outcome {
		if prose == "" {
			return out
		}
		if reported == "" {
			if out.Kind != booking.KindFailed {
				out.Message = prose
			}
			return out
		}
		if kind, ok := reportedKinds[reported]; ok && kind == out.Kind {
			out.Message = prose
			return out
		}
		a.logger.Warn("model prose contradicts recorded outcome", "reported", reported, "outcome", string(out.Kind))
		return out
	}

	if state.booked != nil {
		return withProse(*state.booked)
	}
	if reported == ReportBooked {
		a.logger.Warn("model reported a booking that never succeeded")
	}

	if reported != ReportNeedsInformation && len(state.alternatives) > 0 {
		out := booking.Outcome{
			Kind:         booking.KindAlternativesOffered,
			Alternatives: state.alternatives,
			Message:      a.coordinator.Messages().Alternatives(a.lastDecision(state), state.alternatives),
		}
		if state.lastBook != nil {
			out.Window = state.lastBook.Window
		} else if state.lastCheck != nil {
			out.Window = state.lastCheck.Window
		}
		out.Decision = a.lastDecision(state)
		return withProse(out)
	}

	if state.lastBook != nil && state.lastBook.Kind != booking.KindAlternativesOffered {
		return withProse(*state.lastBook)
	}
	if state.lastCheck != nil && state.lastCheck.Err == nil && !state.lastCheck.Available() && !state.lastCheck.PastDate {
		return withProse(booking.Outcome{
			Kind:     booking.KindNoAlternatives,
			Window:   state.lastCheck.Window,
			Decision: state.lastCheck.Decision,
			Message:  state.lastCheck.Message,
		})
	}

	out := booking.Outcome{
		Kind:          booking.KindFailed,
		FailureReason: booking.FailureUnresolved,
		Message:       "I wasn't able to finish booking your appointment. Could you tell me the day and time you'd like?",
	}
	if state.lastCheck != nil && state.lastCheck.PastDate {
		out.FailureReason = booking.FailurePastDate
		out.Window = state.lastCheck.Window
		out.Message = state.lastCheck.Message
	}
	return withProse(out)
}

func (a *Agent) lastDecision(state *runState) *availability.Decision {
	if state.lastBook != nil && state.lastBook.Decision != nil {
		return state.lastBook.Decision
	}
	if state.lastCheck != nil {
		return state.lastCheck.Decision
	}
	return nil
}

func (a *Agent) failed(reason booking.FailureReason, state *runState) booking.Outcome {
	// A booking that already succeeded stands even if the loop fails afterwards.
	if state.booked != nil {
		return *state.booked
	}
	msg := "I'm sorry, I'm having trouble completing your booking right now. Someone from our team will follow up to confirm a time."
	return booking.Outcome{Kind: booking.KindFailed, FailureReason: reason, Message: msg}
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return nil
}
