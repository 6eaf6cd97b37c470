// Package scheduling runs one normalized voice tool call through validation,
// idempotency, the fast or agent booking path, and call log resolution.
package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/voice-scheduler/internal/archive"
	"github.com/wolfman30/voice-scheduler/internal/booking"
	"github.com/wolfman30/voice-scheduler/internal/bookings"
	"github.com/wolfman30/voice-scheduler/internal/conversation"
	"github.com/wolfman30/voice-scheduler/internal/events"
	"github.com/wolfman30/voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/internal/toolcall"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

var schedulingTracer = otel.Tracer("voicescheduler.internal.scheduling")

const (
	pathFast  = "fast"
	pathAgent = "agent"
	pathCheck = "check"
)

// CallLogStore records each booking request on receipt and once on resolution.
type CallLogStore interface {
	CreateCallLog(ctx context.Context, in bookings.CallLog) (string, error)
	UpdateCallLog(ctx context.Context, id string, upd bookings.CallLogUpdate) error
}

// DeliveryTracker deduplicates retried webhook deliveries.
type DeliveryTracker interface {
	Claim(ctx context.Context, key string) (*events.Delivery, error)
	Complete(ctx context.Context, key, result string) error
}

// KnowledgeSource supplies pre-formatted business knowledge for the agent.
type KnowledgeSource interface {
	ContextPrompt(ctx context.Context, businessID string) (string, error)
}

// TranscriptArchiver stores agent transcripts for later review.
type TranscriptArchiver interface {
	ArchiveTranscript(ctx context.Context, record *archive.TranscriptRecord) error
}

// Deps wires a Service. Agent, Archiver, Deliveries, Knowledge and Metrics are optional.
type Deps struct {
	Coordinator       *booking.Coordinator
	Agent             *conversation.Agent
	CallLogs          CallLogStore
	Deliveries        DeliveryTracker
	Knowledge         KnowledgeSource
	Archiver          TranscriptArchiver
	Metrics           *metrics.BookingMetrics
	BusinessName      string
	DefaultBusinessID string
	Logger            *logging.Logger
}

// Reply is the spoken answer to one tool call.
type Reply struct {
	ToolCallID string
	Message    string
	Outcome    *booking.Outcome
	Check      *booking.CheckResult
	Replayed   bool
}

// Service handles normalized tool invocations.
type Service struct {
	coord             *booking.Coordinator
	agent             *conversation.Agent
	callLogs          CallLogStore
	deliveries        DeliveryTracker
	knowledge         KnowledgeSource
	archiver          TranscriptArchiver
	metrics           *metrics.BookingMetrics
	businessName      string
	defaultBusinessID string
	logger            *logging.Logger
}

func NewService(d Deps) *Service {
	if d.Coordinator == nil {
		panic("scheduling: booking coordinator required")
	}
	if d.CallLogs == nil {
		panic("scheduling: call log store required")
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Service{
		coord:             d.Coordinator,
		agent:             d.Agent,
		callLogs:          d.CallLogs,
		deliveries:        d.Deliveries,
		knowledge:         d.Knowledge,
		archiver:          d.Archiver,
		metrics:           d.Metrics,
		businessName:      d.BusinessName,
		defaultBusinessID: d.DefaultBusinessID,
		logger:            d.Logger,
	}
}

// Handle never fails: every path ends in a sentence the caller can hear.
func (s *Service) Handle(ctx context.Context, inv toolcall.Invocation) Reply {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.tool", string(inv.Tool)),
		attribute.String("voice.call_id", inv.CallID),
		attribute.String("voice.tool_call_id", inv.ToolCallID),
	)

	logger := s.logger.With("call_id", inv.CallID, "tool_call_id", inv.ToolCallID, "tool", string(inv.Tool))
	started := time.Now()
	defer func() {
		s.metrics.ObserveWebhookLatency(string(inv.Tool), time.Since(started).Seconds())
	}()

	key := inv.DeliveryKey()
	if key != "" && s.deliveries != nil {
		prior, err := s.deliveries.Claim(ctx, key)
		switch {
		case errors.Is(err, events.ErrDeliveryInFlight):
			logger.Info("duplicate delivery while first attempt is running")
			s.metrics.ObserveDuplicate("in_flight")
			return Reply{ToolCallID: inv.ToolCallID, Message: stillWorkingMessage, Replayed: true}
		case err != nil:
			logger.Warn("delivery claim failed, continuing without deduplication", "error", err)
			key = ""
		case prior != nil:
			logger.Info("replaying completed delivery")
			s.metrics.ObserveDuplicate("replayed")
			return Reply{ToolCallID: inv.ToolCallID, Message: prior.Result, Replayed: true}
		}
	}

	var reply Reply
	switch inv.Tool {
	case toolcall.ToolCheckAvailability:
		reply = s.check(ctx, inv, logger)
	default:
		reply = s.book(ctx, inv, logger)
	}
	reply.ToolCallID = inv.ToolCallID
	if strings.TrimSpace(reply.Message) == "" {
		reply.Message = fallbackMessage
	}

	if key != "" {
		// A fresh context so a caller hang-up still records the result for retries.
		completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := s.deliveries.Complete(completeCtx, key, reply.Message); err != nil {
			logger.Warn("delivery completion failed", "error", err)
		}
		cancel()
	}
	return reply
}

func (s *Service) book(ctx context.Context, inv toolcall.Invocation, logger *logging.Logger) Reply {
	args := inv.Arguments
	msgs := s.coord.Messages()
	hours := s.coord.Hours()

	name := strings.TrimSpace(args.Name)
	if name == "" {
		return s.finish(pathFast, booking.Outcome{Kind: booking.KindFailed, FailureReason: booking.FailureValidation, Message: msgs.MissingName()})
	}
	requested := strings.TrimSpace(args.RequestedTime())
	if requested == "" {
		return s.finish(pathFast, booking.Outcome{Kind: booking.KindFailed, FailureReason: booking.FailureValidation, Message: msgs.MissingTime()})
	}

	req := booking.Request{
		CallerName:  name,
		CallerPhone: strings.TrimSpace(args.Phone),
		CallerEmail: strings.TrimSpace(args.Email),
		BusinessID:  s.businessID(args),
		Notes:       strings.TrimSpace(args.Notes),
	}

	start, parseErr := schedule.ParseInstant(requested, hours.Location())
	fast := parseErr == nil
	if fast {
		req.Window = hours.SlotAt(start)
		// Past dates are answered before anything is written.
		if !req.Window.End.After(s.coord.Now()) {
			logger.Info("rejecting past date", "requested", requested)
			return s.finish(pathFast, s.coord.Book(ctx, req))
		}
	}

	callLogID, err := s.callLogs.CreateCallLog(ctx, bookings.CallLog{
		CallID:       inv.CallID,
		ToolCallID:   inv.ToolCallID,
		BusinessID:   req.BusinessID,
		CallerName:   req.CallerName,
		CallerPhone:  req.CallerPhone,
		CallerEmail:  req.CallerEmail,
		RequestedRaw: requested,
		Status:       bookings.StatusReceived,
	})
	if err != nil {
		logger.Error("call log create failed", "error", err)
	}
	req.CallLogID = callLogID
	logger = logger.With("call_log_id", callLogID)

	var (
		out  booking.Outcome
		path string
	)
	if fast {
		path = pathFast
		out = s.coord.Book(ctx, req)
	} else {
		path = pathAgent
		out = s.runAgent(ctx, inv.CallID, req, requested, logger)
	}
	logger.Info("booking resolved", "path", path, "outcome", string(out.Kind), "reason", out.CallLogReason())

	if callLogID != "" {
		upd := bookings.CallLogUpdate{Status: out.CallLogStatus(), Reason: out.CallLogReason()}
		if out.Booked() {
			start, end := out.Window.Start, out.Window.End
			upd.BookedStart, upd.BookedEnd = &start, &end
		}
		if err := s.callLogs.UpdateCallLog(ctx, callLogID, upd); err != nil {
			logger.Error("call log update failed", "error", err)
		}
	}
	return s.finish(path, out)
}

func (s *Service) runAgent(ctx context.Context, callID string, req booking.Request, requested string, logger *logging.Logger) booking.Outcome {
	if s.agent == nil {
		return booking.Outcome{Kind: booking.KindFailed, FailureReason: booking.FailureUnresolved, Message: unparsedTimeMessage}
	}
	if s.knowledge != nil && req.BusinessID != "" {
		prompt, err := s.knowledge.ContextPrompt(ctx, req.BusinessID)
		if err != nil {
			logger.Warn("knowledge lookup failed", "error", err)
		}
		req.ContextPrompt = prompt
	}
	res := s.agent.Run(ctx, conversation.AgentRequest{
		Request:       req,
		RequestedTime: requested,
		BusinessName:  s.businessName,
	})
	s.metrics.ObserveAgentIterations(res.Iterations)
	logger.Info("agent finished", "iterations", res.Iterations, "input_tokens", res.Usage.InputTokens, "output_tokens", res.Usage.OutputTokens)
	s.archiveTranscript(ctx, callID, req, requested, res, logger)
	return res.Outcome
}

func (s *Service) archiveTranscript(ctx context.Context, callID string, req booking.Request, requested string, res conversation.AgentResult, logger *logging.Logger) {
	if s.archiver == nil {
		return
	}
	record := &archive.TranscriptRecord{
		CallLogID:     req.CallLogID,
		CallID:        callID,
		BusinessID:    req.BusinessID,
		PhoneHash:     archive.HashPhone(req.CallerPhone),
		RequestedTime: requested,
		Outcome:       string(res.Outcome.Kind),
		FailureReason: string(res.Outcome.FailureReason),
		Iterations:    res.Iterations,
		InputTokens:   res.Usage.InputTokens,
		OutputTokens:  res.Usage.OutputTokens,
		Messages:      transcriptMessages(res.Transcript),
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.archiver.ArchiveTranscript(archiveCtx, record); err != nil {
		logger.Warn("transcript archive failed", "error", err)
	}
}

func transcriptMessages(turns []conversation.Turn) []archive.Message {
	var out []archive.Message
	for _, t := range turns {
		if strings.TrimSpace(t.Text) != "" {
			out = append(out, archive.Message{Role: t.Role, Content: t.Text})
		}
		for _, call := range t.ToolCalls {
			out = append(out, archive.Message{Role: t.Role, Tool: call.Name, Content: string(call.Arguments)})
		}
		for _, r := range t.ToolResults {
			out = append(out, archive.Message{Role: t.Role, Tool: r.Name, Content: r.Content, IsError: r.IsError})
		}
	}
	return out
}

func (s *Service) check(ctx context.Context, inv toolcall.Invocation, logger *logging.Logger) Reply {
	hours := s.coord.Hours()
	requested := strings.TrimSpace(inv.Arguments.RequestedTime())
	if requested == "" {
		s.metrics.ObserveOutcome(pathCheck, "invalid")
		return Reply{Message: s.coord.Messages().MissingTime()}
	}
	start, err := schedule.ParseInstant(requested, hours.Location())
	if err != nil {
		s.metrics.ObserveOutcome(pathCheck, "invalid")
		return Reply{Message: unparsedTimeMessage}
	}

	w := hours.SlotAt(start)
	if endRaw := strings.TrimSpace(inv.Arguments.EndTime); endRaw != "" {
		if end, err := schedule.ParseInstant(endRaw, hours.Location()); err == nil {
			if explicit, err := schedule.NewTimeWindow(start, end); err == nil {
				w = explicit
			}
		}
	}

	res := s.coord.Check(ctx, w)
	outcome := "unavailable"
	switch {
	case res.PastDate:
		outcome = "past_date"
	case res.Err != nil:
		outcome = "error"
	case res.Available():
		outcome = "available"
	}
	logger.Info("availability checked", "window", w.String(), "outcome", outcome, "alternatives", len(res.Alternatives))
	s.metrics.ObserveOutcome(pathCheck, outcome)
	return Reply{Message: res.Message, Check: &res}
}

func (s *Service) finish(path string, out booking.Outcome) Reply {
	label := string(out.Kind)
	if out.Kind == booking.KindFailed && out.FailureReason != "" {
		label = string(out.FailureReason)
	}
	s.metrics.ObserveOutcome(path, label)
	return Reply{Message: out.Message, Outcome: &out}
}

func (s *Service) businessID(args toolcall.Arguments) string {
	if id := strings.TrimSpace(args.BusinessID); id != "" {
		return id
	}
	return s.defaultBusinessID
}
