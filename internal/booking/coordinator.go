package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/bookings"
	"github.com/wolfman30/voice-scheduler/internal/calendar"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

var bookingTracer = otel.Tracer("voicescheduler.internal.booking")

// AppointmentStore persists confirmed appointments.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a bookings.Appointment) (string, error)
}

// Deps are the collaborators a Coordinator needs. Holder, Notifier and Now are optional.
type Deps struct {
	Resolver *availability.Resolver
	Searcher *availability.Searcher
	Calendar calendar.Client
	Store    AppointmentStore
	Holder   SlotHolder
	Notifier Notifier
	Now      func() time.Time
	Logger   *logging.Logger
}

// Coordinator runs check, book, persist in that order and never returns a raw error.
type Coordinator struct {
	resolver *availability.Resolver
	searcher *availability.Searcher
	calendar calendar.Client
	store    AppointmentStore
	holder   SlotHolder
	notifier Notifier
	messages Messages
	now      func() time.Time
	logger   *logging.Logger
}

// NewCoordinator wires a coordinator.
func NewCoordinator(d Deps) *Coordinator {
	if d.Resolver == nil || d.Searcher == nil {
		panic("booking: resolver and searcher required")
	}
	if d.Calendar == nil {
		panic("booking: calendar client required")
	}
	if d.Store == nil {
		panic("booking: appointment store required")
	}
	if d.Holder == nil {
		d.Holder = NewLocalSlotHolder()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Coordinator{
		resolver: d.Resolver,
		searcher: d.Searcher,
		calendar: d.Calendar,
		store:    d.Store,
		holder:   d.Holder,
		notifier: d.Notifier,
		messages: NewMessages(d.Resolver.Hours()),
		now:      d.Now,
		logger:   d.Logger,
	}
}

// Hours returns the business calendar in force.
func (c *Coordinator) Hours() *schedule.BusinessHours { return c.resolver.Hours() }

// Messages returns the spoken renderer bound to the business calendar.
func (c *Coordinator) Messages() Messages { return c.messages }

// Now returns the coordinator's clock reading.
func (c *Coordinator) Now() time.Time { return c.now() }

// Book resolves req into a terminal Outcome.
func (c *Coordinator) Book(ctx context.Context, req Request) Outcome {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice.business_id", req.BusinessID),
		attribute.String("voice.window", req.Window.String()),
	)

	out := c.book(ctx, req)
	span.SetAttributes(
		attribute.String("voice.outcome", string(out.Kind)),
		attribute.String("voice.failure_reason", string(out.FailureReason)),
	)
	return out
}

func (c *Coordinator) book(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.CallerName) == "" {
		return Outcome{Kind: KindFailed, FailureReason: FailureValidation, Message: c.messages.MissingName()}
	}
	if req.Window.IsZero() || !req.Window.End.After(req.Window.Start) {
		return Outcome{Kind: KindFailed, FailureReason: FailureValidation, Message: c.messages.MissingTime()}
	}
	if !req.Window.End.After(c.now()) {
		c.logger.Info("rejecting past-dated request", "window", req.Window.String())
		return Outcome{Kind: KindFailed, FailureReason: FailurePastDate, Window: req.Window, Message: c.messages.PastDate(req.Window)}
	}

	// The hold spans check and write so two callers cannot both see the slot free.
	release, held, err := c.holder.Acquire(ctx, req.Window)
	switch {
	case err != nil:
		c.logger.Warn("slot hold unavailable; proceeding without hold", "window", req.Window.String(), "error", err)
	case !held:
		c.logger.Info("slot held by a concurrent request", "window", req.Window.String())
		return c.alternatives(ctx, req.Window, &availability.Decision{Reason: availability.ReasonAlreadyBooked})
	default:
		defer release()
	}

	decision, err := c.resolver.Resolve(ctx, req.Window)
	var decided *availability.Decision
	if err != nil {
		c.logger.Warn("availability check failed; treating as unavailable", "window", req.Window.String(), "error", err)
	} else {
		decided = &decision
	}

	if decided != nil && decided.Available {
		if out, ok := c.commit(ctx, req, decided); ok {
			return out
		}
		// The slot could not be committed; offer alternatives as for a conflict.
		decided = &availability.Decision{Reason: availability.ReasonAlreadyBooked}
	}
	return c.alternatives(ctx, req.Window, decided)
}

// commit writes the calendar event and the appointment row while the caller holds the
// slot. ok is false if either write failed.
func (c *Coordinator) commit(ctx context.Context, req Request, decided *availability.Decision) (Outcome, bool) {
	summary := fmt.Sprintf("Appointment: %s", req.CallerName)
	event, err := c.calendar.CreateEvent(ctx, req.Window, summary, describe(req))
	if err != nil {
		c.logger.Warn("calendar event creation failed", "window", req.Window.String(), "error", err)
		return Outcome{}, false
	}

	appointmentID, err := c.store.CreateAppointment(ctx, bookings.Appointment{
		CallLogID:       req.CallLogID,
		BusinessID:      req.BusinessID,
		CallerName:      req.CallerName,
		CallerPhone:     req.CallerPhone,
		CallerEmail:     req.CallerEmail,
		Start:           req.Window.Start,
		End:             req.Window.End,
		ExternalEventID: event.ID,
		Notes:           req.Notes,
	})
	if err != nil {
		c.logger.Error("appointment persistence failed after calendar write",
			"external_event_id", event.ID,
			"window", req.Window.String(),
			"error", err,
		)
		return Outcome{}, false
	}

	c.logger.Info("appointment booked", "appointment_id", appointmentID, "external_event_id", event.ID, "window", req.Window.String())
	if c.notifier != nil {
		if err := c.notifier.NotifyBooked(ctx, Confirmation{
			CallerName:  req.CallerName,
			CallerEmail: req.CallerEmail,
			CallerPhone: req.CallerPhone,
			Window:      req.Window,
			BusinessID:  req.BusinessID,
			EventID:     event.ID,
		}); err != nil {
			c.logger.Warn("booking confirmation not delivered", "appointment_id", appointmentID, "error", err)
		}
	}

	return Outcome{
		Kind:            KindBooked,
		AppointmentID:   appointmentID,
		ExternalEventID: event.ID,
		Window:          req.Window,
		Decision:        decided,
		Message:         c.messages.Booked(req.CallerName, req.Window),
	}, true
}

func (c *Coordinator) alternatives(ctx context.Context, near schedule.TimeWindow, decided *availability.Decision) Outcome {
	alts, err := c.searcher.Search(ctx, availability.Query{Near: near, Count: availability.DefaultAlternativeCount})
	if err != nil {
		c.logger.Warn("alternative search failed", "window", near.String(), "error", err)
		return Outcome{Kind: KindFailed, FailureReason: FailureCalendarError, Window: near, Decision: decided, Message: c.messages.CalendarError()}
	}
	if len(alts) == 0 {
		return Outcome{Kind: KindNoAlternatives, Window: near, Decision: decided, Message: c.messages.NoAlternatives(decided)}
	}
	return Outcome{
		Kind:         KindAlternativesOffered,
		Window:       near,
		Alternatives: alts,
		Decision:     decided,
		Message:      c.messages.Alternatives(decided, alts),
	}
}

// CheckResult is the read-only answer to an availability question.
type CheckResult struct {
	Window       schedule.TimeWindow    `json:"window"`
	Decision     *availability.Decision `json:"decision,omitempty"`
	Alternatives []schedule.TimeWindow  `json:"alternatives,omitempty"`
	PastDate     bool                   `json:"pastDate,omitempty"`
	Err          error                  `json:"-"`
	Message      string                 `json:"message"`
}

// Available reports whether the checked window can be booked.
func (r CheckResult) Available() bool {
	return r.Decision != nil && r.Decision.Available
}

// Check answers whether w is bookable without writing anything. When it is not, up to
// three alternatives are included.
func (c *Coordinator) Check(ctx context.Context, w schedule.TimeWindow) CheckResult {
	ctx, span := bookingTracer.Start(ctx, "booking.check")
	defer span.End()
	span.SetAttributes(attribute.String("voice.window", w.String()))

	if !w.End.After(c.now()) {
		return CheckResult{Window: w, PastDate: true, Message: c.messages.PastDate(w)}
	}
	decision, err := c.resolver.Resolve(ctx, w)
	if err != nil {
		span.RecordError(err)
		return CheckResult{Window: w, Err: err, Message: c.messages.CalendarError()}
	}
	if decision.Available {
		return CheckResult{Window: w, Decision: &decision, Message: c.messages.Available(w)}
	}
	alts, err := c.searcher.Search(ctx, availability.Query{Near: w, Count: availability.DefaultAlternativeCount})
	if err != nil {
		span.RecordError(err)
		return CheckResult{Window: w, Decision: &decision, Err: err, Message: c.messages.CalendarError()}
	}
	res := CheckResult{Window: w, Decision: &decision, Alternatives: alts}
	if len(alts) == 0 {
		res.Message = c.messages.NoAlternatives(&decision)
	} else {
		res.Message = c.messages.Alternatives(&decision, alts)
	}
	return res
}

func describe(req Request) string {
	var b strings.Builder
	b.WriteString("Booked by voice assistant.\n")
	if req.CallerPhone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", req.CallerPhone)
	}
	if req.CallerEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", req.CallerEmail)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", req.Notes)
	}
	return b.String()
}
