package scheduling

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/voice-scheduler/internal/archive"
	"github.com/wolfman30/voice-scheduler/internal/availability"
	"github.com/wolfman30/voice-scheduler/internal/booking"
	"github.com/wolfman30/voice-scheduler/internal/bookings"
	"github.com/wolfman30/voice-scheduler/internal/calendar"
	"github.com/wolfman30/voice-scheduler/internal/conversation"
	"github.com/wolfman30/voice-scheduler/internal/events"
	"github.com/wolfman30/voice-scheduler/internal/observability/metrics"
	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/internal/toolcall"
)

type fixture struct {
	hours      *schedule.BusinessHours
	cal        *calendar.MemoryClient
	store      *bookings.MemoryStore
	deliveries *events.MemoryDeliveryStore
	model      *replayModel
	archived   *recordingArchiver
	svc        *Service
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []*archive.TranscriptRecord
}

func (a *recordingArchiver) ArchiveTranscript(ctx context.Context, record *archive.TranscriptRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

type replayModel struct {
	mu        sync.Mutex
	responses []conversation.ModelResponse
	requests  []conversation.ModelRequest
}

func (m *replayModel) Converse(ctx context.Context, req conversation.ModelRequest) (conversation.ModelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return conversation.ModelResponse{Text: "Sorry, I could not book that."}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

type staticKnowledge map[string]string

func (k staticKnowledge) ContextPrompt(ctx context.Context, businessID string) (string, error) {
	return k[businessID], nil
}

func tool(id, name string, args map[string]string) conversation.ModelResponse {
	raw, _ := json.Marshal(args)
	return conversation.ModelResponse{ToolCalls: []conversation.ToolCall{{ID: id, Name: name, Arguments: raw}}}
}

func newFixture(t *testing.T, withAgent bool, busy ...schedule.TimeWindow) *fixture {
	t.Helper()
	hours := schedule.DefaultBusinessHours()
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, hours.Location())
	clock := func() time.Time { return now }

	cal := calendar.NewMemoryClient(busy...)
	store := bookings.NewMemoryStore()
	resolver := availability.NewResolver(hours, cal, nil)
	coord := booking.NewCoordinator(booking.Deps{
		Resolver: resolver,
		Searcher: availability.NewSearcher(resolver, cal, availability.SearchOptions{}, clock, nil),
		Calendar: cal,
		Store:    store,
		Now:      clock,
	})

	f := &fixture{hours: hours, cal: cal, store: store, deliveries: events.NewMemoryDeliveryStore(0), model: &replayModel{}, archived: &recordingArchiver{}}
	deps := Deps{
		Coordinator:       coord,
		CallLogs:          store,
		Deliveries:        f.deliveries,
		Knowledge:         staticKnowledge{"biz-1": "Free parking behind the building."},
		Archiver:          f.archived,
		Metrics:           metrics.NewBookingMetrics(prometheus.NewRegistry()),
		BusinessName:      "Glow Studio",
		DefaultBusinessID: "biz-1",
	}
	if withAgent {
		deps.Agent = conversation.NewAgent(f.model, coord, 0, nil)
	}
	f.svc = NewService(deps)
	return f
}

func bookInvocation(name, dateTime string) toolcall.Invocation {
	return toolcall.Invocation{
		ToolCallID: "tc-1",
		CallID:     "call-1",
		Tool:       toolcall.ToolBookAppointment,
		Arguments:  toolcall.Arguments{Name: name, Phone: "+15551234567", DateTime: dateTime},
	}
}

func TestScenarioBookedOnFastPath(t *testing.T) {
	f := newFixture(t, false)

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "2024-01-15T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	assert.Equal(t, booking.KindBooked, reply.Outcome.Kind)
	assert.Contains(t, reply.Message, "has been booked")
	assert.Equal(t, "tc-1", reply.ToolCallID)

	logs := f.store.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, bookings.StatusBooked, logs[0].Status)
	require.NotNil(t, logs[0].BookedStart)
	assert.True(t, logs[0].BookedStart.Equal(time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)))
	assert.Equal(t, "call-1", logs[0].CallID)

	appts := f.store.Appointments()
	require.Len(t, appts, 1)
	assert.Equal(t, logs[0].ID, appts[0].CallLogID)
	assert.Equal(t, 1, f.cal.Calls("create"))
	assert.Empty(t, f.archived.records)
}

func TestScenarioConflictOffersThreeAlternatives(t *testing.T) {
	hours := schedule.DefaultBusinessHours()
	requested := time.Date(2024, 1, 15, 14, 0, 0, 0, hours.Location())
	f := newFixture(t, false, hours.SlotAt(requested))

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "2024-01-15T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	assert.Equal(t, booking.KindAlternativesOffered, reply.Outcome.Kind)
	require.Len(t, reply.Outcome.Alternatives, 3)
	for i, alt := range reply.Outcome.Alternatives {
		assert.True(t, alt.Start.After(requested), "alternative %d not after request", i)
		assert.Equal(t, schedule.WithinHours, hours.CheckWindow(alt))
		if i > 0 {
			assert.False(t, alt.Start.Before(reply.Outcome.Alternatives[i-1].Start))
		}
	}
	assert.Contains(t, reply.Message, "these times are available")

	logs := f.store.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, bookings.StatusAlternativesOffered, logs[0].Status)
	assert.Equal(t, string(availability.ReasonAlreadyBooked), logs[0].Reason)
	assert.Equal(t, 0, f.cal.Calls("create"))
}

func TestScenarioPastDateTouchesNothing(t *testing.T) {
	f := newFixture(t, false)

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "2023-01-15T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	assert.Equal(t, booking.KindFailed, reply.Outcome.Kind)
	assert.Equal(t, booking.FailurePastDate, reply.Outcome.FailureReason)
	assert.Equal(t, 0, f.cal.TotalCalls())
	assert.Equal(t, 0, f.store.CallLogCount())
	assert.Empty(t, f.store.Appointments())
}

func TestScenarioWeekendSearchesFromNextBusinessDay(t *testing.T) {
	f := newFixture(t, false)

	reply := f.svc.Handle(context.Background(), bookInvocation("Jane Doe", "2024-01-13T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	require.NotNil(t, reply.Outcome.Decision)
	assert.Equal(t, availability.ReasonOutsideBusinessHours, reply.Outcome.Decision.Reason)
	require.NotEmpty(t, reply.Outcome.Alternatives)
	first := reply.Outcome.Alternatives[0].Start.In(f.hours.Location())
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, f.hours.Location()), first)
	assert.Contains(t, reply.Message, "outside our business hours")
}

func TestRetriedDeliveryIsReplayed(t *testing.T) {
	f := newFixture(t, false)
	inv := bookInvocation("John Doe", "2024-01-15T14:00:00-05:00")

	first := f.svc.Handle(context.Background(), inv)
	second := f.svc.Handle(context.Background(), inv)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, 1, f.cal.Calls("create"))
	assert.Equal(t, 1, f.store.CallLogCount())
}

func TestInFlightDuplicateDoesNotBook(t *testing.T) {
	f := newFixture(t, false)
	inv := bookInvocation("John Doe", "2024-01-15T14:00:00-05:00")
	_, err := f.deliveries.Claim(context.Background(), inv.DeliveryKey())
	require.NoError(t, err)

	reply := f.svc.Handle(context.Background(), inv)

	assert.True(t, reply.Replayed)
	assert.Equal(t, stillWorkingMessage, reply.Message)
	assert.Equal(t, 0, f.cal.TotalCalls())
}

func TestMissingNameIsRejectedWithoutExternalCalls(t *testing.T) {
	f := newFixture(t, false)

	reply := f.svc.Handle(context.Background(), bookInvocation("  ", "2024-01-15T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	assert.Equal(t, booking.FailureValidation, reply.Outcome.FailureReason)
	assert.Equal(t, bookings.StatusRejected, reply.Outcome.CallLogStatus())
	assert.NotEmpty(t, reply.Message)
	assert.Equal(t, 0, f.cal.TotalCalls())
	assert.Equal(t, 0, f.store.CallLogCount())
}

func TestNaturalLanguageGoesThroughAgent(t *testing.T) {
	f := newFixture(t, true)
	f.model.responses = []conversation.ModelResponse{
		tool("a", conversation.ToolCheckAvailability, map[string]string{"startTime": "2024-01-15T14:00:00-05:00", "endTime": "2024-01-15T14:30:00-05:00"}),
		tool("b", conversation.ToolBookAppointment, map[string]string{"startTime": "2024-01-15T14:00:00-05:00", "endTime": "2024-01-15T14:30:00-05:00", "name": "John Doe"}),
		tool("c", conversation.ToolReportOutcome, map[string]string{"status": "booked", "message": "You're booked for Monday at 2 PM."}),
	}

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "next Monday at 2pm"))

	require.NotNil(t, reply.Outcome)
	assert.True(t, reply.Outcome.Booked())
	assert.Equal(t, "You're booked for Monday at 2 PM.", reply.Message)

	require.NotEmpty(t, f.model.requests)
	system := strings.Join(f.model.requests[0].System, "\n")
	assert.Contains(t, system, "Free parking behind the building.")
	assert.Contains(t, f.model.requests[0].Turns[0].Text, "next Monday at 2pm")

	logs := f.store.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, bookings.StatusBooked, logs[0].Status)
	assert.Equal(t, "next Monday at 2pm", logs[0].RequestedRaw)
	require.Len(t, f.store.Appointments(), 1)
	assert.Equal(t, logs[0].ID, f.store.Appointments()[0].CallLogID)

	require.Len(t, f.archived.records, 1)
	rec := f.archived.records[0]
	assert.Equal(t, logs[0].ID, rec.CallLogID)
	assert.Equal(t, "call-1", rec.CallID)
	assert.Equal(t, "booked", rec.Outcome)
	assert.Equal(t, 3, rec.Iterations)
	assert.Equal(t, archive.HashPhone("+15551234567"), rec.PhoneHash)
	require.NotEmpty(t, rec.Messages)
	assert.Contains(t, rec.Messages[0].Content, "next Monday at 2pm")
	var tools []string
	for _, m := range rec.Messages {
		if m.Tool != "" && m.Role == conversation.RoleTool {
			tools = append(tools, m.Tool)
		}
	}
	assert.Equal(t, []string{conversation.ToolCheckAvailability, conversation.ToolBookAppointment, conversation.ToolReportOutcome}, tools)
}

func TestNaturalLanguageWithoutAgent(t *testing.T) {
	f := newFixture(t, false)

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "sometime next week"))

	assert.Equal(t, unparsedTimeMessage, reply.Message)
	logs := f.store.CallLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, bookings.StatusFailed, logs[0].Status)
	assert.Equal(t, string(booking.FailureUnresolved), logs[0].Reason)
}

func TestCheckAvailabilityIsReadOnly(t *testing.T) {
	f := newFixture(t, false)
	inv := toolcall.Invocation{
		ToolCallID: "tc-9",
		Tool:       toolcall.ToolCheckAvailability,
		Arguments:  toolcall.Arguments{StartTime: "2024-01-15T14:00:00-05:00", EndTime: "2024-01-15T14:30:00-05:00"},
	}

	reply := f.svc.Handle(context.Background(), inv)

	require.NotNil(t, reply.Check)
	assert.True(t, reply.Check.Available())
	assert.Contains(t, reply.Message, "is available")
	assert.Equal(t, 0, f.cal.Calls("create"))
	assert.Equal(t, 0, f.store.CallLogCount())
}

func TestCheckAvailabilityUnparseableTime(t *testing.T) {
	f := newFixture(t, false)
	inv := toolcall.Invocation{Tool: toolcall.ToolCheckAvailability, Arguments: toolcall.Arguments{StartTime: "tomorrow afternoon"}}

	reply := f.svc.Handle(context.Background(), inv)

	assert.Equal(t, unparsedTimeMessage, reply.Message)
	assert.Equal(t, 0, f.cal.TotalCalls())
}

func TestCallLogFailureDoesNotBlockBooking(t *testing.T) {
	f := newFixture(t, false)
	failing := &failingCallLogs{}
	f.svc.callLogs = failing

	reply := f.svc.Handle(context.Background(), bookInvocation("John Doe", "2024-01-15T14:00:00-05:00"))

	require.NotNil(t, reply.Outcome)
	assert.True(t, reply.Outcome.Booked())
	assert.Equal(t, 0, failing.updates)
}

type failingCallLogs struct {
	updates int
}

func (f *failingCallLogs) CreateCallLog(ctx context.Context, in bookings.CallLog) (string, error) {
	return "", context.DeadlineExceeded
}

func (f *failingCallLogs) UpdateCallLog(ctx context.Context, id string, upd bookings.CallLogUpdate) error {
	f.updates++
	return nil
}
