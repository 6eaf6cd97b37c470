package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/voice-scheduler/internal/schedule"
	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// GoogleConfig configures the Google Calendar client.
type GoogleConfig struct {
	CalendarID      string
	CredentialsFile string
	// Endpoint overrides the API base URL (emulators and tests).
	Endpoint string
	// Timezone is sent with free/busy queries and new events.
	Timezone string
}

// GoogleClient implements Client over the Google Calendar v3 API.
type GoogleClient struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
	logger     *logging.Logger
}

// NewGoogleClient builds a client from service-account credentials or, when
// CredentialsFile is empty, application default credentials.
func NewGoogleClient(ctx context.Context, cfg GoogleConfig, logger *logging.Logger, opts ...option.ClientOption) (*GoogleClient, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar: calendar id is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return newGoogleClientWithService(svc, cfg, logger), nil
}

func newGoogleClientWithService(svc *gcal.Service, cfg GoogleConfig, logger *logging.Logger) *GoogleClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleClient{
		svc:        svc,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		logger:     logger,
	}
}

// CheckFreeBusy queries freeBusy for exactly w.
func (c *GoogleClient) CheckFreeBusy(ctx context.Context, w schedule.TimeWindow) (bool, error) {
	busy, err := c.ListFreeBusy(ctx, w)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if b.Overlaps(w) {
			return true, nil
		}
	}
	return false, nil
}

// ListFreeBusy issues one freeBusy.query for span.
func (c *GoogleClient) ListFreeBusy(ctx context.Context, span schedule.TimeWindow) ([]schedule.TimeWindow, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin:  span.Start.UTC().Format(time.RFC3339),
		TimeMax:  span.End.UTC().Format(time.RFC3339),
		TimeZone: c.timezone,
		Items:    []*gcal.FreeBusyRequestItem{{Id: c.calendarID}},
	}
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}
	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar: freebusy response missing calendar %q", c.calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: freebusy calendar error: %s", cal.Errors[0].Reason)
	}

	busy := make([]schedule.TimeWindow, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy end %q: %w", period.End, err)
		}
		if !end.After(start) {
			continue
		}
		busy = append(busy, schedule.TimeWindow{Start: start, End: end})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// CreateEvent inserts an event on the configured calendar.
func (c *GoogleClient) CreateEvent(ctx context.Context, w schedule.TimeWindow, summary, description string) (Event, error) {
	ev := &gcal.Event{
		Summary:     summary,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: w.Start.Format(time.RFC3339), TimeZone: c.timezone},
		End:         &gcal.EventDateTime{DateTime: w.End.Format(time.RFC3339), TimeZone: c.timezone},
	}
	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	c.logger.Info("calendar event created", "calendar_id", c.calendarID, "event_id", created.Id, "start", w.Start.Format(time.RFC3339))
	return Event{ID: created.Id, Window: w}, nil
}
