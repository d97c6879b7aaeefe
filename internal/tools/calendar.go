// ABOUTME: Calendar module: fetch_calendar_events (primary) and create_calendar_event (secondary).
// ABOUTME: Each invocation opens its own calendar handle and releases it before returning.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

// ErrCalendarUnavailable indicates no calendar backend is configured.
var ErrCalendarUnavailable = errors.New("calendar backend not configured")

// Event is a calendar entry as the tools see it.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Calendar is a handle on the calendar backend, valid for one invocation.
type Calendar interface {
	// Events returns events overlapping [from, to), ordered by start.
	Events(ctx context.Context, from, to time.Time) ([]Event, error)
	// Insert stores ev and returns its ID.
	Insert(ctx context.Context, ev Event) (string, error)
	Close() error
}

// CalendarOpener acquires calendar handles.
type CalendarOpener interface {
	OpenCalendar(ctx context.Context) (Calendar, error)
}

const (
	msgBadQueryDate   = "I couldn't understand that date. You can ask about today, tomorrow, or a specific date."
	msgCalendarDown   = "I'm having trouble accessing your calendar right now."
	msgMissingFields  = "Please provide event title, start time, and end time."
	msgBadEventDate   = "Please provide the date in YYYY-MM-DD or DD-MM-YYYY format"
	msgBadEventTime   = "Please provide the time in 12-hour format, like 2:30 PM"
	msgPastEvent      = "Sorry, I cannot schedule events in the past."
	msgCreateFailed   = "I couldn't create that event. Please try again with a different time."
	dateQueryToday    = "today"
	dateQueryTomorrow = "tomorrow"
)

var dateLayouts = []string{"2006-1-2", "2-1-2006"}

type fetchEventsArgs struct {
	DateQuery string `json:"date_query,omitempty" jsonschema:"default=today" jsonschema_description:"Date to fetch events for: 'today', 'tomorrow', or specific date in DD-MM-YYYY or YYYY-MM-DD format"`
}

type createEventArgs struct {
	Summary   string `json:"summary" validate:"required" jsonschema:"required" jsonschema_description:"The title/name of the event"`
	StartTime string `json:"start_time" validate:"required" jsonschema:"required" jsonschema_description:"Start time in 12-hour format (e.g., '2:30 PM', '9:00 AM')"`
	EndTime   string `json:"end_time" validate:"required" jsonschema:"required" jsonschema_description:"End time in 12-hour format (e.g., '3:30 PM', '10:00 AM')"`
	Date      string `json:"date,omitempty" jsonschema:"default=today" jsonschema_description:"Date for the event: 'today', 'tomorrow', or specific date in DD-MM-YYYY or YYYY-MM-DD format"`
}

// CalendarSource builds the calendar module. It fails, and the module is
// skipped, when no backend is configured.
func CalendarSource(opts Options) capability.Source {
	return capability.Source{
		Name: "calendar",
		Build: func(context.Context) (*capability.Module, error) {
			if opts.Calendar == nil {
				return nil, ErrCalendarUnavailable
			}
			cal := &calendarTools{
				opener:   opts.Calendar,
				clock:    opts.clock(),
				validate: validator.New(validator.WithRequiredStructEnabled()),
				logger:   opts.logger().With("module", "calendar"),
			}

			fetchParams, fetchRequired := capability.ParametersFor(&fetchEventsArgs{})
			createParams, createRequired := capability.ParametersFor(&createEventArgs{})
			return &capability.Module{
				Name: "calendar",
				Capabilities: []capability.Capability{
					{
						Descriptor: capability.Descriptor{
							Name:        "fetch_calendar_events",
							Description: "Fetch calendar events for a specific date (today, tomorrow, or specific date)",
							Parameters:  fetchParams,
							Required:    fetchRequired,
						},
						Handler: cal.fetch,
					},
					{
						Descriptor: capability.Descriptor{
							Name:        "create_calendar_event",
							Description: "Create a new calendar event with natural language time input",
							Parameters:  createParams,
							Required:    createRequired,
						},
						Handler: cal.create,
					},
				},
			}, nil
		},
	}
}

type calendarTools struct {
	opener   CalendarOpener
	clock    clock
	validate *validator.Validate
	logger   *slog.Logger
}

func (c *calendarTools) fetch(ctx context.Context, args capability.Args) (capability.Result, error) {
	var in fetchEventsArgs
	if err := args.Decode(&in); err != nil {
		return capability.ValidationError(msgBadQueryDate), nil
	}

	day, ok := c.resolveDate(in.DateQuery)
	if !ok {
		return capability.ValidationError(msgBadQueryDate), nil
	}

	cal, err := c.opener.OpenCalendar(ctx)
	if err != nil {
		c.logger.Error("failed to open calendar", "error", err)
		return capability.Failure(msgCalendarDown), nil
	}
	defer c.closeCalendar(cal)

	events, err := cal.Events(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		c.logger.Error("failed to fetch calendar events", "error", err)
		return capability.Failure(msgCalendarDown), nil
	}

	dateStr := speechDate(day, c.clock.Today())
	formatted := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		summary := ev.Summary
		if summary == "" {
			summary = "Unnamed Event"
		}
		when := "all day"
		if !ev.AllDay {
			when = speechTime(ev.Start.In(c.clock.loc))
		}
		formatted = append(formatted, map[string]any{
			"summary":    summary,
			"time":       when,
			"is_all_day": ev.AllDay,
		})
	}

	message := fmt.Sprintf("Here's what's scheduled for %s:", dateStr)
	if len(formatted) == 0 {
		message = fmt.Sprintf("You have no events scheduled for %s.", dateStr)
	}
	return capability.Success(map[string]any{
		"date":    dateStr,
		"events":  formatted,
		"message": message,
	}), nil
}

func (c *calendarTools) create(ctx context.Context, args capability.Args) (capability.Result, error) {
	var in createEventArgs
	if err := args.Decode(&in); err != nil {
		return capability.ValidationError(msgMissingFields), nil
	}
	in.Summary = strings.TrimSpace(in.Summary)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if err := c.validate.Struct(in); err != nil {
		return capability.ValidationError(msgMissingFields), nil
	}

	day, ok := c.resolveDate(in.Date)
	if !ok {
		return capability.ValidationError(msgBadEventDate), nil
	}

	start, end, err := eventSpan(day, in.StartTime, in.EndTime)
	if err != nil {
		return capability.ValidationError(msgBadEventTime), nil
	}

	now := c.clock.Now()
	if start.Before(now) {
		return capability.ValidationError(msgPastEvent), nil
	}

	cal, err := c.opener.OpenCalendar(ctx)
	if err != nil {
		c.logger.Error("failed to open calendar", "error", err)
		return capability.Failure(msgCreateFailed), nil
	}
	defer c.closeCalendar(cal)

	id, err := cal.Insert(ctx, Event{Summary: in.Summary, Start: start, End: end})
	if err != nil {
		c.logger.Error("failed to create calendar event", "summary", in.Summary, "error", err)
		return capability.Failure(msgCreateFailed), nil
	}

	c.logger.Info("calendar event created", "event_id", id, "start", start, "end", end)

	timeStr := speechTime(start)
	dateStr := speechDate(start, startOfDay(now))
	return capability.Success(map[string]any{
		"event_id":   id,
		"summary":    in.Summary,
		"start_time": timeStr,
		"date":       dateStr,
		"message":    fmt.Sprintf("I've scheduled %s for %s %s.", in.Summary, timeStr, dateStr),
	}), nil
}

func (c *calendarTools) closeCalendar(cal Calendar) {
	if err := cal.Close(); err != nil {
		c.logger.Warn("failed to release calendar handle", "error", err)
	}
}

// resolveDate turns "today", "tomorrow", YYYY-MM-DD, or DD-MM-YYYY into
// midnight of that day in the configured zone. Empty means today.
func (c *calendarTools) resolveDate(query string) (time.Time, bool) {
	today := c.clock.Today()
	q := strings.TrimSpace(query)
	switch strings.ToLower(q) {
	case "", dateQueryToday:
		return today, true
	case dateQueryTomorrow:
		return today.AddDate(0, 0, 1), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, q, c.clock.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// eventSpan places two 12-hour clock times on day. An end earlier than the
// start rolls over to the following day.
func eventSpan(day time.Time, startClock, endClock string) (time.Time, time.Time, error) {
	start, err := onDay(day, startClock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := onDay(day, endClock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

func onDay(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("3:04 PM", strings.ToUpper(hhmm))
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// speechTime renders "2 PM" on the hour and "2:30 PM" otherwise.
func speechTime(t time.Time) string {
	if t.Minute() == 0 {
		return t.Format("3 PM")
	}
	return t.Format("3:04 PM")
}

// speechDate renders "today", "tomorrow", or "15th January".
func speechDate(day, today time.Time) string {
	d := startOfDay(day.In(today.Location()))
	switch {
	case d.Equal(today):
		return "today"
	case d.Equal(today.AddDate(0, 0, 1)):
		return "tomorrow"
	}
	return fmt.Sprintf("%d%s %s", d.Day(), ordinalSuffix(d.Day()), d.Month())
}

func ordinalSuffix(day int) string {
	if (day >= 4 && day <= 20) || (day >= 24 && day <= 30) {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
