// ABOUTME: Tests for the built-in tools against a fixed clock and an in-memory calendar.
// ABOUTME: Covers date arithmetic, weather ranges, and calendar create/fetch rules.

package tools

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

// fixedNow returns a clock frozen at the given wall time in loc.
func fixedNow(loc *time.Location, y int, m time.Month, d, hh, mm int) func() time.Time {
	at := time.Date(y, m, d, hh, mm, 0, 0, loc)
	return func() time.Time { return at }
}

type memCalendar struct {
	mu     sync.Mutex
	events []Event
	opened int
	closed int
	fail   error
}

func (m *memCalendar) OpenCalendar(context.Context) (Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.opened++
	return &memHandle{cal: m}, nil
}

func (m *memCalendar) inserted() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

type memHandle struct{ cal *memCalendar }

func (h *memHandle) Events(_ context.Context, from, to time.Time) ([]Event, error) {
	h.cal.mu.Lock()
	defer h.cal.mu.Unlock()
	var out []Event
	for _, ev := range h.cal.events {
		if ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, ev)
		}
	}
	slices.SortFunc(out, func(a, b Event) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (h *memHandle) Insert(_ context.Context, ev Event) (string, error) {
	h.cal.mu.Lock()
	defer h.cal.mu.Unlock()
	ev.ID = "evt-" + string(rune('a'+len(h.cal.events)))
	h.cal.events = append(h.cal.events, ev)
	return ev.ID, nil
}

func (h *memHandle) Close() error {
	h.cal.mu.Lock()
	defer h.cal.mu.Unlock()
	h.cal.closed++
	return nil
}

func buildModule(t *testing.T, src capability.Source) *capability.Module {
	t.Helper()
	m, err := src.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	return m
}

func handlerFor(t *testing.T, m *capability.Module, name string) capability.Handler {
	t.Helper()
	for _, c := range m.Capabilities {
		if c.Descriptor.Name == name {
			return c.Handler
		}
	}
	t.Fatalf("capability %s not in module %s", name, m.Name)
	return nil
}

func call(t *testing.T, h capability.Handler, args capability.Args) capability.Result {
	t.Helper()
	res, err := h(context.Background(), args)
	require.NoError(t, err)
	return res
}

func TestDateInfo(t *testing.T) {
	loc := kolkata(t)
	opts := Options{Location: loc, Now: fixedNow(loc, 2024, time.January, 10, 9, 15)}
	h := handlerFor(t, buildModule(t, DateInfoSource(opts)), "get_date_info")

	t.Run("five days from a Wednesday", func(t *testing.T) {
		res := call(t, h, capability.Args{"query_type": "days_from_now", "days_offset": float64(5)})
		require.True(t, res.OK())
		assert.Equal(t, "January 15, 2024", res.Payload["date"])
		assert.Equal(t, "Monday", res.Payload["day"])
		assert.Equal(t, "15/01/2024", res.Payload["short_date"])
		assert.Contains(t, res.Payload["description"], "5 days")
		assert.Equal(t, "In 5 days, it will be Monday, January 15, 2024", res.Payload["description"])
	})

	t.Run("negative offset", func(t *testing.T) {
		res := call(t, h, capability.Args{"query_type": "days_from_now", "days_offset": float64(-3)})
		assert.Equal(t, "3 days ago was Sunday, January 07, 2024", res.Payload["description"])
	})

	tests := []struct {
		query string
		date  string
		day   string
	}{
		{"today", "January 10, 2024", "Wednesday"},
		{"tomorrow", "January 11, 2024", "Thursday"},
		{"yesterday", "January 09, 2024", "Tuesday"},
		{"date_format", "January 10, 2024", "Wednesday"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := call(t, h, capability.Args{"query_type": tt.query})
			assert.Equal(t, tt.date, res.Payload["date"])
			assert.Equal(t, tt.day, res.Payload["day"])
			assert.Equal(t, tt.query, res.Payload["query_type"])
			assert.Equal(t, "IST", res.Payload["timezone"])
			assert.Equal(t, "The date is "+tt.day+", "+tt.date, res.Payload["description"])
		})
	}

	t.Run("zero offset keeps default description", func(t *testing.T) {
		res := call(t, h, capability.Args{"query_type": "days_from_now"})
		assert.Equal(t, "The date is Wednesday, January 10, 2024", res.Payload["description"])
	})
}

func TestCurrentTime(t *testing.T) {
	loc := kolkata(t)
	opts := Options{Location: loc, Now: fixedNow(loc, 2024, time.January, 15, 14, 30)}
	h := handlerFor(t, buildModule(t, CurrentTimeSource(opts)), "get_current_time")

	res := call(t, h, nil)
	require.True(t, res.OK())
	assert.Equal(t, "January 15, 2024", res.Payload["date"])
	assert.Equal(t, "02:30 PM", res.Payload["time"])
	assert.Equal(t, "Monday", res.Payload["day"])
	assert.Equal(t, "IST", res.Payload["timezone"])
	assert.Equal(t, "Monday, January 15, 2024 at 02:30 PM IST", res.Payload["full_datetime"])
	assert.Equal(t, "Today is Monday, January 15, 2024, and the current time is 02:30 PM IST", res.Payload["description"])
}

func TestWeather(t *testing.T) {
	opts := Options{Rand: rand.New(rand.NewPCG(1, 2))}
	h := handlerFor(t, buildModule(t, WeatherSource(opts)), "get_weather")

	for range 50 {
		res := call(t, h, capability.Args{"location": "Mumbai, India"})
		require.True(t, res.OK())
		assert.Equal(t, "Mumbai, India", res.Payload["location"])
		assert.Contains(t, weatherConditions, res.Payload["conditions"])

		temp := res.Payload["temperature"].(string)
		require.True(t, strings.HasSuffix(temp, "°C"), temp)
		assert.Contains(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, strings.TrimSuffix(temp, "°C"))
		assert.True(t, strings.HasSuffix(res.Payload["humidity"].(string), "%"))
		assert.True(t, strings.HasSuffix(res.Payload["wind_speed"].(string), " km/h"))
		assert.True(t, strings.HasPrefix(res.Payload["description"].(string), "It's currently "))
	}

	for range 50 {
		res := call(t, h, capability.Args{"location": "Austin, TX", "unit": "fahrenheit"})
		temp := res.Payload["temperature"].(string)
		require.True(t, strings.HasSuffix(temp, "°F"), temp)
		n := strings.TrimSuffix(temp, "°F")
		assert.GreaterOrEqual(t, len(n), 2)
		assert.True(t, n >= "16" && n <= "29", temp)
	}
}

func TestWeatherDescriptor(t *testing.T) {
	m := buildModule(t, WeatherSource(Options{}))
	d := m.Capabilities[0].Descriptor
	assert.Equal(t, []string{"location"}, d.Required)

	unit, ok := d.Parameter("unit")
	require.True(t, ok)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit.Enum)
	assert.Equal(t, "celsius", unit.Default)
}

func newCalendarModule(t *testing.T, now func() time.Time) (*capability.Module, *memCalendar) {
	t.Helper()
	cal := &memCalendar{}
	opts := Options{Location: kolkata(t), Now: now, Calendar: cal, Logger: slog.Default()}
	return buildModule(t, CalendarSource(opts)), cal
}

func TestCreateCalendarEvent(t *testing.T) {
	loc := kolkata(t)
	now := fixedNow(loc, 2024, time.January, 10, 12, 0)

	t.Run("past start is rejected without writing", func(t *testing.T) {
		m, cal := newCalendarModule(t, now)
		h := handlerFor(t, m, "create_calendar_event")

		res := call(t, h, capability.Args{"summary": "Standup", "start_time": "9:00 AM", "end_time": "9:30 AM"})
		assert.Equal(t, capability.StatusError, res.Status)
		assert.Equal(t, capability.KindValidation, res.Kind)
		assert.Equal(t, msgPastEvent, res.Message())
		assert.Empty(t, cal.inserted())
		assert.Zero(t, cal.opened)
	})

	t.Run("overnight end rolls to next day", func(t *testing.T) {
		m, cal := newCalendarModule(t, now)
		h := handlerFor(t, m, "create_calendar_event")

		res := call(t, h, capability.Args{"summary": "Night shift", "start_time": "11:00 PM", "end_time": "1:00 AM"})
		require.True(t, res.OK(), res.Message())

		events := cal.inserted()
		require.Len(t, events, 1)
		ev := events[0]
		assert.Equal(t, time.Date(2024, time.January, 10, 23, 0, 0, 0, loc), ev.Start)
		assert.Equal(t, time.Date(2024, time.January, 11, 1, 0, 0, 0, loc), ev.End)
		assert.Equal(t, ev.Start.AddDate(0, 0, 1).Day(), ev.End.Day())
		assert.Equal(t, 1, ev.End.Hour())

		assert.Equal(t, "11 PM", res.Payload["start_time"])
		assert.Equal(t, "today", res.Payload["date"])
		assert.Equal(t, "I've scheduled Night shift for 11 PM today.", res.Payload["message"])
		assert.Equal(t, 1, cal.opened)
		assert.Equal(t, 1, cal.closed)
	})

	t.Run("explicit date formats", func(t *testing.T) {
		m, cal := newCalendarModule(t, now)
		h := handlerFor(t, m, "create_calendar_event")

		res := call(t, h, capability.Args{"summary": "Review", "start_time": "2:30 pm", "end_time": "3:30 PM", "date": "15-01-2024"})
		require.True(t, res.OK(), res.Message())
		assert.Equal(t, "2:30 PM", res.Payload["start_time"])
		assert.Equal(t, "15th January", res.Payload["date"])

		res = call(t, h, capability.Args{"summary": "Demo", "start_time": "10:00 AM", "end_time": "11:00 AM", "date": "2024-01-11"})
		require.True(t, res.OK(), res.Message())
		assert.Equal(t, "tomorrow", res.Payload["date"])
		assert.Len(t, cal.inserted(), 2)
	})

	invalid := []struct {
		name string
		args capability.Args
		msg  string
	}{
		{"missing summary", capability.Args{"start_time": "2:00 PM", "end_time": "3:00 PM"}, msgMissingFields},
		{"blank end", capability.Args{"summary": "x", "start_time": "2:00 PM", "end_time": "  "}, msgMissingFields},
		{"bad date", capability.Args{"summary": "x", "start_time": "2:00 PM", "end_time": "3:00 PM", "date": "next friday"}, msgBadEventDate},
		{"24h time", capability.Args{"summary": "x", "start_time": "14:00", "end_time": "15:00"}, msgBadEventTime},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			m, cal := newCalendarModule(t, now)
			res := call(t, handlerFor(t, m, "create_calendar_event"), tt.args)
			assert.Equal(t, capability.StatusError, res.Status)
			assert.Equal(t, tt.msg, res.Message())
			assert.Empty(t, cal.inserted())
		})
	}

	t.Run("backend failure", func(t *testing.T) {
		m, cal := newCalendarModule(t, now)
		cal.fail = errors.New("disk full")
		res := call(t, handlerFor(t, m, "create_calendar_event"), capability.Args{"summary": "x", "start_time": "2:00 PM", "end_time": "3:00 PM"})
		assert.Equal(t, msgCreateFailed, res.Message())
	})
}

func TestFetchCalendarEvents(t *testing.T) {
	loc := kolkata(t)
	now := fixedNow(loc, 2024, time.January, 10, 8, 0)
	m, cal := newCalendarModule(t, now)
	h := handlerFor(t, m, "fetch_calendar_events")

	t.Run("empty day", func(t *testing.T) {
		res := call(t, h, nil)
		require.True(t, res.OK())
		assert.Equal(t, "today", res.Payload["date"])
		assert.Empty(t, res.Payload["events"])
		assert.Equal(t, "You have no events scheduled for today.", res.Payload["message"])
	})

	cal.events = []Event{
		{ID: "2", Summary: "Lunch", Start: time.Date(2024, 1, 11, 13, 0, 0, 0, loc), End: time.Date(2024, 1, 11, 14, 0, 0, 0, loc)},
		{ID: "1", Summary: "Standup", Start: time.Date(2024, 1, 11, 9, 30, 0, 0, loc), End: time.Date(2024, 1, 11, 9, 45, 0, 0, loc)},
		{ID: "3", Start: time.Date(2024, 1, 11, 0, 0, 0, 0, loc), End: time.Date(2024, 1, 12, 0, 0, 0, 0, loc), AllDay: true},
		{ID: "4", Summary: "Other day", Start: time.Date(2024, 1, 21, 9, 0, 0, 0, loc), End: time.Date(2024, 1, 21, 10, 0, 0, 0, loc)},
	}

	t.Run("tomorrow with events", func(t *testing.T) {
		res := call(t, h, capability.Args{"date_query": "Tomorrow"})
		require.True(t, res.OK())
		assert.Equal(t, "tomorrow", res.Payload["date"])
		assert.Equal(t, "Here's what's scheduled for tomorrow:", res.Payload["message"])

		events := res.Payload["events"].([]map[string]any)
		require.Len(t, events, 3)
		assert.Equal(t, map[string]any{"summary": "Unnamed Event", "time": "all day", "is_all_day": true}, events[0])
		assert.Equal(t, map[string]any{"summary": "Standup", "time": "9:30 AM", "is_all_day": false}, events[1])
		assert.Equal(t, map[string]any{"summary": "Lunch", "time": "1 PM", "is_all_day": false}, events[2])
	})

	t.Run("specific date", func(t *testing.T) {
		res := call(t, h, capability.Args{"date_query": "2024-01-21"})
		require.True(t, res.OK())
		assert.Equal(t, "21st January", res.Payload["date"])
	})

	t.Run("unparseable date", func(t *testing.T) {
		res := call(t, h, capability.Args{"date_query": "someday"})
		assert.Equal(t, capability.StatusError, res.Status)
		assert.Equal(t, msgBadQueryDate, res.Message())
	})

	assert.Equal(t, cal.opened, cal.closed)
}

func TestSpeechDate(t *testing.T) {
	loc := kolkata(t)
	today := time.Date(2024, time.March, 5, 0, 0, 0, 0, loc)
	tests := map[int]string{
		1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th",
		21: "21st", 22: "22nd", 23: "23rd", 24: "24th", 30: "30th", 31: "31st",
	}
	for day, want := range tests {
		got := speechDate(time.Date(2024, time.January, day, 10, 0, 0, 0, loc), today)
		assert.Equal(t, want+" January", got)
	}
	assert.Equal(t, "today", speechDate(today.Add(15*time.Hour), today))
	assert.Equal(t, "tomorrow", speechDate(today.AddDate(0, 0, 1), today))
}

func TestCalendarSourceWithoutBackend(t *testing.T) {
	reg := capability.New(slog.Default(), Sources(Options{})...)
	require.NoError(t, reg.Load(context.Background()))

	snap, err := reg.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())

	loadErrs := snap.LoadErrors()
	require.Len(t, loadErrs, 1)
	assert.ErrorIs(t, loadErrs[0], ErrCalendarUnavailable)

	_, err = snap.Lookup("fetch_calendar_events")
	assert.ErrorIs(t, err, capability.ErrUnknownCapability)
}

func TestAllSourcesLoad(t *testing.T) {
	reg := capability.New(slog.Default(), Sources(Options{Calendar: &memCalendar{}})...)
	schema, err := reg.Schema(context.Background())
	require.NoError(t, err)

	var names []string
	for _, d := range schema {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"get_weather",
		"get_current_time",
		"get_date_info",
		"fetch_calendar_events",
		"create_calendar_event",
	}, names)
}
