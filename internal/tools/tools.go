// ABOUTME: Assembles the assistant's capability modules from shared options.
// ABOUTME: Holds the clock and timezone every time-aware tool computes against.

package tools

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "Asia/Kolkata"

// Options configures the built-in capability modules.
type Options struct {
	// Location is the timezone all date and time answers are given in.
	Location *time.Location
	// Now returns the current instant. Defaults to time.Now.
	Now func() time.Time
	// Rand drives the weather stub. Defaults to a randomly seeded source.
	Rand *rand.Rand
	// Calendar opens calendar handles. Nil leaves the calendar module unloaded.
	Calendar CalendarOpener
	Logger   *slog.Logger
}

// clock reads the current time in the configured zone.
type clock struct {
	loc *time.Location
	now func() time.Time
}

func (c clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns midnight of the current day.
func (c clock) Today() time.Time {
	return startOfDay(c.Now())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (o Options) clock() clock {
	loc := o.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	return clock{loc: loc, now: now}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// lockedRand makes a *rand.Rand safe for concurrent handlers.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// between returns a uniform int in [lo, hi].
func (l *lockedRand) between(lo, hi int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo + l.r.IntN(hi-lo+1)
}

func (l *lockedRand) pick(items []string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return items[l.r.IntN(len(items))]
}

// Sources returns every built-in module source in registration order.
func Sources(opts Options) []capability.Source {
	return []capability.Source{
		WeatherSource(opts),
		CurrentTimeSource(opts),
		DateInfoSource(opts),
		CalendarSource(opts),
	}
}
