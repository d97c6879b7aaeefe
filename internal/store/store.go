// ABOUTME: Store interface and data types for gateway persistence
// ABOUTME: Defines calendar events and the tool-call audit log

package store

import (
	"context"
	"errors"
	"time"

	"github.com/shivsinghin/Voice-Assistant/internal/dispatch"
	"github.com/shivsinghin/Voice-Assistant/internal/tools"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidEvent is returned when an event's times are inconsistent
var ErrInvalidEvent = errors.New("invalid calendar event")

// CalendarEvent is a stored calendar entry
type CalendarEvent struct {
	ID        string
	Summary   string
	StartAt   time.Time
	EndAt     time.Time
	AllDay    bool
	CreatedAt time.Time
}

// ToolCall is one audited capability invocation
type ToolCall struct {
	ID         string
	CallID     string
	SessionID  string
	Capability string
	Status     string
	ErrorKind  string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// ToolCallFilter specifies filtering options for listing tool calls
type ToolCallFilter struct {
	SessionID  string // empty means any
	Capability string // empty means any
	Since      *time.Time
	Limit      int // default 100, max 1000
}

// Store defines the persistence operations used by the gateway
type Store interface {
	// Calendar
	CreateCalendarEvent(ctx context.Context, ev *CalendarEvent) error
	GetCalendarEvent(ctx context.Context, id string) (*CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, from, to time.Time) ([]*CalendarEvent, error)
	DeleteCalendarEvent(ctx context.Context, id string) error
	OpenCalendar(ctx context.Context) (tools.Calendar, error)

	// Tool-call audit
	RecordCall(ctx context.Context, rec dispatch.Record) error
	ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error)
	PruneToolCalls(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
