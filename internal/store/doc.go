// Package store provides persistent storage for the gateway using SQLite.
//
// # Tables
//
//   - calendar_events: the calendar backend behind fetch_calendar_events and
//     create_calendar_event
//   - tool_calls: one audit row per capability invocation
//
// SQLiteStore implements Store, tools.CalendarOpener, and dispatch.Recorder
// in a single struct.
//
// # Calendar handles
//
// Calendar tools acquire a handle per invocation with OpenCalendar. The handle
// pins one connection from the pool and must be closed before the tool
// returns.
//
// # Timestamps
//
// All timestamps are stored as RFC3339 strings in UTC, so range filters and
// ORDER BY work on the text columns directly.
//
// # Retention
//
// Pruner deletes audit rows older than a retention window on a cron schedule.
package store
