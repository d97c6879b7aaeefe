// Package capability provides the registry of tools the assistant exposes to the LLM.
//
// # Overview
//
// A capability is a named, described, parameterized function the language model
// can call. Capabilities are grouped into modules: each module contributes a
// primary capability and optionally one secondary (the calendar module, for
// example, contributes fetch_calendar_events and create_calendar_event).
//
// # Registration
//
// Modules are not discovered from the filesystem. Each one is constructed by a
// Source listed at startup:
//
//	reg := capability.New(logger,
//	    tools.WeatherSource(rng),
//	    tools.CalendarSource(opener, clock),
//	)
//
// A Source that fails, panics, or produces a module with the wrong shape is
// skipped and logged as a LoadError. Two modules declaring the same capability
// name abort the load with ErrDuplicateCapability.
//
// # Snapshots
//
// Every load produces an immutable Snapshot holding the ordered schema and the
// dispatch table. Both are built together and published with a single atomic
// store, so readers always see a matching pair. Reload builds the next snapshot
// off to the side; a failed reload leaves the current one in place, and callers
// holding an older snapshot keep using it until they drop it.
//
// # Results
//
// Handlers return exactly one Result, either success with a payload or error
// with a user-facing message. A returned Go error is a fault and is converted
// to a generic error Result by the dispatcher.
package capability
