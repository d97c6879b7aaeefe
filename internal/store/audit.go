// ABOUTME: Tool-call audit log: one row per capability invocation
// ABOUTME: Implements dispatch.Recorder and supports listing and retention pruning

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shivsinghin/Voice-Assistant/internal/dispatch"
)

// RecordCall appends a dispatch record to the audit log.
func (s *SQLiteStore) RecordCall(ctx context.Context, rec dispatch.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (id, call_id, session_id, capability, status, error_kind, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		rec.CallID,
		rec.SessionID,
		rec.Capability,
		string(rec.Status),
		string(rec.Kind),
		nullString(rec.Error),
		rec.Duration.Milliseconds(),
		formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"call_id", rec.CallID,
		"capability", rec.Capability,
		"status", rec.Status,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000).
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const toolCallQuery = `
	SELECT id, call_id, session_id, capability, status, error_kind, COALESCE(error, ''), duration_ms, created_at
	FROM tool_calls
	WHERE (? = '' OR session_id = ?)
	  AND (? = '' OR capability = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
`

// ListToolCalls returns tool calls matching the filter, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	var since *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		since = &v
	}

	rows, err := s.db.QueryContext(ctx, toolCallQuery,
		f.SessionID, f.SessionID,
		f.Capability, f.Capability,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	calls := []ToolCall{}
	for rows.Next() {
		var c ToolCall
		var createdStr string
		if err := rows.Scan(
			&c.ID, &c.CallID, &c.SessionID, &c.Capability, &c.Status,
			&c.ErrorKind, &c.Error, &c.DurationMS, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return calls, nil
}

// PruneToolCalls deletes audit rows created before olderThan and returns
// how many were removed.
func (s *SQLiteStore) PruneToolCalls(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tool_calls WHERE created_at < ?`, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("pruning tool calls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
