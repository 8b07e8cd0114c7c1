// ABOUTME: Tool-call journal methods: append, list with filters, and per-tool stats
// ABOUTME: Timestamps are fixed-width UTC strings so they sort lexically

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const tsLayout = "2006-01-02T15:04:05.000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

// RecordToolCall appends a call to the journal.
// Generates ID and CalledAt if not set.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, c *ToolCall) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CalledAt.IsZero() {
		c.CalledAt = time.Now().UTC()
	}
	if c.Outcome == "" {
		c.Outcome = OutcomeOK
	}
	args := c.Arguments
	if args == "" {
		args = "{}"
	}

	query := `
		INSERT INTO tool_calls (call_id, tool, arguments, outcome, error, duration_ms, called_at, session_id, channel_id, result_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Tool,
		args,
		string(c.Outcome),
		nullString(c.Error),
		c.Duration.Milliseconds(),
		formatTS(c.CalledAt),
		nullString(c.SessionID),
		nullString(c.ChannelID),
		c.ResultSize,
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call",
		"id", c.ID,
		"tool", c.Tool,
		"outcome", c.Outcome,
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

const toolCallColumns = `call_id, tool, arguments, outcome, error, duration_ms, called_at, session_id, channel_id, result_size`

func scanToolCall(scanner interface{ Scan(dest ...any) error }) (ToolCall, error) {
	var c ToolCall
	var outcome, calledAt string
	var errText, sessionID, channelID sql.NullString
	var durationMs int64

	if err := scanner.Scan(
		&c.ID,
		&c.Tool,
		&c.Arguments,
		&outcome,
		&errText,
		&durationMs,
		&calledAt,
		&sessionID,
		&channelID,
		&c.ResultSize,
	); err != nil {
		return c, fmt.Errorf("scanning tool call: %w", err)
	}

	c.Outcome = Outcome(outcome)
	c.Error = errText.String
	c.SessionID = sessionID.String
	c.ChannelID = channelID.String
	c.Duration = time.Duration(durationMs) * time.Millisecond

	var err error
	c.CalledAt, err = time.Parse(tsLayout, calledAt)
	if err != nil {
		return c, fmt.Errorf("parsing timestamp: %w", err)
	}
	return c, nil
}

// GetToolCall returns one journaled call by ID.
func (s *SQLiteStore) GetToolCall(ctx context.Context, id string) (*ToolCall, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolCallColumns+` FROM tool_calls WHERE call_id = ?`, id)
	c, err := scanToolCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListToolCalls returns calls matching the filter, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCall, error) {
	var since, outcome *string
	if f.Since != nil {
		v := formatTS(*f.Since)
		since = &v
	}
	if f.Outcome != nil {
		v := string(*f.Outcome)
		outcome = &v
	}

	query := `
		SELECT ` + toolCallColumns + `
		FROM tool_calls
		WHERE (? IS NULL OR tool = ?)
		  AND (? IS NULL OR outcome = ?)
		  AND (? IS NULL OR called_at >= ?)
		ORDER BY called_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query,
		f.Tool, f.Tool,
		outcome, outcome,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	calls := []ToolCall{}
	for rows.Next() {
		c, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return calls, nil
}

// ToolCallStats aggregates the journal per tool, busiest first.
func (s *SQLiteStore) ToolCallStats(ctx context.Context) ([]ToolStats, error) {
	query := `
		SELECT tool,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END),
		       AVG(duration_ms),
		       MAX(called_at)
		FROM tool_calls
		GROUP BY tool
		ORDER BY COUNT(*) DESC, tool ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tool stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := []ToolStats{}
	for rows.Next() {
		var st ToolStats
		var last string
		if err := rows.Scan(&st.Tool, &st.Calls, &st.Errors, &st.AvgDurationMs, &last); err != nil {
			return nil, fmt.Errorf("scanning tool stats: %w", err)
		}
		if st.LastCalledAt, err = time.Parse(tsLayout, last); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool stats: %w", err)
	}
	return stats, nil
}
