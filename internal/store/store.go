// ABOUTME: Journal entities and the interface the MCP dispatcher writes through.
// ABOUTME: SQLiteStore is the only implementation.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Outcome is how a tool call ended.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// ToolCall is one journaled tools/call.
type ToolCall struct {
	ID         string        // UUID v4, generated when empty
	Tool       string        // tool name as requested
	Arguments  string        // raw JSON arguments
	Outcome    Outcome       // ok or error
	Error      string        // error text when Outcome is error
	Duration   time.Duration // wall time inside the handler
	CalledAt   time.Time     // when the call started
	SessionID  string        // Mcp-Session-Id of the caller, if any
	ChannelID  string        // channel the call arrived on
	ResultSize int           // bytes of result text
}

// ToolCallFilter narrows ListToolCalls.
type ToolCallFilter struct {
	Tool    *string
	Outcome *Outcome
	Since   *time.Time
	Limit   int // default 100, max 1000
}

// ToolStats aggregates the journal per tool.
type ToolStats struct {
	Tool          string
	Calls         int
	Errors        int
	AvgDurationMs float64
	LastCalledAt  time.Time
}

// Journal records tool calls.
type Journal interface {
	RecordToolCall(ctx context.Context, call *ToolCall) error
}

var _ Journal = (*SQLiteStore)(nil)
