// ABOUTME: JSON-RPC dispatcher: routes initialize, tools/list and tools/call to the tool registry.
// ABOUTME: Tool failures and panics become -32603 responses; observability never changes a reply.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/note-gateway/internal/store"
	"github.com/2389/note-gateway/internal/tools"
)

// ChannelState is the handshake state of one channel.
type ChannelState int

const (
	AwaitingInitialize ChannelState = iota
	Initialized
)

func (s ChannelState) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "awaiting_initialize"
}

// Channel is one bidirectional conversation with a peer: a single POST, or
// a long-lived SSE stream.
type Channel struct {
	ID string

	mu    sync.Mutex
	state ChannelState
}

// NewChannel creates a channel in the AwaitingInitialize state.
func NewChannel() *Channel {
	return &Channel{ID: uuid.New().String()}
}

// State returns the channel's current handshake state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) markInitialized() {
	c.mu.Lock()
	c.state = Initialized
	c.mu.Unlock()
}

// Reply is the outcome of dispatching one message.
type Reply struct {
	// Message is nil for notifications.
	Message *JSONRPCResponse
	// SessionID is set when initialize created a session.
	SessionID string
}

// Config holds the dependencies for a Dispatcher.
type Config struct {
	Registry        *tools.Registry
	Sessions        *SessionStore
	Journal         store.Journal // optional
	Logger          *slog.Logger
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
}

// Dispatcher turns decoded JSON-RPC messages into exactly one reply each.
type Dispatcher struct {
	registry *tools.Registry
	sessions *SessionStore
	journal  store.Journal
	logger   *slog.Logger
	info     ServerInfo
	protocol string
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. Registry and Sessions are required.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		registry: cfg.Registry,
		sessions: cfg.Sessions,
		journal:  cfg.Journal,
		logger:   logger,
		info: ServerInfo{
			Name:    orDefault(cfg.ServerName, DefaultServerName),
			Version: orDefault(cfg.ServerVersion, DefaultServerVersion),
		},
		protocol: orDefault(cfg.ProtocolVersion, DefaultProtocolVersion),
		now:      time.Now,
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Sessions returns the store this dispatcher writes to.
func (d *Dispatcher) Sessions() *SessionStore { return d.sessions }

// ServerInfo returns the name and version advertised by initialize.
func (d *Dispatcher) ServerInfo() ServerInfo { return d.info }

// Dispatch handles one raw message received on ch. sessionID is the
// caller's Mcp-Session-Id header, if any. The only error is one wrapping
// ErrParse, for which no JSON-RPC reply can be built.
func (d *Dispatcher) Dispatch(ctx context.Context, ch *Channel, sessionID string, raw []byte) (Reply, error) {
	req, err := DecodeRequest(raw)
	if err != nil {
		d.logger.Warn("rejected malformed JSON-RPC message", "channel_id", ch.ID, "error", err)
		return Reply{}, err
	}

	if sessionID != "" {
		d.sessions.Touch(sessionID)
	}

	start := d.now()
	var reply Reply
	switch r := req.(type) {
	case *InitializeRequest:
		reply = d.initialize(ch, r)
	case *ListToolsRequest:
		reply.Message = resultResponse(r.RequestID(), ListToolsResult{Tools: d.registry.List()})
	case *CallToolRequest:
		reply.Message = d.callTool(ctx, ch, sessionID, r)
	case *InvalidParamsRequest:
		reply.Message = errorResponse(r.RequestID(), JSONRPCInvalidParams, "Invalid params", r.Err.Error())
	default:
		reply.Message = errorResponse(req.RequestID(), JSONRPCMethodNotFound, "Method not found", nil)
	}

	attrs := []any{
		"method", req.MethodName(),
		"channel_id", ch.ID,
		"state", ch.State().String(),
		"duration", d.now().Sub(start),
	}
	if reply.Message.Error != nil {
		attrs = append(attrs, "error_code", reply.Message.Error.Code)
	}
	d.logger.Debug("MCP request", attrs...)

	// Notifications are processed like any request; only the response is withheld.
	if IsNotification(req) {
		reply.Message = nil
	}
	return reply, nil
}

func (d *Dispatcher) initialize(ch *Channel, r *InitializeRequest) Reply {
	sess := d.sessions.Create(ch.ID)
	ch.markInitialized()

	d.logger.Info("MCP session created",
		"session_id", sess.ID,
		"channel_id", ch.ID,
		"protocol_version", d.protocol,
	)

	return Reply{
		SessionID: sess.ID,
		Message: resultResponse(r.RequestID(), InitializeResult{
			ProtocolVersion: d.protocol,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"prompts":   map[string]any{},
				"resources": map[string]any{},
			},
			ServerInfo: d.info,
		}),
	}
}

func (d *Dispatcher) callTool(ctx context.Context, ch *Channel, sessionID string, r *CallToolRequest) *JSONRPCResponse {
	start := d.now()
	res, stack, err := d.invoke(ctx, r.Name, r.Arguments)
	elapsed := d.now().Sub(start)

	call := &store.ToolCall{
		Tool:      r.Name,
		Arguments: string(r.Arguments),
		Outcome:   store.OutcomeOK,
		Duration:  elapsed,
		CalledAt:  start,
		SessionID: sessionID,
		ChannelID: ch.ID,
	}

	var resp *JSONRPCResponse
	if err != nil {
		if stack == "" {
			stack = NoStackAvailable
		}
		call.Outcome = store.OutcomeError
		call.Error = err.Error()
		d.logger.Warn("tool execution failed",
			"tool_name", r.Name,
			"channel_id", ch.ID,
			"error", err,
		)
		resp = errorResponse(r.RequestID(), JSONRPCInternalError, "Tool execution error", ToolErrorData{
			Error:     err.Error(),
			Stack:     stack,
			Tool:      r.Name,
			Arguments: r.Arguments,
			Timestamp: d.now().UTC().Format(time.RFC3339),
		})
	} else {
		for _, c := range res.Content {
			call.ResultSize += len(c.Text)
		}
		if res.IsError {
			call.Outcome = store.OutcomeError
		}
		d.logger.Info("tools/call complete",
			"tool_name", r.Name,
			"channel_id", ch.ID,
			"duration", elapsed,
		)
		resp = resultResponse(r.RequestID(), res)
	}

	d.record(ctx, call)
	return resp
}

// invoke runs the tool, converting a handler panic into an error plus the
// goroutine stack at the point of recovery.
func (d *Dispatcher) invoke(ctx context.Context, name string, args json.RawMessage) (res tools.Result, stack string, err error) {
	defer func() {
		if p := recover(); p != nil {
			stack = string(debug.Stack())
			err = fmt.Errorf("tool %s panicked: %v", name, p)
		}
	}()
	res, err = d.registry.Invoke(ctx, name, args)
	return res, "", err
}

func (d *Dispatcher) record(ctx context.Context, call *store.ToolCall) {
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordToolCall(context.WithoutCancel(ctx), call); err != nil {
		d.logger.Warn("failed to journal tool call", "tool_name", call.Tool, "error", err)
	}
}
