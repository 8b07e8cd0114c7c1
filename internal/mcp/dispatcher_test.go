// ABOUTME: Tests for the JSON-RPC dispatcher independent of HTTP.
// ABOUTME: Covers handshake state, tool errors and panics, and journal emission.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/note-gateway/internal/store"
	"github.com/2389/note-gateway/internal/tools"
)

const searchSchema = `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil)
	err := reg.RegisterPack(&tools.Pack{
		ID: "test",
		Tools: []*tools.Tool{
			tools.New("search-notes", "Search notes", searchSchema, func(_ context.Context, args json.RawMessage) (tools.Result, error) {
				var in struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return tools.Result{}, err
				}
				return tools.TextResult("results for " + in.Query), nil
			}),
			tools.New("fails", "Always fails", `{"type":"object"}`, func(context.Context, json.RawMessage) (tools.Result, error) {
				return tools.Result{}, errors.New("upstream said no")
			}),
			tools.New("panics", "Always panics", `{"type":"object"}`, func(context.Context, json.RawMessage) (tools.Result, error) {
				panic("kaboom")
			}),
		},
	})
	require.NoError(t, err)
	return reg
}

type recordingJournal struct {
	mu    sync.Mutex
	calls []store.ToolCall
	err   error
}

func (j *recordingJournal) RecordToolCall(_ context.Context, c *store.ToolCall) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, *c)
	return j.err
}

func newTestDispatcher(t *testing.T, journal store.Journal) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(Config{
		Registry: newTestRegistry(t),
		Sessions: NewSessionStore(),
		Journal:  journal,
	})
	require.NoError(t, err)
	return d
}

func dispatch(t *testing.T, d *Dispatcher, ch *Channel, raw string) Reply {
	t.Helper()
	reply, err := d.Dispatch(context.Background(), ch, "", []byte(raw))
	require.NoError(t, err)
	return reply
}

func TestNewDispatcher_RequiresDependencies(t *testing.T) {
	_, err := NewDispatcher(Config{Sessions: NewSessionStore()})
	assert.Error(t, err)
	_, err = NewDispatcher(Config{Registry: tools.NewRegistry(nil)})
	assert.Error(t, err)
}

func TestDispatch_InitializeTwiceGivesDistinctSessions(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ch := NewChannel()
	assert.Equal(t, AwaitingInitialize, ch.State())

	first := dispatch(t, d, ch, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	assert.Equal(t, Initialized, ch.State())
	second := dispatch(t, d, ch, `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{}}`)

	require.NotNil(t, first.Message)
	require.NotNil(t, second.Message)
	assert.Nil(t, first.Message.Error)
	assert.Nil(t, second.Message.Error)
	assert.NotEmpty(t, first.SessionID)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, 2, d.Sessions().Len())

	res, ok := first.Message.Result.(InitializeResult)
	require.True(t, ok)
	assert.Equal(t, DefaultProtocolVersion, res.ProtocolVersion)
	assert.Equal(t, ServerInfo{Name: DefaultServerName, Version: DefaultServerVersion}, res.ServerInfo)
	assert.Contains(t, res.Capabilities, "tools")
	assert.Contains(t, res.Capabilities, "prompts")
	assert.Contains(t, res.Capabilities, "resources")
}

func TestDispatch_ToolsAcceptedBeforeInitialize(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ch := NewChannel()

	reply := dispatch(t, d, ch, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search-notes","arguments":{"query":"go"}}}`)
	require.Nil(t, reply.Message.Error)
	assert.Equal(t, AwaitingInitialize, ch.State())

	res, ok := reply.Message.Result.(tools.Result)
	require.True(t, ok)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "results for go", res.Content[0].Text)
}

func TestDispatch_ToolsListInRegistrationOrder(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	res, ok := reply.Message.Result.(ListToolsResult)
	require.True(t, ok)
	require.Len(t, res.Tools, 3)
	assert.Equal(t, "search-notes", res.Tools[0].Name)
	assert.Equal(t, "fails", res.Tools[1].Name)
	assert.Equal(t, "panics", res.Tools[2].Name)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":7,"method":"resources/list"}`)

	require.NotNil(t, reply.Message.Error)
	assert.Equal(t, JSONRPCMethodNotFound, reply.Message.Error.Code)
	assert.Equal(t, json.RawMessage("7"), reply.Message.ID)
}

func TestDispatch_InvalidParams(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":"search-notes"}`)

	require.NotNil(t, reply.Message.Error)
	assert.Equal(t, JSONRPCInvalidParams, reply.Message.Error.Code)
}

func TestDispatch_UnregisteredToolIsExecutionError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{"a":1}}}`)

	require.NotNil(t, reply.Message.Error)
	assert.Equal(t, JSONRPCInternalError, reply.Message.Error.Code)
	assert.Equal(t, "Tool execution error", reply.Message.Error.Message)

	data, ok := reply.Message.Error.Data.(ToolErrorData)
	require.True(t, ok)
	assert.Equal(t, "nope", data.Tool)
	assert.Contains(t, data.Error, "nope")
	assert.JSONEq(t, `{"a":1}`, string(data.Arguments))
	_, err := time.Parse(time.RFC3339, data.Timestamp)
	assert.NoError(t, err)
	assert.Equal(t, NoStackAvailable, data.Stack)
}

func TestDispatch_HandlerErrorIsExecutionError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"fails"}}`)

	require.NotNil(t, reply.Message.Error)
	assert.Equal(t, JSONRPCInternalError, reply.Message.Error.Code)
	data := reply.Message.Error.Data.(ToolErrorData)
	assert.Equal(t, "upstream said no", data.Error)
	assert.JSONEq(t, `{}`, string(data.Arguments))
}

func TestDispatch_HandlerPanicIsRecovered(t *testing.T) {
	d := newTestDispatcher(t, nil)

	var reply Reply
	require.NotPanics(t, func() {
		reply = dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"panics"}}`)
	})

	require.NotNil(t, reply.Message.Error)
	assert.Equal(t, JSONRPCInternalError, reply.Message.Error.Code)
	data := reply.Message.Error.Data.(ToolErrorData)
	assert.Contains(t, data.Error, "kaboom")
	assert.Contains(t, data.Stack, "goroutine")
}

func TestDispatch_ToolCallNotificationRunsWithoutReply(t *testing.T) {
	j := &recordingJournal{}
	d := newTestDispatcher(t, j)
	ch := NewChannel()

	reply := dispatch(t, d, ch, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"search-notes","arguments":{"query":"go"}}}`)

	assert.Nil(t, reply.Message)
	require.Len(t, j.calls, 1)
	assert.Equal(t, "search-notes", j.calls[0].Tool)
	assert.Equal(t, store.OutcomeOK, j.calls[0].Outcome)
	assert.Equal(t, len("results for go"), j.calls[0].ResultSize)
}

func TestDispatch_InitializeWithNullIDCreatesSession(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ch := NewChannel()

	reply := dispatch(t, d, ch, `{"jsonrpc":"2.0","id":null,"method":"initialize"}`)

	assert.Nil(t, reply.Message)
	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, 1, d.Sessions().Len())
	assert.Equal(t, Initialized, ch.State())
}

func TestDispatch_UnknownNotificationHasNoReply(t *testing.T) {
	d := newTestDispatcher(t, nil)
	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Nil(t, reply.Message)
	assert.Empty(t, reply.SessionID)
}

func TestDispatch_ParseError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	_, err := d.Dispatch(context.Background(), NewChannel(), "", []byte(`{"jsonrpc":`))
	assert.ErrorIs(t, err, ErrParse)
}

func TestDispatch_TouchesKnownSession(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ch := NewChannel()
	initReply := dispatch(t, d, ch, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	before, _ := d.Sessions().Get(initReply.SessionID)

	later := before.LastSeen.Add(time.Hour)
	d.sessions.now = func() time.Time { return later }

	_, err := d.Dispatch(context.Background(), ch, initReply.SessionID, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	require.NoError(t, err)
	after, _ := d.Sessions().Get(initReply.SessionID)
	assert.Equal(t, later, after.LastSeen)

	_, err = d.Dispatch(context.Background(), ch, "unknown-session", []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`))
	assert.NoError(t, err)
}

func TestDispatch_JournalsToolCalls(t *testing.T) {
	j := &recordingJournal{}
	d := newTestDispatcher(t, j)
	ch := NewChannel()

	dispatch(t, d, ch, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search-notes","arguments":{"query":"go"}}}`)
	dispatch(t, d, ch, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"fails"}}`)
	dispatch(t, d, ch, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)

	require.Len(t, j.calls, 2)
	assert.Equal(t, "search-notes", j.calls[0].Tool)
	assert.Equal(t, store.OutcomeOK, j.calls[0].Outcome)
	assert.Equal(t, len("results for go"), j.calls[0].ResultSize)
	assert.Equal(t, ch.ID, j.calls[0].ChannelID)
	assert.Equal(t, "fails", j.calls[1].Tool)
	assert.Equal(t, store.OutcomeError, j.calls[1].Outcome)
	assert.Equal(t, "upstream said no", j.calls[1].Error)
}

func TestDispatch_JournalFailureDoesNotChangeReply(t *testing.T) {
	j := &recordingJournal{err: errors.New("disk full")}
	d := newTestDispatcher(t, j)

	reply := dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search-notes","arguments":{"query":"go"}}}`)
	assert.Nil(t, reply.Message.Error)
	assert.Len(t, j.calls, 1)
}

func TestDispatch_JournalsIntoSQLite(t *testing.T) {
	s, err := store.NewSQLiteStore(t.TempDir() + "/journal.db")
	require.NoError(t, err)
	defer s.Close()

	d := newTestDispatcher(t, s)
	dispatch(t, d, NewChannel(), `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"panics"}}`)

	calls, err := s.ListToolCalls(context.Background(), store.ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "panics", calls[0].Tool)
	assert.Equal(t, store.OutcomeError, calls[0].Outcome)
	assert.Contains(t, calls[0].Error, "kaboom")
}
