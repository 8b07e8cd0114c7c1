// ABOUTME: HTTP transport for the dispatcher: JSON-RPC over POST, server push over SSE.
// ABOUTME: Also serves health, permissive CORS, and the JSON 404 for unknown paths.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/tmaxmax/go-sse"

	"github.com/2389/note-gateway/internal/auth"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (4MB).
const MaxRequestBodySize = 4 << 20

var errChannelClosed = errors.New("channel closed")

// TransportConfig holds the dependencies for a Transport.
type TransportConfig struct {
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	// Authenticated is reported by the health endpoint; it reflects whether
	// upstream credentials were available at startup.
	Authenticated bool
	// Verifier, when set, requires a bearer JWT on the protocol endpoints.
	Verifier auth.TokenVerifier
}

// Transport is the http.Handler for every route the gateway serves.
type Transport struct {
	dispatcher    *Dispatcher
	logger        *slog.Logger
	authenticated bool
	protocol      http.Handler

	mu       sync.RWMutex
	channels map[string]*sseChannel
	done     chan struct{}
	closed   bool
}

// sseChannel is a dispatcher channel bound to an open event stream.
type sseChannel struct {
	ch *Channel

	mu     sync.Mutex
	sess   *sse.Session
	closed bool
}

func (c *sseChannel) send(eventType, data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	msg := &sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(data)
	if err := c.sess.Send(msg); err != nil {
		return err
	}
	return c.sess.Flush()
}

func (c *sseChannel) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// NewTransport creates the HTTP handler around a dispatcher.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Transport{
		dispatcher:    cfg.Dispatcher,
		logger:        logger,
		authenticated: cfg.Authenticated,
		channels:      make(map[string]*sseChannel),
		done:          make(chan struct{}),
	}

	t.protocol = http.HandlerFunc(t.handleProtocol)
	if cfg.Verifier != nil {
		t.protocol = auth.BearerMiddleware(cfg.Verifier, logger)(t.protocol)
	}
	return t, nil
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
	h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
}

func isProtocolPath(p string) bool {
	return strings.HasPrefix(p, "/mcp") || strings.HasPrefix(p, "/sse")
}

// ServeHTTP routes a request.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.URL.Path == "/" || r.URL.Path == "/health":
		t.handleHealth(w, r)
	case isProtocolPath(r.URL.Path):
		t.protocol.ServeHTTP(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "Not Found",
			"message": "available endpoints: /health, /mcp, /sse",
		})
	}
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status        string `json:"status"`
	Server        string `json:"server"`
	Version       string `json:"version"`
	Transport     string `json:"transport"`
	Authenticated bool   `json:"authenticated"`
}

func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	info := t.dispatcher.ServerInfo()
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:        "ok",
		Server:        info.Name,
		Version:       info.Version,
		Transport:     "SSE",
		Authenticated: t.authenticated,
	})
}

func (t *Transport) handleProtocol(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		t.handleSSE(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handlePost processes one JSON-RPC message. Without a sessionId query the
// reply goes in the HTTP response; with one it goes out on that SSE stream.
func (t *Transport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		writeParseError(w)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errorResponse(nil, JSONRPCInvalidRequest, "request body too large", nil))
		return
	}

	var stream *sseChannel
	ch := NewChannel()
	if id := r.URL.Query().Get("sessionId"); id != "" {
		var ok bool
		if stream, ok = t.channel(id); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "unknown sessionId",
			})
			return
		}
		ch = stream.ch
	}

	if sub := auth.SubjectFromContext(r.Context()); sub != "" {
		t.logger.Debug("MCP request from authenticated client", "subject", sub, "channel_id", ch.ID)
	}

	reply, err := t.dispatcher.Dispatch(r.Context(), ch, r.Header.Get("Mcp-Session-Id"), body)
	if err != nil {
		writeParseError(w)
		return
	}

	if reply.SessionID != "" {
		w.Header().Set("Mcp-Session-Id", reply.SessionID)
	}

	if reply.Message == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if stream == nil {
		writeJSON(w, http.StatusOK, reply.Message)
		return
	}

	data, err := json.Marshal(reply.Message)
	if err != nil {
		t.logger.Error("failed to encode JSON-RPC response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := stream.send("message", string(data)); err != nil {
		t.logger.Warn("failed to deliver SSE message", "channel_id", ch.ID, "error", err)
		http.Error(w, "Gone", http.StatusGone)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")
}

// handleSSE upgrades the request to an event stream and keeps it open until
// the peer disconnects or the transport closes.
func (t *Transport) handleSSE(w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		t.logger.Error("failed to upgrade session", "error", err)
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	stream := &sseChannel{ch: NewChannel(), sess: sess}
	if !t.addChannel(stream) {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer t.removeChannel(stream)

	if err := stream.send("endpoint", r.URL.Path+"?sessionId="+stream.ch.ID); err != nil {
		t.logger.Error("failed to write SSE endpoint", "error", err)
		return
	}
	t.logger.Info("SSE channel opened", "channel_id", stream.ch.ID)

	select {
	case <-r.Context().Done():
	case <-t.done:
	}
}

// handleDelete terminates the session named by Mcp-Session-Id.
func (t *Transport) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("Mcp-Session-Id")
	if id == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	if !t.dispatcher.Sessions().Drop(id) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	t.logger.Info("MCP session terminated", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (t *Transport) channel(id string) (*sseChannel, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.channels[id]
	return c, ok
}

func (t *Transport) addChannel(c *sseChannel) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.channels[c.ch.ID] = c
	return true
}

func (t *Transport) removeChannel(c *sseChannel) {
	c.close()

	t.mu.Lock()
	delete(t.channels, c.ch.ID)
	t.mu.Unlock()

	dropped := t.dispatcher.Sessions().DropChannel(c.ch.ID)
	t.logger.Info("SSE channel closed", "channel_id", c.ch.ID, "sessions_dropped", dropped)
}

// ChannelCount returns the number of open SSE channels.
func (t *Transport) ChannelCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.channels)
}

// Close ends every open SSE stream and refuses new ones. It is safe to call
// more than once.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeParseError(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse(nil, JSONRPCParseError, "Parse error", nil))
}
