// ABOUTME: Tests for the Gateway orchestrator
// ABOUTME: Drives the real tool catalog over HTTP and exercises listener lifecycle

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/note-gateway/internal/config"
	"github.com/2389/note-gateway/internal/store"
)

// testConfig creates a minimal config for testing on an ephemeral port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	// Unroutable upstream so no test talks to the real API.
	cfg.Note.BaseURL = "http://127.0.0.1:1/api"
	cfg.Note.Timeout = time.Second
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw
}

func postRPC(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGatewayNew(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))

	if got := gw.Registry().Len(); got != 26 {
		t.Errorf("registry has %d tools, want 26", got)
	}
	if gw.Authenticated() {
		t.Error("gateway without credentials should not be authenticated")
	}
	if gw.store != nil {
		t.Error("journal should be disabled without database.path")
	}
	if gw.Addr() != nil {
		t.Error("Addr() should be nil before Run")
	}
}

func TestGatewayNew_UnknownEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Markdown.Engine = "asciidoc"

	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("New() expected error for unknown markdown engine")
	}
}

func TestGatewayNew_WeakJWTSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("New() expected error for weak JWT secret")
	}
}

func TestGateway_ToolsListOverHTTP(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp := postRPC(t, srv.URL, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Result struct {
			Tools []struct {
				Name        string          `json:"name"`
				InputSchema json.RawMessage `json:"inputSchema"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Result.Tools) != 26 {
		t.Fatalf("tools/list returned %d tools, want 26", len(body.Result.Tools))
	}

	first := body.Result.Tools[0]
	if first.Name != "search-notes" {
		t.Errorf("first tool = %q, want search-notes", first.Name)
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(first.InputSchema, &schema); err != nil {
		t.Fatalf("decoding schema: %v", err)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("search-notes required = %v, want [query]", schema.Required)
	}
}

func TestGateway_HealthReportsConfiguredIdentity(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCP.Name = "custom"
	cfg.MCP.Version = "1.2.3"
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health["server"] != "custom" || health["version"] != "1.2.3" {
		t.Errorf("health = %v", health)
	}
	if health["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", health["authenticated"])
	}
}

func TestGateway_SignsInWithEmailAndPassword(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/sign_in" {
			http.NotFound(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "_note_session_v5", Value: "fresh"})
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Note.BaseURL = upstream.URL
	cfg.Note.Email = "me@example.com"
	cfg.Note.Password = "secret"

	gw := newTestGateway(t, cfg)
	if !gw.Authenticated() {
		t.Error("gateway should be authenticated after sign-in")
	}
}

func TestGateway_FailedSignInIsNotFatal(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad credentials"}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Note.BaseURL = upstream.URL
	cfg.Note.Email = "me@example.com"
	cfg.Note.Password = "wrong"

	gw := newTestGateway(t, cfg)
	if gw.Authenticated() {
		t.Error("gateway should not be authenticated after a failed sign-in")
	}
}

func TestGateway_JournalsToolCalls(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = filepath.Join(t.TempDir(), "journal.db")
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp := postRPC(t, srv.URL, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get-note","arguments":{}}}`)
	var body struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Error == nil || body.Error.Code != -32603 {
		t.Fatalf("expected -32603 tool execution error, got %+v", body.Error)
	}

	calls, err := gw.store.ListToolCalls(context.Background(), store.ToolCallFilter{})
	if err != nil {
		t.Fatalf("ListToolCalls() error = %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("journal has %d calls, want 1", len(calls))
	}
	if calls[0].Tool != "get-note" || calls[0].Outcome != store.OutcomeError {
		t.Errorf("journaled call = %+v", calls[0])
	}
	if !strings.Contains(calls[0].Error, "noteId is required") {
		t.Errorf("journaled error = %q", calls[0].Error)
	}
}

func TestGateway_BearerAuthGuardsProtocol(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	gw := newTestGateway(t, cfg)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp := postRPC(t, srv.URL, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST status = %d, want 401", resp.StatusCode)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", health.StatusCode)
	}
}

func TestGatewayRun_BindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	defer occupied.Close()

	cfg := testConfig(t)
	cfg.Server.Port = occupied.Addr().(*net.TCPAddr).Port
	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Run(ctx); err == nil {
		t.Fatal("Run() expected error when the port is taken")
	}
}

func TestGatewayRun_ServesUntilCanceled(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	var addr net.Addr
	deadline := time.Now().Add(5 * time.Second)
	for addr == nil && time.Now().Before(deadline) {
		addr = gw.Addr()
		if addr == nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if addr == nil {
		cancel()
		t.Fatal("gateway never bound a listener")
	}

	resp, err := http.Post("http://"+addr.String()+"/mcp", "application/json",
		bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	if err != nil {
		cancel()
		t.Fatalf("POST initialize failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Mcp-Session-Id") == "" {
		t.Error("initialize should return Mcp-Session-Id")
	}
	if gw.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", gw.sessions.Len())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if gw.sessions.Len() != 0 {
		t.Errorf("sessions after shutdown = %d, want 0", gw.sessions.Len())
	}
}
