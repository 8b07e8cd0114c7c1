// ABOUTME: Gateway orchestrator that wires the note.com client, tool registry and MCP transport
// ABOUTME: Owns the HTTP listener, the optional journal store, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/2389/note-gateway/internal/auth"
	"github.com/2389/note-gateway/internal/config"
	"github.com/2389/note-gateway/internal/markdown"
	"github.com/2389/note-gateway/internal/mcp"
	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/notetools"
	"github.com/2389/note-gateway/internal/store"
	"github.com/2389/note-gateway/internal/tools"
)

// shutdownTimeout bounds how long in-flight requests get once Run's context ends.
const shutdownTimeout = 5 * time.Second

// Gateway orchestrates the note-gateway server components.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	client     *noteapi.Client
	registry   *tools.Registry
	sessions   *mcp.SessionStore
	dispatcher *mcp.Dispatcher
	transport  *mcp.Transport
	httpServer *http.Server

	// store is nil when the journal is disabled
	store *store.SQLiteStore

	mu       sync.RWMutex
	listener net.Listener
}

// New creates a Gateway from configuration. When an email and password are
// configured without a session cookie it signs in first; a failed sign-in is
// logged and the gateway continues with the public tools only.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := noteapi.New(noteapi.Config{
		BaseURL:       cfg.Note.BaseURL,
		SessionCookie: cfg.Note.Session,
		XSRFToken:     cfg.Note.XSRFToken,
		Email:         cfg.Note.Email,
		Password:      cfg.Note.Password,
		Timeout:       cfg.Note.Timeout,
		CacheTTL:      cfg.Note.CacheTTL,
		CacheSize:     cfg.Note.CacheSize,
		UserAgent:     cfg.Note.UserAgent,
	}, logger.With("component", "noteapi"))

	gw := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
		client: client,
	}
	gw.login()

	renderer, err := markdown.RendererFor(cfg.Markdown.Engine)
	if err != nil {
		client.Close()
		return nil, err
	}
	pipeline := markdown.NewPipeline(renderer, nil)

	gw.registry = tools.NewRegistry(logger.With("component", "tools"))
	if err := notetools.Register(gw.registry, client, pipeline, logger.With("component", "notetools")); err != nil {
		client.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	// A nil *SQLiteStore stored in the interface would not compare equal to
	// nil inside the dispatcher, so the journal is only set when it exists.
	var journal store.Journal
	if cfg.Database.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		gw.store = s
		journal = s
		gw.logger.Info("tool-call journal enabled", "path", cfg.Database.Path)
	}

	gw.sessions = mcp.NewSessionStore()
	gw.dispatcher, err = mcp.NewDispatcher(mcp.Config{
		Registry:        gw.registry,
		Sessions:        gw.sessions,
		Journal:         journal,
		Logger:          logger.With("component", "mcp"),
		ServerName:      cfg.MCP.Name,
		ServerVersion:   cfg.MCP.Version,
		ProtocolVersion: cfg.MCP.ProtocolVersion,
	})
	if err != nil {
		gw.closeResources()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			gw.closeResources()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
		gw.logger.Info("bearer authentication enabled for /mcp and /sse")
	}

	gw.transport, err = mcp.NewTransport(mcp.TransportConfig{
		Dispatcher:    gw.dispatcher,
		Logger:        logger.With("component", "transport"),
		Authenticated: client.IsAuthenticated(),
		Verifier:      verifier,
	})
	if err != nil {
		gw.closeResources()
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           gw.transport,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// login performs the optional email/password sign-in.
func (g *Gateway) login() {
	if g.client.IsAuthenticated() {
		return
	}
	if !g.config.Note.HasCredentials() {
		g.logger.Warn("no note.com credentials configured; only public tools will work")
		return
	}

	timeout := g.config.Note.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := g.client.Login(ctx); err != nil {
		g.logger.Warn("note.com sign-in failed; only public tools will work", "error", err)
	}
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.transport
}

// Registry returns the tool registry.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// Authenticated reports whether upstream credentials are available.
func (g *Gateway) Authenticated() bool {
	return g.client.IsAuthenticated()
}

// Addr returns the bound listener address, or nil before Run has bound.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// setupListener binds the configured host and port.
func (g *Gateway) setupListener() (net.Listener, error) {
	addr := g.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	g.mu.Lock()
	g.listener = ln
	g.mu.Unlock()
	return ln, nil
}

// startServer serves HTTP in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run binds the listener and serves until ctx is canceled. A bind failure is
// returned immediately. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener()
	if err != nil {
		g.closeResources()
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeResources releases everything but the HTTP server.
func (g *Gateway) closeResources() []error {
	var errs []error
	if g.sessions != nil {
		g.sessions.Clear()
	}
	g.client.Close()
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
		g.store = nil
	}
	return errs
}

// Shutdown ends open SSE streams so their handlers return, then stops the
// HTTP server, clears every session and closes the journal.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	g.transport.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = append(errs, g.closeResources()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
