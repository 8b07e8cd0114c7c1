// Package gateway orchestrates the note-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the note-gateway server.
// It owns the note.com client, the tool registry, the MCP session store and
// dispatcher, the HTTP transport, and the optional tool-call journal.
//
// # Startup
//
// New builds every component from a *config.Config:
//
//  1. noteapi.Client from the note section, signing in with email and
//     password when no session cookie is configured
//  2. markdown.Pipeline using the configured engine
//  3. tools.Registry populated by notetools.Register
//  4. store.SQLiteStore when database.path is set
//  5. mcp.Dispatcher and mcp.Transport, with bearer authentication when
//     auth.jwt_secret is set
//
// A failed sign-in is logged and the gateway continues; tools that need a
// session then fail with a tool execution error.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run returns the bind error immediately if the address is taken. On
// cancellation it closes open SSE streams, shuts the HTTP server down with a
// five second grace period, clears every session and closes the journal.
package gateway
