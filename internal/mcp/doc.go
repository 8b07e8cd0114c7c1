// Package mcp implements the Model Context Protocol endpoint of the gateway.
//
// # Protocol
//
// The server speaks JSON-RPC 2.0 over HTTP. Key endpoints:
//
//   - POST /mcp, POST /sse - one JSON-RPC message per request
//   - GET /mcp, GET /sse - opens a Server-Sent Events stream
//   - DELETE /mcp - terminates the session named by Mcp-Session-Id
//   - GET /health, GET / - liveness and upstream authentication state
//
// A GET stream first receives an "endpoint" event whose data is the URL to POST
// to (the request path plus ?sessionId=<channel>). Replies to messages posted
// there arrive on the stream as "message" events and the POST itself returns
// 202 Accepted. POSTs without a sessionId get the reply inline.
//
// # Methods
//
//	{"jsonrpc": "2.0", "id": 1, "method": "initialize"}
//	{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}
//	{"jsonrpc": "2.0", "id": 3, "method": "tools/call",
//	 "params": {"name": "search-notes", "arguments": {"query": "go"}}}
//
// initialize creates a session and returns its id in the Mcp-Session-Id header.
// tools/list and tools/call are accepted before initialize. Messages without an
// id are notifications: they are dispatched like any request, but the reply is
// dropped and the HTTP answer is 202 with no body.
//
// # Errors
//
//   - Malformed JSON: HTTP 400 with a -32700 error and a null id
//   - Unknown method: -32601
//   - Bad tools/call params: -32602
//   - Any tool failure, including unknown tools and handler panics: -32603
//     "Tool execution error" with {error, stack, tool, arguments, timestamp}
//
// # Architecture
//
//   - DecodeRequest: turns bytes into one of a closed set of request kinds
//   - Dispatcher: per-channel handshake state, tool invocation, event emission
//   - SessionStore: in-memory sessions, cleared at shutdown
//   - Transport: the http.Handler with CORS, health, POST, SSE and DELETE
package mcp
