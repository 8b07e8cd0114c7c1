// ABOUTME: JSON-RPC 2.0 envelopes, error codes and MCP result shapes used on the wire.
// ABOUTME: Shared by the dispatcher and the HTTP/SSE transport.

package mcp

import (
	"encoding/json"

	"github.com/2389/note-gateway/internal/tools"
)

// Protocol defaults advertised by initialize.
const (
	DefaultProtocolVersion = "2025-06-18"
	DefaultServerName      = "note-api-mcp"
	DefaultServerVersion   = "2.0.0-http"
)

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request or notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo names this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

// NoStackAvailable fills ToolErrorData.Stack when the failure was an ordinary error.
const NoStackAvailable = "no stack available"

// ToolErrorData is the diagnostic payload attached to a -32603 tool execution error.
// Every field is always present.
type ToolErrorData struct {
	Error     string          `json:"error"`
	Stack     string          `json:"stack"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
	Timestamp string          `json:"timestamp"`
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
