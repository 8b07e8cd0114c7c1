// ABOUTME: Decodes one JSON-RPC message into a closed set of request kinds.
// ABOUTME: Field access happens here once; the dispatcher only switches on the kind.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrParse is returned by DecodeRequest when the message is not a JSON object.
var ErrParse = errors.New("parse error")

// Request is one decoded JSON-RPC message. The concrete type is one of
// *InitializeRequest, *ListToolsRequest, *CallToolRequest,
// *InvalidParamsRequest or *UnknownRequest.
type Request interface {
	// RequestID returns the raw id, or nil when the message had none.
	RequestID() json.RawMessage
	MethodName() string
}

type envelope struct {
	id     json.RawMessage
	method string
}

func (e envelope) RequestID() json.RawMessage { return e.id }
func (e envelope) MethodName() string         { return e.method }

// InitializeRequest opens a session. Its params are accepted and ignored.
type InitializeRequest struct {
	envelope
}

// ListToolsRequest asks for every registered tool descriptor.
type ListToolsRequest struct {
	envelope
}

// CallToolRequest invokes one tool by name.
type CallToolRequest struct {
	envelope
	Name      string
	Arguments json.RawMessage
}

// InvalidParamsRequest is a known method whose params could not be decoded.
type InvalidParamsRequest struct {
	envelope
	Err error
}

// UnknownRequest is any method this server does not implement.
type UnknownRequest struct {
	envelope
}

// IsNotification reports whether req carries no id and so expects no response.
func IsNotification(req Request) bool {
	id := bytes.TrimSpace(req.RequestID())
	return len(id) == 0 || bytes.Equal(id, []byte("null"))
}

// DecodeRequest parses raw into a Request. Malformed JSON yields an error
// wrapping ErrParse; everything else decodes to some request kind.
func DecodeRequest(raw []byte) (Request, error) {
	var msg JSONRPCRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	env := envelope{id: msg.ID, method: msg.Method}

	switch msg.Method {
	case "initialize":
		return &InitializeRequest{env}, nil
	case "tools/list":
		return &ListToolsRequest{env}, nil
	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if p := bytes.TrimSpace(msg.Params); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
			if p[0] != '{' {
				return &InvalidParamsRequest{env, errors.New("params must be an object")}, nil
			}
			if err := json.Unmarshal(p, &params); err != nil {
				return &InvalidParamsRequest{env, err}, nil
			}
		}
		args := params.Arguments
		if a := bytes.TrimSpace(args); len(a) == 0 || bytes.Equal(a, []byte("null")) {
			args = json.RawMessage("{}")
		}
		return &CallToolRequest{envelope: env, Name: params.Name, Arguments: args}, nil
	default:
		return &UnknownRequest{env}, nil
	}
}
