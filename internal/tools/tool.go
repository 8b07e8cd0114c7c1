// ABOUTME: Tool descriptors, handler signature and the uniform text result shape.
// ABOUTME: Tools are grouped into packs so related operations register together.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Descriptor describes a tool to protocol clients. InputSchema is a JSON Schema document.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Content is one item of a tool result. Only "text" items are produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what every handler returns on success.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps a single text item.
func TextResult(text string) Result {
	return Result{Content: []Content{{Type: "text", Text: text}}}
}

// JSONResult pretty-prints v with a 2-space indent into a single text item.
func JSONResult(v any) (Result, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encoding result: %w", err)
	}
	return TextResult(string(data)), nil
}

// Handler executes a tool with its raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Tool pairs a descriptor with its handler.
type Tool struct {
	Descriptor Descriptor
	Handler    Handler
}

// Pack is an ordered group of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

// New builds a Tool from a name, description and JSON schema literal.
// It panics on a malformed schema since schemas are compiled-in constants.
func New(name, description, schema string, h Handler) *Tool {
	if !json.Valid([]byte(schema)) {
		panic(fmt.Sprintf("tools: invalid input schema for %q", name))
	}
	return &Tool{
		Descriptor: Descriptor{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(schema),
		},
		Handler: h,
	}
}
