// ABOUTME: Thread-safe, registration-ordered registry of tools and their handlers.
// ABOUTME: Populated once at startup; lookups and listing are read-only afterwards.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrDuplicateTool indicates a tool with the same name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// ErrToolNotFound indicates no tool is registered under the requested name.
var ErrToolNotFound = errors.New("tool not found")

// Registry maps tool names to handlers while remembering registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []*Tool
	byName map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool. Returns ErrDuplicateTool if the name is taken.
func (r *Registry) Register(desc Descriptor, h Handler) error {
	if desc.Name == "" {
		return errors.New("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("tool '%s': handler is required", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[desc.Name]; exists {
		return fmt.Errorf("%w: '%s'", ErrDuplicateTool, desc.Name)
	}

	tool := &Tool{Descriptor: desc, Handler: h}
	r.order = append(r.order, tool)
	r.byName[desc.Name] = tool
	return nil
}

// RegisterPack registers each tool of the pack in order and stops at the first failure.
// Tools registered before the failure stay registered.
func (r *Registry) RegisterPack(pack *Pack) error {
	for _, tool := range pack.Tools {
		if err := r.Register(tool.Descriptor, tool.Handler); err != nil {
			return fmt.Errorf("registering pack '%s': %w", pack.ID, err)
		}
	}

	r.logger.Info("=== PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", r.Len(),
	)
	return nil
}

// Invoke runs the named tool. Handler errors and panics are not intercepted here.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	r.mu.RLock()
	tool, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}
	return tool.Handler(ctx, args)
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, len(r.order))
	for i, tool := range r.order {
		out[i] = tool.Descriptor
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
