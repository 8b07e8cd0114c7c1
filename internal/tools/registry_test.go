// ABOUTME: Tests for the tool registry including ordering, duplicate rejection and invocation.
// ABOUTME: Also covers JSON result formatting and concurrent lookups.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(prefix string) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		return TextResult(prefix + string(args)), nil
	}
}

func testTool(name string) *Tool {
	return New(name, name+" description", `{"type":"object"}`, echoHandler(name+":"))
}

func TestRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry(slog.Default())
	names := []string{"zeta", "alpha", "mid"}
	for _, n := range names {
		tool := testTool(n)
		require.NoError(t, r.Register(tool.Descriptor, tool.Handler))
	}

	// Listing twice returns the same order
	for range 2 {
		list := r.List()
		require.Len(t, list, 3)
		for i, n := range names {
			assert.Equal(t, n, list[i].Name)
		}
	}
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	tool := testTool("dup")
	require.NoError(t, r.Register(tool.Descriptor, tool.Handler))

	err := r.Register(tool.Descriptor, tool.Handler)
	assert.True(t, errors.Is(err, ErrDuplicateTool))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RejectsIncompleteTool(t *testing.T) {
	r := NewRegistry(nil)

	assert.Error(t, r.Register(Descriptor{}, echoHandler("")))
	assert.Error(t, r.Register(Descriptor{Name: "x"}, nil))
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry(nil)
	tool := testTool("echo")
	require.NoError(t, r.Register(tool.Descriptor, tool.Handler))

	res, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	assert.Equal(t, `echo:{"a":1}`, res.Content[0].Text)
}

func TestRegistry_InvokeUnknown(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Invoke(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

func TestRegistry_InvokeReturnsHandlerErrorUnchanged(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("boom")
	require.NoError(t, r.Register(Descriptor{Name: "fail"}, func(context.Context, json.RawMessage) (Result, error) {
		return Result{}, boom
	}))

	_, err := r.Invoke(context.Background(), "fail", nil)
	assert.Same(t, boom, err)
}

func TestRegistry_RegisterPack(t *testing.T) {
	r := NewRegistry(nil)
	pack := &Pack{ID: "first", Tools: []*Tool{testTool("a"), testTool("b")}}
	require.NoError(t, r.RegisterPack(pack))

	// A colliding pack stops at the duplicate but keeps tools before it
	clash := &Pack{ID: "second", Tools: []*Tool{testTool("c"), testTool("a"), testTool("d")}}
	err := r.RegisterPack(clash)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTool))
	assert.Contains(t, err.Error(), "second")

	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestJSONResult_Indented(t *testing.T) {
	res, err := JSONResult(map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": 1\n}", res.Content[0].Text)

	_, err = JSONResult(make(chan int))
	assert.Error(t, err)
}

func TestNew_PanicsOnInvalidSchema(t *testing.T) {
	assert.Panics(t, func() { New("bad", "", `{"type":`, echoHandler("")) })
}

func TestRegistry_ConcurrentInvoke(t *testing.T) {
	r := NewRegistry(nil)
	for i := range 10 {
		tool := testTool(fmt.Sprintf("t%d", i))
		require.NoError(t, r.Register(tool.Descriptor, tool.Handler))
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("t%d", i%10)
			res, err := r.Invoke(context.Background(), name, json.RawMessage(`{}`))
			assert.NoError(t, err)
			assert.Equal(t, name+":{}", res.Content[0].Text)
			_ = r.List()
		}(i)
	}
	wg.Wait()
}
