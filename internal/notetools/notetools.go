// ABOUTME: note.com tool packs exposed over the protocol endpoint, in their published order.
// ABOUTME: Handlers decode arguments, call the note API and return pretty-printed JSON text.

package notetools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/tools"
)

// API is the subset of the note.com client the tools depend on.
type API interface {
	Do(ctx context.Context, req noteapi.Request) (json.RawMessage, error)
	IsAuthenticated() bool
	LoadImage(ctx context.Context, src noteapi.ImageSource) (*noteapi.Image, error)
	UploadImage(ctx context.Context, img *noteapi.Image) (*noteapi.UploadedImage, error)
}

// Converter turns Markdown into platform HTML.
type Converter interface {
	Convert(md string) string
}

// handlers carries the dependencies shared by every tool.
type handlers struct {
	api    API
	conv   Converter
	logger *slog.Logger
}

// Packs returns every note.com pack. Registering them in the returned order
// reproduces the published tool order.
func Packs(api API, conv Converter, logger *slog.Logger) []*tools.Pack {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{api: api, conv: conv, logger: logger}
	return []*tools.Pack{
		h.notesReadPack(),
		h.usersPack(),
		h.notesWritePack(),
		h.imagesPack(),
		h.engagementPack(),
		h.magazinesPack(),
		h.discoveryPack(),
		h.membershipPack(),
		h.accountPack(),
	}
}

// Register adds all packs to r.
func Register(r *tools.Registry, api API, conv Converter, logger *slog.Logger) error {
	for _, p := range Packs(api, conv, logger) {
		if err := r.RegisterPack(p); err != nil {
			return err
		}
	}
	return nil
}

// decodeArgs unmarshals tool arguments, treating absent arguments as an empty object.
func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("invalid input: %s is required", name)
	}
	return nil
}

// rawResult re-indents an upstream JSON payload into a text result.
func rawResult(data json.RawMessage) (tools.Result, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return tools.Result{}, fmt.Errorf("formatting response: %w", err)
	}
	return tools.TextResult(buf.String()), nil
}

// get performs an authenticated GET and returns the indented body.
func (h *handlers) get(ctx context.Context, path string) (tools.Result, error) {
	data, err := h.api.Do(ctx, noteapi.Request{Path: path, RequiresAuth: true})
	if err != nil {
		return tools.Result{}, err
	}
	return rawResult(data)
}

// orDefault returns def when v is nil.
func orDefault[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

// searchPath builds a /v3/searches query for the given context.
func searchPath(kind, query string, size int, extra url.Values) string {
	q := url.Values{}
	q.Set("context", kind)
	q.Set("q", query)
	q.Set("size", strconv.Itoa(size))
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return "/v3/searches?" + q.Encode()
}

// Shared schema fragments.
const (
	querySchema = `"query":{"type":"string","description":"Search keyword"}`
	sizeSchema  = `"size":{"type":"number","description":"Number of items to fetch","default":10}`
	noteIDProp  = `"noteId":{"type":"string","description":"Note ID (e.g. n4f0c7b884789)"}`
	emptySchema = `{"type":"object","properties":{},"required":[]}`
)
