// ABOUTME: Pass-through tools for magazines, categories, hashtags, stats, memberships and circles.
// ABOUTME: Each maps one tool call to one authenticated GET and returns the body as-is.

package notetools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/2389/note-gateway/internal/tools"
)

func (h *handlers) magazinesPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:magazines",
		Tools: []*tools.Tool{
			tools.New("search-magazines",
				"Search note.com magazines",
				`{"type":"object","properties":{`+querySchema+`,`+sizeSchema+`},"required":["query"]}`,
				h.searchMagazines),
			tools.New("get-magazine",
				"Fetch a note.com magazine",
				`{"type":"object","properties":{"magazineId":{"type":"string","description":"Magazine ID"}},"required":["magazineId"]}`,
				h.pathTool("magazineId", "/v1/magazines/", "")),
		},
	}
}

func (h *handlers) discoveryPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:discovery",
		Tools: []*tools.Tool{
			tools.New("list-categories", "List note.com categories", emptySchema, h.fixedTool("/v2/categories")),
			tools.New("list-hashtags", "List note.com hashtags", emptySchema, h.fixedTool("/v2/hashtags")),
			tools.New("get-stats",
				"Fetch page-view statistics for a note",
				`{"type":"object","properties":{`+noteIDProp+`},"required":["noteId"]}`,
				h.pathTool("noteId", "/v1/notes/", "/stats")),
		},
	}
}

func (h *handlers) membershipPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:membership",
		Tools: []*tools.Tool{
			tools.New("get-membership-summaries", "List memberships you belong to", emptySchema,
				h.fixedTool("/v1/memberships/summaries")),
			tools.New("get-membership-plans", "List your own membership plans", emptySchema,
				h.fixedTool("/v1/users/me/membership_plans")),
			tools.New("get-membership-notes",
				"List membership notes",
				`{"type":"object","properties":{`+sizeSchema+`},"required":[]}`,
				h.getMembershipNotes),
			tools.New("get-circle-info",
				"Fetch circle information",
				`{"type":"object","properties":{"circleId":{"type":"string","description":"Circle ID"}},"required":["circleId"]}`,
				h.pathTool("circleId", "/v1/circles/", "")),
		},
	}
}

func (h *handlers) accountPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:account",
		Tools: []*tools.Tool{
			tools.New("get-notice-counts", "Fetch notification counts", emptySchema, h.fixedTool("/v3/notice_counts")),
			tools.New("search-all",
				"Search all of note.com (notes, creators, hashtags)",
				`{"type":"object","properties":{`+querySchema+`,`+sizeSchema+`,"sort":{"type":"string","description":"Sort order","default":"new"}},"required":["query"]}`,
				h.searchAll),
		},
	}
}

// fixedTool returns a handler that GETs path and ignores its arguments.
func (h *handlers) fixedTool(path string) tools.Handler {
	return func(ctx context.Context, _ json.RawMessage) (tools.Result, error) {
		return h.get(ctx, path)
	}
}

// pathTool returns a handler that GETs prefix + <field> + suffix, with the
// string argument named field escaped as one path segment.
func (h *handlers) pathTool(field, prefix, suffix string) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
		var in map[string]any
		if err := decodeArgs(args, &in); err != nil {
			return tools.Result{}, err
		}
		id := idString(in[field])
		if err := requireField(field, id); err != nil {
			return tools.Result{}, err
		}
		return h.get(ctx, prefix+url.PathEscape(id)+suffix)
	}
}

func (h *handlers) searchMagazines(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in searchInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("query", in.Query); err != nil {
		return tools.Result{}, err
	}
	return h.get(ctx, searchPath("magazine", in.Query, orDefault(in.Size, 10), nil))
}

func (h *handlers) getMembershipNotes(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in struct {
		Size *int `json:"size"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	return h.get(ctx, "/v1/memberships/notes?size="+strconv.Itoa(orDefault(in.Size, 10)))
}

func (h *handlers) searchAll(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in searchInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("query", in.Query); err != nil {
		return tools.Result{}, err
	}
	extra := url.Values{"sort": {orDefault(in.Sort, "new")}}
	return h.get(ctx, searchPath("all", in.Query, orDefault(in.Size, 10), extra))
}
