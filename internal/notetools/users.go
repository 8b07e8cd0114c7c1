// ABOUTME: Creator tools: user search, creator profile and a creator's published notes.
// ABOUTME: Creators are addressed by urlname, passed as userId.

package notetools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/2389/note-gateway/internal/tools"
)

func (h *handlers) usersPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:users",
		Tools: []*tools.Tool{
			tools.New("search-users",
				"Search note.com creators",
				`{"type":"object","properties":{`+querySchema+`,`+sizeSchema+`},"required":["query"]}`,
				h.searchUsers),
			tools.New("get-user",
				"Fetch a note.com creator profile",
				`{"type":"object","properties":{"userId":{"type":"string","description":"Creator urlname"}},"required":["userId"]}`,
				h.getUser),
			tools.New("get-user-notes",
				"List a note.com creator's notes",
				`{"type":"object","properties":{"userId":{"type":"string","description":"Creator urlname"},`+sizeSchema+`,"page":{"type":"number","description":"Page number","default":1}},"required":["userId"]}`,
				h.getUserNotes),
		},
	}
}

type searchInput struct {
	Query string  `json:"query"`
	Size  *int    `json:"size"`
	Sort  *string `json:"sort"`
}

func (h *handlers) searchUsers(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in searchInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("query", in.Query); err != nil {
		return tools.Result{}, err
	}
	return h.get(ctx, searchPath("user", in.Query, orDefault(in.Size, 10), nil))
}

// userInput accepts the creator as userId or, for older clients, username.
type userInput struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Page     *int   `json:"page"`
}

func (in userInput) creator() string {
	if in.UserID != "" {
		return in.UserID
	}
	return in.Username
}

func (h *handlers) getUser(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in userInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("userId", in.creator()); err != nil {
		return tools.Result{}, err
	}
	return h.get(ctx, "/v2/creators/"+url.PathEscape(in.creator()))
}

func (h *handlers) getUserNotes(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in userInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("userId", in.creator()); err != nil {
		return tools.Result{}, err
	}
	page := strconv.Itoa(orDefault(in.Page, 1))
	return h.get(ctx, "/v2/creators/"+url.PathEscape(in.creator())+"/contents?kind=note&page="+page)
}
