// ABOUTME: Engagement tools: reading and posting comments, and adding or removing likes.
// ABOUTME: All of them act on behalf of the signed-in account.

package notetools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/tools"
)

func (h *handlers) engagementPack() *tools.Pack {
	noteOnly := `{"type":"object","properties":{` + noteIDProp + `},"required":["noteId"]}`
	return &tools.Pack{
		ID: "note:engagement",
		Tools: []*tools.Tool{
			tools.New("get-comments",
				"List comments on a note",
				`{"type":"object","properties":{`+noteIDProp+`,`+sizeSchema+`},"required":["noteId"]}`,
				h.getComments),
			tools.New("post-comment",
				"Post a comment on a note",
				`{"type":"object","properties":{`+noteIDProp+`,"comment":{"type":"string","description":"Comment text"}},"required":["noteId","comment"]}`,
				h.postComment),
			tools.New("like-note", "Like a note", noteOnly, h.likeNote("like")),
			tools.New("unlike-note", "Remove a like from a note", noteOnly, h.likeNote("unlike")),
		},
	}
}

type commentInput struct {
	NoteID  string `json:"noteId"`
	Size    *int   `json:"size"`
	Comment string `json:"comment"`
}

func (h *handlers) getComments(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in commentInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("noteId", in.NoteID); err != nil {
		return tools.Result{}, err
	}
	size := strconv.Itoa(orDefault(in.Size, 10))
	return h.get(ctx, "/v1/note/"+url.PathEscape(in.NoteID)+"/comments?size="+size)
}

func (h *handlers) postComment(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in commentInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("noteId", in.NoteID); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("comment", in.Comment); err != nil {
		return tools.Result{}, err
	}

	data, err := h.api.Do(ctx, noteapi.Request{
		Path:         "/v1/note/" + url.PathEscape(in.NoteID) + "/comments",
		Method:       http.MethodPost,
		Body:         map[string]string{"comment": in.Comment},
		RequiresAuth: true,
	})
	if err != nil {
		return tools.Result{}, err
	}
	return rawResult(data)
}

// likeNote returns a handler that POSTs to /v3/notes/{id}/{action}.
func (h *handlers) likeNote(action string) tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
		var in commentInput
		if err := decodeArgs(args, &in); err != nil {
			return tools.Result{}, err
		}
		if err := requireField("noteId", in.NoteID); err != nil {
			return tools.Result{}, err
		}

		data, err := h.api.Do(ctx, noteapi.Request{
			Path:         "/v3/notes/" + url.PathEscape(in.NoteID) + "/" + action,
			Method:       http.MethodPost,
			RequiresAuth: true,
		})
		if err != nil {
			return tools.Result{}, err
		}
		return rawResult(data)
	}
}
