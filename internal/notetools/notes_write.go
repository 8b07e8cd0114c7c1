// ABOUTME: Authoring tools: draft creation and saving, editing, and listing the caller's own notes.
// ABOUTME: Draft bodies are Markdown and go through the conversion pipeline before upload.

package notetools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/tools"
)

const untitled = "無題"

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func (h *handlers) notesWritePack() *tools.Pack {
	return &tools.Pack{
		ID: "note:notes-write",
		Tools: []*tools.Tool{
			tools.New("post-draft-note",
				"Save a draft on note.com; the Markdown body is converted to note.com HTML",
				`{"type":"object","properties":{"title":{"type":"string","description":"Title"},"body":{"type":"string","description":"Body in Markdown"},"tags":{"type":"array","items":{"type":"string"},"description":"Tags (up to 10)"},"id":{"type":"string","description":"Existing draft ID to update"}},"required":["title","body"]}`,
				h.postDraftNote),
			tools.New("edit-note",
				"Edit an existing note",
				`{"type":"object","properties":{"id":{"type":"string","description":"Note ID"},"title":{"type":"string","description":"Title"},"body":{"type":"string","description":"Body"},"tags":{"type":"array","items":{"type":"string"},"description":"Tags (up to 10)"},"isDraft":{"type":"boolean","description":"Keep as draft","default":true}},"required":["id","title","body"]}`,
				h.editNote),
			tools.New("get-my-notes",
				"List your own notes, drafts included",
				`{"type":"object","properties":{`+sizeSchema+`,"page":{"type":"number","description":"Page number","default":1},"includeDrafts":{"type":"boolean","description":"Include drafts","default":true},"status":{"type":"string","enum":["all","draft","public"],"description":"Filter by status","default":"all"}},"required":[]}`,
				h.getMyNotes),
		},
	}
}

// editorHeaders makes draft requests look like they come from the web editor.
func editorHeaders() map[string]string {
	return map[string]string{
		"Origin":           "https://editor.note.com",
		"Referer":          "https://editor.note.com/",
		"X-Requested-With": "XMLHttpRequest",
		"Content-Type":     "application/json",
	}
}

type draftInput struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
	ID    string   `json:"id"`
}

type draftPayload struct {
	Body       string `json:"body"`
	BodyLength int    `json:"body_length"`
	Name       string `json:"name"`
	Index      bool   `json:"index"`
	IsLeadForm bool   `json:"is_lead_form"`
}

type draftResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	NoteID  string          `json:"noteId"`
	NoteKey string          `json:"noteKey"`
	EditURL string          `json:"editUrl"`
	Data    json.RawMessage `json:"data"`
}

func (h *handlers) postDraftNote(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in draftInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	title := in.Title
	if title == "" {
		title = untitled
	}

	html := h.conv.Convert(in.Body)

	id, key := in.ID, ""
	if id == "" {
		var err error
		id, key, err = h.createDraft(ctx, title)
		if err != nil {
			return tools.Result{}, err
		}
	}
	if key == "" {
		key = "n" + id
	}

	data, err := h.api.Do(ctx, noteapi.Request{
		Path:   "/v1/text_notes/draft_save?id=" + url.QueryEscape(id) + "&is_temp_saved=true",
		Method: http.MethodPost,
		Body: draftPayload{
			Body:       html,
			BodyLength: editorLength(html),
			Name:       title,
		},
		RequiresAuth: true,
		Headers:      editorHeaders(),
	})
	if err != nil {
		return tools.Result{}, fmt.Errorf("saving draft %s: %w", id, err)
	}

	h.logger.Info("draft saved", "note_id", id, "note_key", key, "html_length", len(html))

	return tools.JSONResult(draftResult{
		Success: true,
		Message: "draft saved",
		NoteID:  id,
		NoteKey: key,
		EditURL: "https://editor.note.com/notes/" + key + "/edit/",
		Data:    data,
	})
}

// createDraft creates an empty draft and returns its ID and key.
func (h *handlers) createDraft(ctx context.Context, title string) (string, string, error) {
	data, err := h.api.Do(ctx, noteapi.Request{
		Path:   "/v1/text_notes",
		Method: http.MethodPost,
		Body: draftPayload{
			Body: "<p></p>",
			Name: title,
		},
		RequiresAuth: true,
		Headers:      editorHeaders(),
	})
	if err != nil {
		return "", "", fmt.Errorf("creating draft: %w", err)
	}

	var resp struct {
		Data struct {
			ID  any    `json:"id"`
			Key string `json:"key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", "", fmt.Errorf("decoding draft: %w", err)
	}
	id := idString(resp.Data.ID)
	if id == "" {
		return "", "", fmt.Errorf("creating draft: response has no id")
	}
	return id, resp.Data.Key, nil
}

type editInput struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags"`
	IsDraft *bool    `json:"isDraft"`
}

func (h *handlers) editNote(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in editInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("id", in.ID); err != nil {
		return tools.Result{}, err
	}

	status := "published"
	if orDefault(in.IsDraft, true) {
		status = "draft"
	}

	data, err := h.api.Do(ctx, noteapi.Request{
		Path:         "/v1/text_notes/" + url.PathEscape(in.ID),
		Method:       http.MethodPut,
		Body:         map[string]string{"name": in.Title, "body": in.Body, "status": status},
		RequiresAuth: true,
	})
	if err != nil {
		return tools.Result{}, err
	}

	return tools.JSONResult(map[string]any{
		"success": true,
		"message": "note updated",
		"data":    data,
	})
}

type myNotesInput struct {
	Page          *int    `json:"page"`
	PerPage       *int    `json:"perPage"`
	Size          *int    `json:"size"`
	Status        *string `json:"status"`
	IncludeDrafts *bool   `json:"includeDrafts"`
}

type myNote struct {
	ID              string        `json:"id"`
	Key             string        `json:"key"`
	Title           string        `json:"title"`
	Excerpt         string        `json:"excerpt"`
	PublishedAt     string        `json:"publishedAt"`
	LikesCount      float64       `json:"likesCount"`
	CommentsCount   float64       `json:"commentsCount"`
	Status          string        `json:"status"`
	IsDraft         bool          `json:"isDraft"`
	Format          string        `json:"format"`
	URL             string        `json:"url"`
	EditURL         string        `json:"editUrl"`
	HasDraftContent bool          `json:"hasDraftContent"`
	LastUpdated     string        `json:"lastUpdated"`
	User            formattedUser `json:"user"`
}

type myNotesPage struct {
	Total           int      `json:"total"`
	Page            int      `json:"page"`
	PerPage         int      `json:"perPage"`
	Status          string   `json:"status"`
	TotalPages      int      `json:"totalPages"`
	HasNextPage     bool     `json:"hasNextPage"`
	HasPreviousPage bool     `json:"hasPreviousPage"`
	DraftCount      int      `json:"draftCount"`
	PublicCount     int      `json:"publicCount"`
	Notes           []myNote `json:"notes"`
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= 100 {
		return s
	}
	return string([]rune(s)[:100]) + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatMyNote(n apiNote) myNote {
	var draft apiDraft
	if n.NoteDraft != nil {
		draft = *n.NoteDraft
	}

	var ex string
	switch {
	case n.Body != "":
		ex = excerpt(n.Body)
	case n.PeekBody != "":
		ex = n.PeekBody
	case draft.Body != "":
		ex = excerpt(htmlTagRe.ReplaceAllString(draft.Body, ""))
	}

	out := myNote{
		ID:              idString(n.ID),
		Key:             n.Key,
		Title:           firstNonEmpty(n.Name, draft.Name, "("+untitled+")"),
		Excerpt:         ex,
		PublishedAt:     firstNonEmpty(n.PublishAt, n.PublishAtAlt, n.DisplayDate, n.CreatedAt, "unknown"),
		LikesCount:      n.LikeCount,
		CommentsCount:   n.CommentsCount,
		Status:          firstNonEmpty(n.Status, "unknown"),
		IsDraft:         n.Status == "draft",
		Format:          n.Format,
		URL:             n.noteURL(),
		EditURL:         "https://editor.note.com/notes/" + n.Key + "/edit/",
		HasDraftContent: n.NoteDraft != nil,
		LastUpdated:     firstNonEmpty(draft.UpdatedAt, n.CreatedAt),
	}
	if n.User != nil {
		out.User = formattedUser{
			ID:      idString(n.User.ID),
			Name:    firstNonEmpty(n.User.Name, n.User.Nickname),
			Urlname: n.User.Urlname,
		}
	}
	return out
}

func (h *handlers) getMyNotes(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in myNotesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}

	page := max(orDefault(in.Page, 1), 1)
	perPage := orDefault(in.PerPage, orDefault(in.Size, 20))
	if perPage <= 0 {
		perPage = 20
	}
	status := orDefault(in.Status, "all")
	if status == "all" && !orDefault(in.IncludeDrafts, true) {
		status = "public"
	}

	q := url.Values{
		"page":         {strconv.Itoa(page)},
		"per_page":     {strconv.Itoa(perPage)},
		"draft":        {"true"},
		"draft_reedit": {"false"},
		"ts":           {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
	if status == "draft" || status == "public" {
		q.Set("status", status)
	}

	data, err := h.api.Do(ctx, noteapi.Request{
		Path:         "/v2/note_list/contents?" + q.Encode(),
		RequiresAuth: true,
	})
	if err != nil {
		return tools.Result{}, err
	}

	var resp struct {
		Data struct {
			Notes      []apiNote `json:"notes"`
			TotalCount int       `json:"totalCount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return tools.Result{}, fmt.Errorf("decoding note list: %w", err)
	}

	out := myNotesPage{
		Total:           resp.Data.TotalCount,
		Page:            page,
		PerPage:         perPage,
		Status:          status,
		TotalPages:      int(math.Ceil(float64(resp.Data.TotalCount) / float64(perPage))),
		HasNextPage:     page*perPage < resp.Data.TotalCount,
		HasPreviousPage: page > 1,
		Notes:           make([]myNote, 0, len(resp.Data.Notes)),
	}
	for _, n := range resp.Data.Notes {
		f := formatMyNote(n)
		if f.IsDraft {
			out.DraftCount++
		} else {
			out.PublicCount++
		}
		out.Notes = append(out.Notes, f)
	}
	return tools.JSONResult(out)
}

// editorLength counts UTF-16 code units, the unit the note.com editor measures body_length in.
func editorLength(s string) int {
	return len(utf16.Encode([]rune(s)))
}
