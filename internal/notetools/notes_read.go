// ABOUTME: Read-side note tools: keyword search, single-note fetch and search-result analytics.
// ABOUTME: get-note validates IDs and repairs IDs that a client accidentally doubled.

package notetools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/tools"
)

var noteIDPattern = regexp.MustCompile(`^n[a-zA-Z0-9]+$`)

var validSorts = []string{"new", "popular", "hot"}

func (h *handlers) notesReadPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:notes-read",
		Tools: []*tools.Tool{
			tools.New("search-notes",
				"Search note.com articles, sorted by newest, popularity or trending",
				`{"type":"object","properties":{`+querySchema+`,"size":{"type":"number","description":"Number of results (1-100)","default":10},"sort":{"type":"string","description":"Sort order (new/popular/hot)","default":"hot"}},"required":["query"]}`,
				h.searchNotes),
			tools.New("get-note",
				"Fetch a note.com article in detail, drafts included",
				`{"type":"object","properties":{`+noteIDProp+`},"required":["noteId"]}`,
				h.getNote),
			tools.New("analyze-notes",
				"Analyze note.com search results for engagement, content and pricing trends",
				`{"type":"object","properties":{`+querySchema+`,"size":{"type":"number","description":"Number of results to analyze","default":20},"start":{"type":"number","description":"Offset into the search results","default":0},"sort":{"type":"string","enum":["new","popular","hot"],"description":"Sort order","default":"popular"},"includeUserDetails":{"type":"boolean","description":"Aggregate author statistics","default":true},"analyzeContent":{"type":"boolean","description":"Analyze images, eyecatch and body length","default":true},"category":{"type":"string","description":"Restrict to a category"},"dateRange":{"type":"string","description":"Date range, e.g. 7d or 2m"},"priceRange":{"type":"string","enum":["all","free","paid"],"description":"Price filter","default":"all"}},"required":["query"]}`,
				h.analyzeNotes),
		},
	}
}

type searchNotesInput struct {
	Query string  `json:"query"`
	Size  *int    `json:"size"`
	Sort  *string `json:"sort"`
}

// normalizeSort accepts new, popular and hot, and maps like/likes to popular.
func normalizeSort(s string) (string, error) {
	for _, v := range validSorts {
		if s == v {
			return s, nil
		}
	}
	if s == "like" || s == "likes" {
		return "popular", nil
	}
	return "", fmt.Errorf("invalid sort %q: valid values are %s", s, strings.Join(validSorts, ", "))
}

func (h *handlers) searchNotes(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in searchNotesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("query", in.Query); err != nil {
		return tools.Result{}, err
	}

	sortBy, err := normalizeSort(orDefault(in.Sort, "hot"))
	if err != nil {
		return tools.Result{}, err
	}

	extra := url.Values{"start": {"0"}, "sort": {sortBy}}
	return h.get(ctx, searchPath("note", in.Query, orDefault(in.Size, 10), extra))
}

type getNoteInput struct {
	NoteID string `json:"noteId"`
}

// normalizeNoteID validates a note key. Keys longer than 25 characters are
// accepted only when they are the same key written twice.
func normalizeNoteID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("invalid input: noteId is required")
	}
	if len(id) > 25 {
		half := len(id) / 2
		if id[:half] != id[half:] {
			return "", fmt.Errorf("invalid noteId %q: expected 'n' followed by letters and digits", id)
		}
		id = id[:half]
	}
	if !noteIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid noteId %q: expected 'n' followed by letters and digits", id)
	}
	return id, nil
}

type formattedUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Urlname string `json:"urlname"`
	Bio     string `json:"bio"`
}

type formattedNote struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Body          string        `json:"body"`
	User          formattedUser `json:"user"`
	PublishedAt   string        `json:"publishedAt"`
	LikesCount    float64       `json:"likesCount"`
	CommentsCount float64       `json:"commentsCount"`
	Status        string        `json:"status"`
	URL           string        `json:"url"`
}

func formatNote(n apiNote) formattedNote {
	out := formattedNote{
		ID:            idString(n.ID),
		Title:         n.Name,
		Body:          n.Body,
		PublishedAt:   n.PublishAt,
		LikesCount:    n.LikeCount,
		CommentsCount: n.CommentsCount,
		Status:        n.Status,
		URL:           n.noteURL(),
	}
	if n.User != nil {
		out.User = formattedUser{
			ID:      idString(n.User.ID),
			Name:    n.User.Nickname,
			Urlname: n.User.Urlname,
			Bio:     n.User.Bio,
		}
	}
	return out
}

func (h *handlers) getNote(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in getNoteInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}

	id, err := normalizeNoteID(in.NoteID)
	if err != nil {
		return tools.Result{}, err
	}
	if id != in.NoteID {
		h.logger.Warn("repaired doubled note id", "received", in.NoteID, "using", id)
	}

	q := url.Values{
		"draft":        {"true"},
		"draft_reedit": {"false"},
		"ts":           {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
	data, err := h.api.Do(ctx, noteapi.Request{
		Path:         "/v3/notes/" + id + "?" + q.Encode(),
		RequiresAuth: true,
	})
	if err != nil {
		return tools.Result{}, err
	}

	var resp struct {
		Data apiNote `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return tools.Result{}, fmt.Errorf("decoding note: %w", err)
	}
	return tools.JSONResult(formatNote(resp.Data))
}

type analyzeNotesInput struct {
	Query              string  `json:"query"`
	Size               *int    `json:"size"`
	Start              *int    `json:"start"`
	Sort               *string `json:"sort"`
	IncludeUserDetails *bool   `json:"includeUserDetails"`
	AnalyzeContent     *bool   `json:"analyzeContent"`
	Category           string  `json:"category"`
	DateRange          string  `json:"dateRange"`
	PriceRange         *string `json:"priceRange"`
}

type engagementStats struct {
	TotalLikes      float64 `json:"totalLikes"`
	TotalComments   float64 `json:"totalComments"`
	AverageLikes    float64 `json:"averageLikes"`
	AverageComments float64 `json:"averageComments"`
}

type contentStats struct {
	WithImages        int     `json:"withImages"`
	WithEyecatch      int     `json:"withEyecatch"`
	AverageBodyLength float64 `json:"averageBodyLength"`
	WithTags          int     `json:"withTags"`
}

type pricingStats struct {
	Free         int     `json:"free"`
	Paid         int     `json:"paid"`
	AveragePrice float64 `json:"averagePrice"`
}

type authorStat struct {
	ID      string `json:"id"`
	Count   int    `json:"count"`
	Name    string `json:"name"`
	Urlname string `json:"urlname"`
}

type noteAnalytics struct {
	Query         string          `json:"query"`
	TotalResults  int             `json:"totalResults"`
	AnalyzedCount int             `json:"analyzedCount"`
	Engagement    engagementStats `json:"engagement"`
	Content       contentStats    `json:"content"`
	Pricing       pricingStats    `json:"pricing"`
	TopAuthors    []authorStat    `json:"topAuthors"`
}

type noteSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	User        string  `json:"user"`
	Likes       float64 `json:"likes"`
	Comments    float64 `json:"comments"`
	PublishedAt string  `json:"publishedAt"`
	URL         string  `json:"url"`
}

// decodeSearchNotes accepts data.notes as either an array or {contents: [...]}.
func decodeSearchNotes(data json.RawMessage) ([]apiNote, int, error) {
	var resp struct {
		Data struct {
			Notes json.RawMessage `json:"notes"`
			Total int             `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("decoding search results: %w", err)
	}

	var notes []apiNote
	raw := resp.Data.Notes
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &notes); err != nil {
			return nil, 0, fmt.Errorf("decoding notes: %w", err)
		}
	} else if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Contents []apiNote `json:"contents"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, 0, fmt.Errorf("decoding notes: %w", err)
		}
		notes = wrapped.Contents
	}

	total := resp.Data.Total
	if total == 0 {
		total = len(notes)
	}
	return notes, total, nil
}

func analyze(query string, notes []apiNote, total int, includeUsers, analyzeContent bool) noteAnalytics {
	a := noteAnalytics{
		Query:         query,
		TotalResults:  total,
		AnalyzedCount: len(notes),
		TopAuthors:    []authorStat{},
	}

	var authors []*authorStat
	byID := map[string]*authorStat{}
	var bodyLength, priceSum float64

	for _, n := range notes {
		a.Engagement.TotalLikes += n.LikeCount
		a.Engagement.TotalComments += n.CommentsCount

		if analyzeContent {
			if truthy(n.Eyecatch) {
				a.Content.WithEyecatch++
			}
			if strings.Contains(n.Body, "<img") {
				a.Content.WithImages++
			}
			bodyLength += float64(len([]rune(n.Body)))
			if len(n.Hashtags) > 0 {
				a.Content.WithTags++
			}
		}

		if n.PricingType == "free" || n.Price == 0 {
			a.Pricing.Free++
		} else {
			a.Pricing.Paid++
			priceSum += n.Price
		}

		if includeUsers && n.User != nil {
			id := idString(n.User.ID)
			stat, ok := byID[id]
			if !ok {
				name := n.User.Nickname
				if name == "" {
					name = n.User.Name
				}
				stat = &authorStat{ID: id, Name: name, Urlname: n.User.Urlname}
				byID[id] = stat
				authors = append(authors, stat)
			}
			stat.Count++
		}
	}

	if count := float64(len(notes)); count > 0 {
		a.Engagement.AverageLikes = a.Engagement.TotalLikes / count
		a.Engagement.AverageComments = a.Engagement.TotalComments / count
		a.Content.AverageBodyLength = bodyLength / count
		if a.Pricing.Paid > 0 {
			a.Pricing.AveragePrice = priceSum / float64(a.Pricing.Paid)
		}
	}

	sort.SliceStable(authors, func(i, j int) bool { return authors[i].Count > authors[j].Count })
	for i := 0; i < len(authors) && i < 5; i++ {
		a.TopAuthors = append(a.TopAuthors, *authors[i])
	}
	return a
}

func summarize(notes []apiNote, limit int) []noteSummary {
	out := make([]noteSummary, 0, min(limit, len(notes)))
	for i, n := range notes {
		if i == limit {
			break
		}
		title := n.Name
		if title == "" {
			title = n.Title
		}
		s := noteSummary{
			ID:          idString(n.ID),
			Title:       title,
			Likes:       n.LikeCount,
			Comments:    n.CommentsCount,
			PublishedAt: n.PublishAt,
			URL:         fmt.Sprintf("https://note.com/%s/n/%s", n.urlname(), n.Key),
		}
		if n.User != nil {
			s.User = n.User.Nickname
		}
		out = append(out, s)
	}
	return out
}

func (h *handlers) analyzeNotes(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in analyzeNotesInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if err := requireField("query", in.Query); err != nil {
		return tools.Result{}, err
	}

	extra := url.Values{
		"start": {strconv.Itoa(orDefault(in.Start, 0))},
		"sort":  {orDefault(in.Sort, "popular")},
	}
	if in.Category != "" {
		extra.Set("category", in.Category)
	}
	if in.DateRange != "" {
		extra.Set("date_range", in.DateRange)
	}
	if price := orDefault(in.PriceRange, "all"); price != "all" {
		extra.Set("price", price)
	}

	// Search results are public; credentials are sent when present.
	data, err := h.api.Do(ctx, noteapi.Request{Path: searchPath("note", in.Query, orDefault(in.Size, 20), extra)})
	if err != nil {
		return tools.Result{}, err
	}

	notes, total, err := decodeSearchNotes(data)
	if err != nil {
		return tools.Result{}, err
	}

	return tools.JSONResult(struct {
		Analytics noteAnalytics `json:"analytics"`
		Notes     []noteSummary `json:"notes"`
	}{
		Analytics: analyze(in.Query, notes, total, orDefault(in.IncludeUserDetails, true), orDefault(in.AnalyzeContent, true)),
		Notes:     summarize(notes, 10),
	})
}
