// ABOUTME: Loose decoding of note.com note and user payloads used by formatting tools.
// ABOUTME: IDs arrive as numbers or strings, so they are kept as any and rendered on demand.

package notetools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type apiUser struct {
	ID       any    `json:"id"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
	Urlname  string `json:"urlname"`
	Bio      string `json:"bio"`
}

type apiDraft struct {
	Name      string `json:"name"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updatedAt"`
}

type apiNote struct {
	ID            any               `json:"id"`
	Key           string            `json:"key"`
	Name          string            `json:"name"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	PeekBody      string            `json:"peekBody"`
	Status        string            `json:"status"`
	Format        string            `json:"format"`
	PublishAt     string            `json:"publishAt"`
	PublishAtAlt  string            `json:"publish_at"`
	DisplayDate   string            `json:"displayDate"`
	CreatedAt     string            `json:"createdAt"`
	LikeCount     float64           `json:"likeCount"`
	CommentsCount float64           `json:"commentsCount"`
	Eyecatch      any               `json:"eyecatch"`
	Price         float64           `json:"price"`
	PricingType   string            `json:"pricingType"`
	Hashtags      []json.RawMessage `json:"hashtags"`
	User          *apiUser          `json:"user"`
	NoteDraft     *apiDraft         `json:"noteDraft"`
}

func (n *apiNote) urlname() string {
	if n.User == nil {
		return ""
	}
	return n.User.Urlname
}

func (n *apiNote) noteURL() string {
	name := n.urlname()
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("https://note.com/%s/n/%s", name, n.Key)
}

// idString renders a JSON id (number or string) as text.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

// truthy mirrors the loose presence checks the platform payloads need.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}
