// ABOUTME: Adds a synthetic name/id attribute pair to every opening tag in an HTML string.
// ABOUTME: Works on the literal text, not a parsed tree; hr and self-closing tags are skipped.

package markdown

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var openingTagRe = regexp.MustCompile(`<(\w+)([^>]*)>`)

// Tagger assigns editor identifiers to HTML elements.
// Identifiers come from a seeded, non-cryptographic generator.
type Tagger struct {
	mu  sync.Mutex
	rnd io.Reader
}

// NewTagger returns a Tagger seeded from the given value.
// Two taggers with the same seed produce the same identifier sequence.
func NewTagger(seed uint64) *Tagger {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	return &Tagger{rnd: rand.NewChaCha8(key)}
}

var defaultTagger = NewTagger(uint64(time.Now().UnixNano()))

// Tag runs the package-level Tagger over html.
func Tag(html string) string {
	return defaultTagger.Tag(html)
}

// Tag returns html with name="<id>" id="<id>" appended to each eligible opening tag.
// Text that merely looks like a tag is tagged too.
func (t *Tagger) Tag(html string) string {
	return openingTagRe.ReplaceAllStringFunc(html, func(match string) string {
		sub := openingTagRe.FindStringSubmatch(match)
		tag, attrs := sub[1], sub[2]
		if tag == "hr" || isSelfClosing(attrs) {
			return match
		}
		id := t.newID()
		return "<" + tag + attrs + ` name="` + id + `" id="` + id + `">`
	})
}

func isSelfClosing(attrs string) bool {
	return strings.HasSuffix(strings.TrimSpace(attrs), "/")
}

// newID returns a 36-character, v4-shaped identifier.
func (t *Tagger) newID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := uuid.NewRandomFromReader(t.rnd)
	if err != nil {
		// ChaCha8 reads never fail; keep the element taggable regardless.
		return uuid.NewString()
	}
	return id.String()
}
