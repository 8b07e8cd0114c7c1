// ABOUTME: Composes rendering, identity tagging and sanitizing into one conversion entry point.
// ABOUTME: Each stage is a plain string transform so it can be swapped or tested alone.

package markdown

import "fmt"

// Renderer turns Markdown into HTML.
type Renderer interface {
	Render(md string) string
}

// RendererFunc adapts a plain function to the Renderer interface.
type RendererFunc func(md string) string

// Render calls f(md).
func (f RendererFunc) Render(md string) string { return f(md) }

// NoteRenderer is the built-in note.com dialect renderer.
var NoteRenderer Renderer = RendererFunc(ToHTML)

// Engine names accepted by RendererFor.
const (
	EngineNote       = "note"
	EngineCommonMark = "commonmark"
)

// RendererFor maps an engine name from configuration to a Renderer.
// An empty name selects the note dialect.
func RendererFor(engine string) (Renderer, error) {
	switch engine {
	case "", EngineNote:
		return NoteRenderer, nil
	case EngineCommonMark:
		return NewCommonMarkRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown markdown engine %q", engine)
	}
}

// Pipeline converts Markdown to platform HTML: render, then tag, then sanitize.
type Pipeline struct {
	renderer Renderer
	tagger   *Tagger
}

// NewPipeline builds a Pipeline. A nil renderer selects NoteRenderer and a nil
// tagger selects the package-level one.
func NewPipeline(renderer Renderer, tagger *Tagger) *Pipeline {
	if renderer == nil {
		renderer = NoteRenderer
	}
	if tagger == nil {
		tagger = defaultTagger
	}
	return &Pipeline{renderer: renderer, tagger: tagger}
}

// Convert runs the three stages in order. Sanitizing last discards identifiers
// that belonged to removed elements.
func (p *Pipeline) Convert(md string) string {
	html := p.renderer.Render(md)
	if html == "" {
		return ""
	}
	return Sanitize(p.tagger.Tag(html))
}

// Convert runs the default pipeline.
func Convert(md string) string {
	return defaultPipeline.Convert(md)
}

var defaultPipeline = NewPipeline(nil, nil)
