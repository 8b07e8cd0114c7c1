// ABOUTME: Tests for Markdown conversion, identity tagging, sanitizing and the composed pipeline.
// ABOUTME: Includes the documented quirks (first-list-run wrapping, tagging tag-like text).

package markdown

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idAttrRe = regexp.MustCompile(` name="([^"]+)" id="([^"]+)"`)

func TestToHTML_Empty(t *testing.T) {
	assert.Equal(t, "", ToHTML(""))
}

func TestToHTML_PlainTextOnlyParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single line", "hello world", "<p>hello world</p>"},
		{"line break starts paragraph", "first\nsecond", "<p>first</p><p>second</p>"},
		{"blank lines collapse", "first\n\n\n\nsecond", "<p>first</p><p>second</p>"},
		{"crlf normalised", "first\r\nsecond", "<p>first</p><p>second</p>"},
		{"surrounding whitespace", "\n\nbody\n\n", "<p>body</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTML(tt.in))
		})
	}
}

func TestToHTML_BoldBeforeItalic(t *testing.T) {
	got := ToHTML("**a** *b*")

	assert.Contains(t, got, "<strong>a</strong>")
	assert.Contains(t, got, "<em>b</em>")
	assert.NotContains(t, got, "<em><strong>")
	assert.Equal(t, "<p><strong>a</strong> <em>b</em></p>", got)
}

func TestToHTML_HorizontalRuleNotWrapped(t *testing.T) {
	assert.Equal(t, "<hr>", ToHTML("---"))
	assert.Equal(t, "<p>above</p><hr><p>below</p>", ToHTML("above\n---\nbelow"))
}

func TestToHTML_Headings(t *testing.T) {
	got := ToHTML("# Title\n## Sub\n### Small")
	assert.Equal(t, "<h1>Title</h1><h2>Sub</h2><h3>Small</h3>", got)
}

func TestToHTML_InlineElements(t *testing.T) {
	assert.Equal(t, `<p><a href="https://note.com">note</a></p>`, ToHTML("[note](https://note.com)"))
	assert.Equal(t, "<p>run <code>go test</code> now</p>", ToHTML("run `go test` now"))
	assert.Equal(t, "<blockquote>quoted</blockquote>", ToHTML("> quoted"))
}

func TestToHTML_FencedCodeBeforeInline(t *testing.T) {
	got := ToHTML("```\nx := 1\n```")

	assert.True(t, strings.HasPrefix(got, "<pre><code>"), got)
	assert.True(t, strings.HasSuffix(got, "</code></pre>"), got)
	assert.Contains(t, got, "x := 1")
	// The fence delimiters must not be read as inline code.
	assert.Equal(t, 1, strings.Count(got, "<code>"))
	assert.NotContains(t, got, "<p><pre>")
}

func TestToHTML_BackticksInsideFenceStayLiteral(t *testing.T) {
	got := ToHTML("```\nuse `x` here\n```\nthen `y`")

	assert.Equal(t, 2, strings.Count(got, "<code>"), got)
	assert.Contains(t, got, "use `x` here")
	assert.Contains(t, got, "then <code>y</code>")
}

func TestToHTML_UnorderedList(t *testing.T) {
	got := ToHTML("- a\n* b")

	assert.True(t, strings.HasPrefix(got, "<ul><li>a</li>"), got)
	assert.True(t, strings.HasSuffix(got, "<li>b</li></ul>"), got)
	assert.Equal(t, 1, strings.Count(got, "<ul>"))
}

// Only the first run of list items is wrapped; later lists keep bare <li> elements.
func TestToHTML_OnlyFirstListRunWrapped(t *testing.T) {
	got := ToHTML("1. a\n2. b\n\nbetween\n\n1. c")

	assert.Equal(t, 1, strings.Count(got, "<ol>"))
	assert.Equal(t, 1, strings.Count(got, "</ol>"))
	assert.Contains(t, got, "<li>b</li></ol>")
	assert.Contains(t, got, "<p><li>c</li></p>")
}

func TestToHTML_OrderedAndUnorderedWrapIndependently(t *testing.T) {
	got := ToHTML("1. one\n\n- dash")

	assert.Contains(t, got, "<ol><li>one</li></ol>")
	assert.Contains(t, got, "<ul><li>dash</li></ul>")
}

func TestTagger_DistinctIDsPerEligibleTag(t *testing.T) {
	tagger := NewTagger(7)
	in := `<p>a</p><hr><div class="x">b</div><br/><img src="y" />`

	got := tagger.Tag(in)
	matches := idAttrRe.FindAllStringSubmatch(got, -1)

	require.Len(t, matches, 2)
	seen := map[string]bool{}
	for _, m := range matches {
		assert.Equal(t, m[1], m[2], "name and id must match on the same tag")
		assert.Len(t, m[2], 36)
		assert.False(t, seen[m[2]], "id reused: %s", m[2])
		seen[m[2]] = true
	}
	assert.Contains(t, got, "<hr>")
	assert.Contains(t, got, "<br/>")
	assert.Contains(t, got, `<img src="y" />`)
	assert.Contains(t, got, `<div class="x" name="`)
}

func TestTagger_ClosingTagsUntouched(t *testing.T) {
	got := NewTagger(1).Tag("<p>x</p>")
	assert.True(t, strings.HasSuffix(got, ">x</p>"), got)
	assert.Len(t, idAttrRe.FindAllString(got, -1), 1)
}

func TestTagger_TagsTagLikeText(t *testing.T) {
	got := NewTagger(1).Tag("<p>write <this> literally</p>")
	assert.Len(t, idAttrRe.FindAllString(got, -1), 2)
	assert.Contains(t, got, "<this name=")
}

func TestTagger_SameSeedSameSequence(t *testing.T) {
	in := "<h1>a</h1><p>b</p>"
	assert.Equal(t, NewTagger(99).Tag(in), NewTagger(99).Tag(in))
	assert.NotEqual(t, NewTagger(99).Tag(in), NewTagger(100).Tag(in))
}

func TestTagger_IDsLookLikeV4(t *testing.T) {
	got := NewTagger(3).Tag("<p>x</p>")
	m := idAttrRe.FindStringSubmatch(got)
	require.NotNil(t, m)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, m[2])
}

func TestSanitize_RemovesScriptAndOnclick(t *testing.T) {
	got := Sanitize(` <script>alert(1)</script><p onclick="x()">hi</p> `)

	assert.NotContains(t, got, "<script")
	assert.NotContains(t, got, "onclick")
	assert.Contains(t, got, "<p>hi</p>")
}

func TestSanitize_CaseInsensitiveAndMultiline(t *testing.T) {
	got := Sanitize("<IFRAME src=\"a\">\nline\n</iframe><p ONLOAD='go()'>ok</p><form><input></form>")

	assert.Equal(t, "<p>ok</p>", got)
}

func TestSanitize_KeepsUnlistedMarkup(t *testing.T) {
	in := `<p style="color:red" data-x="1"><span>keep</span></p>`
	assert.Equal(t, in, Sanitize(in))
	assert.Equal(t, "", Sanitize(""))
}

func TestPipeline_Empty(t *testing.T) {
	assert.Equal(t, "", Convert(""))
	assert.Equal(t, "", NewPipeline(NewCommonMarkRenderer(), nil).Convert(""))
}

func TestPipeline_TagsThenSanitizes(t *testing.T) {
	p := NewPipeline(nil, NewTagger(5))

	got := p.Convert(`hi <script>alert(1)</script> <a onclick="x()">y</a>`)

	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "onclick")
	// Identifiers on the removed script element go with it; the link keeps its own.
	assert.Len(t, idAttrRe.FindAllString(got, -1), 2)
	assert.Contains(t, got, `<a name="`)
}

func TestPipeline_StructureStableModuloIDs(t *testing.T) {
	in := "# Title\n\nSome **bold** text\n\n- a\n- b\n\n---"

	first := Convert(in)
	second := Convert(in)

	assert.NotEqual(t, first, second)
	strip := func(s string) string { return idAttrRe.ReplaceAllString(s, ` name="ID" id="ID"`) }
	assert.Equal(t, strip(first), strip(second))
	assert.Contains(t, first, "<hr>")
}

func TestCommonMarkRenderer(t *testing.T) {
	r := NewCommonMarkRenderer()

	assert.Equal(t, "<h1>Title</h1>\n<hr />", r.Render("# Title\n\n---"))
	assert.Contains(t, r.Render("| a |\n|---|\n| b |"), "<table>")

	got := NewPipeline(r, NewTagger(1)).Convert("# Title\n\n---")
	assert.Len(t, idAttrRe.FindAllString(got, -1), 1)
	assert.Contains(t, got, "<hr />")
}

func TestRendererFor(t *testing.T) {
	r, err := RendererFor("")
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", r.Render("x"))

	r, err = RendererFor(EngineCommonMark)
	require.NoError(t, err)
	assert.IsType(t, &CommonMarkRenderer{}, r)

	_, err = RendererFor("textile")
	assert.Error(t, err)
}
