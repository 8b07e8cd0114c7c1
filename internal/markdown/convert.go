// ABOUTME: Markdown to note.com editor HTML conversion as an ordered list of text rewrites.
// ABOUTME: Later rules match tags produced by earlier ones, so the order is part of the contract.

package markdown

import (
	"regexp"
	"strings"
)

var (
	headingH3 = regexp.MustCompile(`(?m)^### (.*)$`)
	headingH2 = regexp.MustCompile(`(?m)^## (.*)$`)
	headingH1 = regexp.MustCompile(`(?m)^# (.*)$`)

	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.+?)\*`)

	fencedCodeRe = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	codeBlockRe  = regexp.MustCompile(`(?s)<pre><code>.*?</code></pre>`)

	linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	orderedItemRe   = regexp.MustCompile(`^\d+\. (.+)$`)
	unorderedItemRe = regexp.MustCompile(`^[-*] (.+)$`)

	blockquoteRe = regexp.MustCompile(`(?m)^> (.+)$`)
	hrRe         = regexp.MustCompile(`(?m)^---$`)

	newlineRunRe = regexp.MustCompile(`\n+`)
	excessNLRe   = regexp.MustCompile(`\n{3,}`)
)

// blockUnwrap strips paragraph tags that directly wrap a block-level element.
var blockUnwrap = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`<p>(<h[1-6]>)`), "$1"},
	{regexp.MustCompile(`(</h[1-6]>)</p>`), "$1"},
	{regexp.MustCompile(`<p>(<hr>)</p>`), "$1"},
	{regexp.MustCompile(`<p>(<pre>)`), "$1"},
	{regexp.MustCompile(`(</pre>)</p>`), "$1"},
	{regexp.MustCompile(`<p>(<blockquote>)`), "$1"},
	{regexp.MustCompile(`(</blockquote>)</p>`), "$1"},
	{regexp.MustCompile(`<p>(<ol>)`), "$1"},
	{regexp.MustCompile(`(</ol>)</p>`), "$1"},
	{regexp.MustCompile(`<p>(<ul>)`), "$1"},
	{regexp.MustCompile(`(</ul>)</p>`), "$1"},
}

// ToHTML converts Markdown into the HTML dialect the note.com editor stores.
// It never fails: anything it does not recognise is passed through as paragraph text.
// Running it over its own output is not supported.
func ToHTML(md string) string {
	if md == "" {
		return ""
	}

	html := strings.ReplaceAll(md, "\r\n", "\n")
	html = strings.ReplaceAll(html, "\r", "\n")

	// Longest prefix first so "###" is not read as "#" plus text.
	html = headingH3.ReplaceAllString(html, "<h3>${1}</h3>")
	html = headingH2.ReplaceAllString(html, "<h2>${1}</h2>")
	html = headingH1.ReplaceAllString(html, "<h1>${1}</h1>")

	html = boldRe.ReplaceAllString(html, "<strong>${1}</strong>")
	html = italicRe.ReplaceAllString(html, "<em>${1}</em>")

	html = fencedCodeRe.ReplaceAllString(html, "<pre><code>${1}</code></pre>")
	html = replaceOutsideCodeBlocks(html, inlineCodeRe, "<code>${1}</code>")

	html = linkRe.ReplaceAllString(html, `<a href="${2}">${1}</a>`)

	html = wrapFirstListRun(html, orderedItemRe, "ol")
	html = wrapFirstListRun(html, unorderedItemRe, "ul")

	html = blockquoteRe.ReplaceAllString(html, "<blockquote>${1}</blockquote>")
	html = hrRe.ReplaceAllString(html, "<hr>")

	// Every newline run is a paragraph boundary; note.com has no soft breaks.
	html = newlineRunRe.ReplaceAllString(html, "</p><p>")
	html = "<p>" + html + "</p>"

	html = strings.ReplaceAll(html, "<p></p>", "")
	for _, u := range blockUnwrap {
		html = u.re.ReplaceAllString(html, u.repl)
	}

	html = excessNLRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

// replaceOutsideCodeBlocks applies re only to the text between fenced code blocks.
func replaceOutsideCodeBlocks(s string, re *regexp.Regexp, repl string) string {
	var b strings.Builder
	prev := 0
	for _, loc := range codeBlockRe.FindAllStringIndex(s, -1) {
		b.WriteString(re.ReplaceAllString(s[prev:loc[0]], repl))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(re.ReplaceAllString(s[prev:], repl))
	return b.String()
}

// wrapFirstListRun turns every line matching item into an <li> and wraps only the
// first run of consecutive converted lines in <tag>. Later runs stay as bare <li>.
func wrapFirstListRun(s string, item *regexp.Regexp, tag string) string {
	lines := strings.Split(s, "\n")
	first, last := -1, -1
	inRun, runDone := false, false
	for i, line := range lines {
		m := item.FindStringSubmatch(line)
		if m == nil {
			if inRun {
				inRun, runDone = false, true
			}
			continue
		}
		lines[i] = "<li>" + m[1] + "</li>"
		if runDone {
			continue
		}
		if !inRun {
			first, inRun = i, true
		}
		last = i
	}
	if first < 0 {
		return s
	}
	lines[first] = "<" + tag + ">" + lines[first]
	lines[last] = lines[last] + "</" + tag + ">"
	return strings.Join(lines, "\n")
}
