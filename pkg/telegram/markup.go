package telegram

import (
	"fmt"
	"regexp"
	"strings"
)

// Lightweight-markdown → Telegram HTML conversion. Telegram's HTML dialect
// only supports a handful of inline tags, so headers, quotes and lists are
// flattened rather than styled.
var (
	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reQuote      = regexp.MustCompile(`(?m)^>\s*(.*)$`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reBoldStars  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnders = regexp.MustCompile(`__(.+?)__`)
	reItalic     = regexp.MustCompile(`\b_([^_]+)_\b`)
	reStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
	reFence      = regexp.MustCompile("```[\\w]*\\n?([\\s\\S]*?)```")
	reInline     = regexp.MustCompile("`([^`]+)`")
)

// renderHTML converts markdown-ish text into Telegram HTML. Code spans are
// pulled out first so their contents survive untouched, then spliced back in
// escaped form.
func renderHTML(text string) string {
	if text == "" {
		return ""
	}

	text, fenced := extractSpans(text, reFence, "CB")
	text, inline := extractSpans(text, reInline, "IC")

	text = reHeading.ReplaceAllString(text, "$1")
	text = reQuote.ReplaceAllString(text, "$1")

	text = escapeHTML(text)

	text = reLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reBoldStars.ReplaceAllString(text, "<b>$1</b>")
	text = reBoldUnders.ReplaceAllString(text, "<b>$1</b>")
	text = reItalic.ReplaceAllStringFunc(text, func(s string) string {
		m := reItalic.FindStringSubmatch(s)
		if len(m) < 2 {
			return s
		}
		return "<i>" + m[1] + "</i>"
	})
	text = reStrike.ReplaceAllString(text, "<s>$1</s>")
	text = reBullet.ReplaceAllString(text, "• ")

	for i, code := range inline {
		text = strings.ReplaceAll(text,
			spanPlaceholder("IC", i),
			"<code>"+escapeHTML(code)+"</code>")
	}
	for i, code := range fenced {
		text = strings.ReplaceAll(text,
			spanPlaceholder("CB", i),
			"<pre><code>"+escapeHTML(code)+"</code></pre>")
	}

	return text
}

// extractSpans replaces every match of re with an opaque placeholder and
// returns the captured span bodies in order.
func extractSpans(text string, re *regexp.Regexp, tag string) (string, []string) {
	var spans []string
	i := 0
	out := re.ReplaceAllStringFunc(text, func(m string) string {
		sub := re.FindStringSubmatch(m)
		if len(sub) < 2 {
			return m
		}
		spans = append(spans, sub[1])
		p := spanPlaceholder(tag, i)
		i++
		return p
	})
	return out, spans
}

func spanPlaceholder(tag string, i int) string {
	return fmt.Sprintf("\x00%s%d\x00", tag, i)
}

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}
