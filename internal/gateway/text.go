package gateway

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	wordsPerMinute     = 200
	DefaultTruncateLen = 160
	ellipsis           = "..."
)

// ReadingTime is minutes at 200 words per minute, rounded up, never below 1.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	m := int(math.Ceil(float64(words) / wordsPerMinute))
	if m < 1 {
		return 1
	}
	return m
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "tr": true, "td": true, "th": true, "figure": true,
	"figcaption": true, "section": true, "article": true, "pre": true,
}

// StripHTML removes markup from an HTML fragment and collapses whitespace.
// Character references are left as written; script and style bodies are
// dropped.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				switch {
				case tt == html.StartTagToken:
					skip++
				case tt == html.EndTagToken && skip > 0:
					skip--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		}
	}
}

// TruncateText shortens s to at most maxLen runes plus "...". Trailing
// whitespace at the cut is trimmed. maxLen <= 0 means DefaultTruncateLen.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTruncateLen
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:maxLen]), " \t\r\n") + ellipsis
}
