package gateway

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestReadingTime(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"one two three", 1},
		{strings.Repeat("word ", 200), 1},
		{strings.Repeat("word ", 201), 2},
		{strings.Repeat("word ", 400), 2},
		{strings.Repeat("word ", 1000), 5},
	}
	for _, tt := range tests {
		if got := ReadingTime(tt.in); got != tt.want {
			t.Errorf("ReadingTime(%d words) = %d, want %d", len(strings.Fields(tt.in)), got, tt.want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"plain", "plain"},
		{"<p>Hello <strong>world</strong></p>", "Hello world"},
		{"<p>one</p><p>two</p>", "one two"},
		{"a<br/>b", "a b"},
		{"Tom &amp; Jerry &lt;3", "Tom &amp; Jerry &lt;3"},
		{"a &lt;b&gt; c", "a &lt;b&gt; c"},
		{"<p>x &lt;script&gt;y&lt;/script&gt;</p>", "x &lt;script&gt;y&lt;/script&gt;"},
		{"<script>alert(1)</script>safe<style>p{}</style>", "safe"},
		{"<p>unclosed <em>tags", "unclosed tags"},
		{"  spaced\n\n out  ", "spaced out"},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := TruncateText(long, 160)
	if len(got) != 163 || !strings.HasPrefix(long, strings.TrimSuffix(got, "...")) || !strings.HasSuffix(got, "...") {
		t.Fatalf("TruncateText(200 a) = %q (len %d)", got, len(got))
	}
	if TruncateText("short", 160) != "short" {
		t.Fatal("short input must be unchanged")
	}
	if TruncateText("", 0) != "" {
		t.Fatal("empty input must stay empty")
	}
	if got := TruncateText(strings.Repeat("x", 170), 0); utf8.RuneCountInString(got) != DefaultTruncateLen+3 {
		t.Fatalf("default length not applied: %d", len(got))
	}
	if got := TruncateText("hello world and more", 6); got != "hello..." {
		t.Fatalf("trailing space not trimmed: %q", got)
	}
	if got := TruncateText(strings.Repeat("é", 10), 4); got != "éééé..." {
		t.Fatalf("rune truncation: %q", got)
	}
}
