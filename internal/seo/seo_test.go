package seo

import (
	"strings"
	"testing"
	"time"

	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/gateway"
)

var testSite = cfg.Site{
	Name:         "The Daily",
	URL:          "https://news.example.com",
	Description:  "News every day",
	NewsLanguage: "en",
}

func TestForPost(t *testing.T) {
	p := gateway.Post{
		Slug:          "big-story",
		Title:         "Big &amp; Bold",
		Excerpt:       "<p>" + strings.Repeat("words ", 50) + "</p>",
		Date:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Modified:      time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		FeaturedImage: &gateway.Image{URL: "https://cdn.example.com/a.jpg", Alt: "alt"},
		Author:        &gateway.Author{Name: "Ann"},
		Categories:    []gateway.Category{{Name: "Tech"}, {Name: "World"}},
		Tags:          []gateway.Tag{{Name: "tech"}, {Name: "AI"}},
	}
	md := ForPost(p, testSite)

	if md.Title != "Big & Bold | The Daily" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.Canonical != "https://news.example.com/big-story" || md.OpenGraph.URL != md.Canonical {
		t.Errorf("Canonical = %q, og.url = %q", md.Canonical, md.OpenGraph.URL)
	}
	if len(md.Description) != 163 || !strings.HasSuffix(md.Description, "...") || strings.Contains(md.Description, "<") {
		t.Errorf("Description = %q", md.Description)
	}
	if md.OpenGraph.Type != "article" || md.OpenGraph.Image != "https://cdn.example.com/a.jpg" {
		t.Errorf("og = %+v", md.OpenGraph)
	}
	if md.OpenGraph.PublishedTime != "2024-05-01T10:00:00Z" || md.OpenGraph.ModifiedTime != "2024-05-02T09:30:00Z" {
		t.Errorf("og times = %q, %q", md.OpenGraph.PublishedTime, md.OpenGraph.ModifiedTime)
	}
	if got := strings.Join(md.Keywords, ","); got != "Tech,World,AI" {
		t.Errorf("Keywords = %q", got)
	}
	if len(md.OpenGraph.Authors) != 1 || md.OpenGraph.Authors[0] != "Ann" {
		t.Errorf("Authors = %v", md.OpenGraph.Authors)
	}
}

func TestForPost_Fallbacks(t *testing.T) {
	md := ForPost(gateway.Post{Slug: "x"}, testSite)

	if md.Title != "The Daily" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.Description != testSite.Description {
		t.Errorf("Description = %q", md.Description)
	}
	if md.OpenGraph.PublishedTime != "" || md.OpenGraph.Image != "" {
		t.Errorf("og = %+v", md.OpenGraph)
	}
	if md.Keywords == nil {
		t.Error("Keywords should be an empty slice")
	}
}

func TestForPost_DescriptionKeepsEncodedMarkup(t *testing.T) {
	md := ForPost(gateway.Post{Slug: "x", Excerpt: "<p>use &lt;b&gt; for bold</p>"}, testSite)
	if md.Description != "use &lt;b&gt; for bold" {
		t.Errorf("Description = %q", md.Description)
	}
}

func TestForSite(t *testing.T) {
	md := ForSite(testSite)
	if md.Canonical != "https://news.example.com/" || md.OpenGraph.Type != "website" {
		t.Fatalf("md = %+v", md)
	}
}
