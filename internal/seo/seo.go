// Package seo builds page metadata objects for the rendering layer.
package seo

import (
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/gateway"
)

type OpenGraph struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	SiteName      string   `json:"siteName"`
	Locale        string   `json:"locale,omitempty"`
	Image         string   `json:"image,omitempty"`
	ImageAlt      string   `json:"imageAlt,omitempty"`
	PublishedTime string   `json:"publishedTime,omitempty"`
	ModifiedTime  string   `json:"modifiedTime,omitempty"`
	Authors       []string `json:"authors,omitempty"`
}

type Metadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Canonical   string    `json:"canonical"`
	OpenGraph   OpenGraph `json:"openGraph"`
	Keywords    []string  `json:"keywords"`
}

// ForPost derives metadata from a post. The description is the excerpt with
// markup removed, truncated to 160 characters, or the site description when
// the post has no excerpt.
func ForPost(p gateway.Post, site cfg.Site) Metadata {
	desc := gateway.TruncateText(gateway.StripHTML(p.Excerpt), gateway.DefaultTruncateLen)
	if desc == "" {
		desc = site.Description
	}
	// CMS titles arrive entity-encoded; the metadata carries plain text.
	title := html.UnescapeString(gateway.StripHTML(p.Title))
	canonical := site.URL + "/" + p.Slug

	og := OpenGraph{
		Type:          "article",
		Title:         title,
		Description:   desc,
		URL:           canonical,
		SiteName:      site.Name,
		Locale:        site.NewsLanguage,
		PublishedTime: rfc3339(p.Date),
		ModifiedTime:  rfc3339(p.LastModified()),
	}
	if p.FeaturedImage != nil {
		og.Image = p.FeaturedImage.URL
		og.ImageAlt = p.FeaturedImage.Alt
	}
	if p.Author != nil && p.Author.Name != "" {
		og.Authors = []string{p.Author.Name}
	}

	return Metadata{
		Title:       pageTitle(title, site.Name),
		Description: desc,
		Canonical:   canonical,
		OpenGraph:   og,
		Keywords:    keywords(p),
	}
}

// ForSite is the metadata of the home page.
func ForSite(site cfg.Site) Metadata {
	return Metadata{
		Title:       site.Name,
		Description: site.Description,
		Canonical:   site.URL + "/",
		OpenGraph: OpenGraph{
			Type:        "website",
			Title:       site.Name,
			Description: site.Description,
			URL:         site.URL + "/",
			SiteName:    site.Name,
			Locale:      site.NewsLanguage,
		},
		Keywords: []string{},
	}
}

func pageTitle(title, siteName string) string {
	switch {
	case title == "":
		return siteName
	case siteName == "":
		return title
	}
	return title + " | " + siteName
}

// keywords lists category then tag names, case-insensitively deduplicated.
func keywords(p gateway.Post) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(name string) {
		k := strings.ToLower(strings.TrimSpace(name))
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(name))
	}
	for _, c := range p.Categories {
		add(c.Name)
	}
	for _, t := range p.Tags {
		add(t.Name)
	}
	return out
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
