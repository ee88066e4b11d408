// Package sitemap renders the XML sitemap and the Google News sitemap from
// content read through the gateway.
package sitemap

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/newsfront/internal/gateway"
	"github.com/keithlinneman/newsfront/internal/xerrors"
)

// Source is the part of *gateway.Gateway the builder reads from.
type Source interface {
	GetAllPostsWithDates(ctx context.Context) []gateway.Post
	GetAllCategorySlugs(ctx context.Context) []string
}

// NewsWindow is how far back the news sitemap reaches.
const NewsWindow = 48 * time.Hour

const (
	nsSitemap = "http://www.sitemaps.org/schemas/sitemap/0.9"
	nsNews    = "http://www.google.com/schemas/sitemap-news/0.9"
)

type Builder struct {
	Source          Source
	SiteURL         string
	PublicationName string
	Language        string

	// Now defaults to time.Now.
	Now func() time.Time
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	News    string   `xml:"xmlns:news,attr,omitempty"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc        string    `xml:"loc"`
	LastMod    string    `xml:"lastmod,omitempty"`
	ChangeFreq string    `xml:"changefreq,omitempty"`
	Priority   string    `xml:"priority,omitempty"`
	News       *newsItem `xml:"news:news,omitempty"`
}

type newsItem struct {
	Publication struct {
		Name     string `xml:"news:name"`
		Language string `xml:"news:language"`
	} `xml:"news:publication"`
	PublicationDate string `xml:"news:publication_date"`
	Title           string `xml:"news:title"`
}

// Stats summarizes a built document for the operator CLI.
type Stats struct {
	URLs       int
	Posts      int
	Categories int
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Builder) loc(p string) string {
	return strings.TrimRight(b.SiteURL, "/") + p
}

func w3c(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Build renders the standard sitemap: the home page, every post and every
// category. Posts and categories are fetched concurrently.
func (b *Builder) Build(ctx context.Context) ([]byte, Stats, error) {
	if b.Source == nil {
		return nil, Stats{}, xerrors.New("sitemap: no content source")
	}
	var (
		posts []gateway.Post
		cats  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts = b.Source.GetAllPostsWithDates(gctx)
		return gctx.Err()
	})
	g.Go(func() error {
		cats = b.Source.GetAllCategorySlugs(gctx)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, Stats{}, xerrors.Wrap(err, "sitemap: fetch content")
	}

	now := w3c(b.now())
	set := urlset{Xmlns: nsSitemap}
	set.URLs = append(set.URLs, entry{Loc: b.loc("/"), LastMod: now, ChangeFreq: "daily", Priority: "1.0"})
	for _, p := range posts {
		set.URLs = append(set.URLs, entry{
			Loc:        b.loc("/" + p.Slug),
			LastMod:    w3c(p.LastModified()),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}
	for _, c := range cats {
		set.URLs = append(set.URLs, entry{
			Loc:        b.loc("/category/" + c),
			LastMod:    now,
			ChangeFreq: "daily",
			Priority:   "0.8",
		})
	}

	doc, err := render(set)
	return doc, Stats{URLs: len(set.URLs), Posts: len(posts), Categories: len(cats)}, err
}

// BuildNews renders the news sitemap: posts published within NewsWindow.
func (b *Builder) BuildNews(ctx context.Context) ([]byte, Stats, error) {
	if b.Source == nil {
		return nil, Stats{}, xerrors.New("sitemap: no content source")
	}
	posts := b.Source.GetAllPostsWithDates(ctx)
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, xerrors.Wrap(err, "sitemap: fetch content")
	}

	cutoff := b.now().Add(-NewsWindow)
	set := urlset{Xmlns: nsSitemap, News: nsNews, URLs: []entry{}}
	for _, p := range posts {
		if p.Date.IsZero() || p.Date.Before(cutoff) {
			continue
		}
		n := &newsItem{PublicationDate: w3c(p.Date), Title: p.Title}
		n.Publication.Name = b.PublicationName
		n.Publication.Language = b.Language
		set.URLs = append(set.URLs, entry{
			Loc:        b.loc("/" + p.Slug),
			LastMod:    w3c(p.LastModified()),
			ChangeFreq: "hourly",
			Priority:   "0.9",
			News:       n,
		})
	}

	doc, err := render(set)
	return doc, Stats{URLs: len(set.URLs), Posts: len(set.URLs)}, err
}

func render(set urlset) ([]byte, error) {
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, xerrors.Wrap(err, "sitemap: encode")
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}
