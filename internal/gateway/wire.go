package gateway

import (
	"strings"
	"time"
)

// Wire types mirror the response shape with pointers everywhere so a missing
// or null field never panics. They do not leave this package.

type wireImage struct {
	SourceURL *string `json:"sourceUrl"`
	AltText   *string `json:"altText"`
}

type wireTerm struct {
	ID          *string `json:"id"`
	DatabaseID  *int    `json:"databaseId"`
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Count       *int    `json:"count"`
}

type wireUser struct {
	ID          *string `json:"id"`
	DatabaseID  *int    `json:"databaseId"`
	Slug        *string `json:"slug"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Avatar      *struct {
		URL *string `json:"url"`
	} `json:"avatar"`
	Posts *wirePostConnection `json:"posts"`
}

type wirePost struct {
	ID            *string `json:"id"`
	DatabaseID    *int    `json:"databaseId"`
	Slug          *string `json:"slug"`
	Title         *string `json:"title"`
	Excerpt       *string `json:"excerpt"`
	Content       *string `json:"content"`
	DateGMT       *string `json:"dateGmt"`
	ModifiedGMT   *string `json:"modifiedGmt"`
	FeaturedImage *struct {
		Node *wireImage `json:"node"`
	} `json:"featuredImage"`
	Author *struct {
		Node *wireUser `json:"node"`
	} `json:"author"`
	Categories *wireTermConnection `json:"categories"`
	Tags       *wireTermConnection `json:"tags"`
}

type wirePageInfo struct {
	HasNextPage *bool   `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type wirePostConnection struct {
	Nodes    []*wirePost   `json:"nodes"`
	PageInfo *wirePageInfo `json:"pageInfo"`
}

type wireTermConnection struct {
	Nodes []*wireTerm `json:"nodes"`
}

type wireCategory struct {
	wireTerm
	Posts *wirePostConnection `json:"posts"`
}

type wireTag struct {
	wireTerm
	Posts *wirePostConnection `json:"posts"`
}

type wireUserConnection struct {
	Nodes []*wireUser `json:"nodes"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// WPGraphQL's *Gmt fields carry no zone suffix.
const wpTimeLayout = "2006-01-02T15:04:05"

func parseTime(p *string) time.Time {
	s := strings.TrimSpace(str(p))
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.ParseInLocation(wpTimeLayout, s, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}

func (w *wirePost) toPost() (Post, bool) {
	if w == nil || str(w.Slug) == "" {
		return Post{}, false
	}
	p := Post{
		ID:         str(w.ID),
		DatabaseID: num(w.DatabaseID),
		Slug:       str(w.Slug),
		Title:      str(w.Title),
		Excerpt:    str(w.Excerpt),
		Content:    str(w.Content),
		Date:       parseTime(w.DateGMT),
		Modified:   parseTime(w.ModifiedGMT),
	}
	if w.FeaturedImage != nil && w.FeaturedImage.Node != nil && str(w.FeaturedImage.Node.SourceURL) != "" {
		p.FeaturedImage = &Image{URL: str(w.FeaturedImage.Node.SourceURL), Alt: str(w.FeaturedImage.Node.AltText)}
	}
	if w.Author != nil {
		if a, ok := w.Author.Node.toAuthor(); ok {
			p.Author = &a
		}
	}
	if w.Categories != nil {
		for _, t := range w.Categories.Nodes {
			if c, ok := t.toCategory(); ok {
				p.Categories = append(p.Categories, c)
			}
		}
	}
	if w.Tags != nil {
		for _, t := range w.Tags.Nodes {
			if tg, ok := t.toTag(); ok {
				p.Tags = append(p.Tags, tg)
			}
		}
	}
	return p, true
}

func (w *wireTerm) toCategory() (Category, bool) {
	if w == nil || str(w.Slug) == "" {
		return Category{}, false
	}
	return Category{
		ID:          str(w.ID),
		DatabaseID:  num(w.DatabaseID),
		Slug:        str(w.Slug),
		Name:        str(w.Name),
		Description: str(w.Description),
		Count:       num(w.Count),
	}, true
}

func (w *wireTerm) toTag() (Tag, bool) {
	if w == nil || str(w.Slug) == "" {
		return Tag{}, false
	}
	return Tag{
		ID:          str(w.ID),
		DatabaseID:  num(w.DatabaseID),
		Slug:        str(w.Slug),
		Name:        str(w.Name),
		Description: str(w.Description),
		Count:       num(w.Count),
	}, true
}

func (w *wireUser) toAuthor() (Author, bool) {
	if w == nil || str(w.Slug) == "" {
		return Author{}, false
	}
	a := Author{
		ID:          str(w.ID),
		DatabaseID:  num(w.DatabaseID),
		Slug:        str(w.Slug),
		Name:        str(w.Name),
		Description: str(w.Description),
	}
	if w.Avatar != nil {
		a.AvatarURL = str(w.Avatar.URL)
	}
	if w.Posts != nil {
		a.Posts = w.Posts.posts()
	}
	return a, true
}

// posts converts the nodes, dropping nulls and nodes without a slug.
func (c *wirePostConnection) posts() []Post {
	out := []Post{}
	if c == nil {
		return out
	}
	for _, n := range c.Nodes {
		if p, ok := n.toPost(); ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *wirePostConnection) page() Page[Post] {
	if c == nil {
		return emptyPage[Post]()
	}
	pg := Page[Post]{Nodes: c.posts()}
	if c.PageInfo != nil {
		pg.PageInfo.HasNextPage = c.PageInfo.HasNextPage != nil && *c.PageInfo.HasNextPage
		pg.PageInfo.EndCursor = c.PageInfo.EndCursor
	}
	return pg
}

func slugsOf(nodes []*wireTerm) []string {
	out := []string{}
	for _, n := range nodes {
		if n != nil && str(n.Slug) != "" {
			out = append(out, *n.Slug)
		}
	}
	return out
}
