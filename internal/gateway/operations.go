package gateway

import (
	"context"
	"strings"
)

// GetPosts returns one page of recent posts. first is clamped to 1..100.
func (g *Gateway) GetPosts(ctx context.Context, first int, after string) Page[Post] {
	var data struct {
		Posts *wirePostConnection `json:"posts"`
	}
	vars := map[string]any{"first": clampFirst(first), "after": cursorVar(after)}
	if err := g.query(ctx, opGetPosts, vars, &data, "first", first, "after", after); err != nil {
		return emptyPage[Post]()
	}
	return data.Posts.page()
}

// GetPostBySlug returns nil when the post does not exist or the CMS fails.
func (g *Gateway) GetPostBySlug(ctx context.Context, slug string) *Post {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}
	var data struct {
		Post *wirePost `json:"post"`
	}
	if err := g.query(ctx, opGetPostBySlug, map[string]any{"slug": slug}, &data, "slug", slug); err != nil {
		return nil
	}
	p, ok := data.Post.toPost()
	if !ok {
		return nil
	}
	return &p
}

// GetPostsByCategorySlug returns the category with one page of its posts.
func (g *Gateway) GetPostsByCategorySlug(ctx context.Context, slug string, first int, after string) *Category {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}
	var data struct {
		Category *wireCategory `json:"category"`
	}
	vars := map[string]any{"slug": slug, "first": clampFirst(first), "after": cursorVar(after)}
	if err := g.query(ctx, opGetCategoryPosts, vars, &data, "slug", slug, "after", after); err != nil {
		return nil
	}
	if data.Category == nil {
		return nil
	}
	c, ok := data.Category.toCategory()
	if !ok {
		return nil
	}
	pg := data.Category.Posts.page()
	c.Posts = &pg
	return &c
}

func (g *Gateway) GetCategories(ctx context.Context, first int) []Category {
	var data struct {
		Categories *wireTermConnection `json:"categories"`
	}
	if err := g.query(ctx, opGetCategories, map[string]any{"first": clampFirst(first)}, &data, "first", first); err != nil {
		return []Category{}
	}
	out := []Category{}
	if data.Categories == nil {
		return out
	}
	for _, n := range data.Categories.Nodes {
		if c, ok := n.toCategory(); ok {
			out = append(out, c)
		}
	}
	return out
}

// GetAuthorBySlug returns the author with up to 20 recent posts.
func (g *Gateway) GetAuthorBySlug(ctx context.Context, slug string) *Author {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}
	var data struct {
		User *wireUser `json:"user"`
	}
	if err := g.query(ctx, opGetAuthorBySlug, map[string]any{"slug": slug}, &data, "slug", slug); err != nil {
		return nil
	}
	a, ok := data.User.toAuthor()
	if !ok {
		return nil
	}
	if a.Posts == nil {
		a.Posts = []Post{}
	}
	return &a
}

// GetTagBySlug returns the tag with up to 20 recent posts.
func (g *Gateway) GetTagBySlug(ctx context.Context, slug string) *Tag {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil
	}
	var data struct {
		Tag *wireTag `json:"tag"`
	}
	if err := g.query(ctx, opGetTagBySlug, map[string]any{"slug": slug}, &data, "slug", slug); err != nil {
		return nil
	}
	if data.Tag == nil {
		return nil
	}
	t, ok := data.Tag.toTag()
	if !ok {
		return nil
	}
	t.Posts = data.Tag.Posts.posts()
	return &t
}

// SearchPosts runs a full-text search. A blank term returns no results
// without calling the CMS.
func (g *Gateway) SearchPosts(ctx context.Context, term string, first int) []Post {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Post{}
	}
	var data struct {
		Posts *wirePostConnection `json:"posts"`
	}
	vars := map[string]any{"term": term, "first": clampFirst(first)}
	if err := g.query(ctx, opSearchPosts, vars, &data, "term", term); err != nil {
		return []Post{}
	}
	return data.Posts.posts()
}

// GetAllCategorySlugs, GetAllAuthorSlugs and GetAllTagSlugs read a single
// page of up to 100 entries. These sets are small enough that no cursor walk
// is done.

func (g *Gateway) GetAllCategorySlugs(ctx context.Context) []string {
	var data struct {
		Categories *wireTermConnection `json:"categories"`
	}
	return g.slugPage(ctx, opAllCategorySlugs, &data, func() *wireTermConnection { return data.Categories })
}

func (g *Gateway) GetAllTagSlugs(ctx context.Context) []string {
	var data struct {
		Tags *wireTermConnection `json:"tags"`
	}
	return g.slugPage(ctx, opAllTagSlugs, &data, func() *wireTermConnection { return data.Tags })
}

func (g *Gateway) GetAllAuthorSlugs(ctx context.Context) []string {
	var data struct {
		Users *wireUserConnection `json:"users"`
	}
	if err := g.query(ctx, opAllAuthorSlugs, map[string]any{"first": maxFirst}, &data); err != nil {
		return []string{}
	}
	out := []string{}
	if data.Users == nil {
		return out
	}
	for _, u := range data.Users.Nodes {
		if u != nil && str(u.Slug) != "" {
			out = append(out, *u.Slug)
		}
	}
	return out
}

func (g *Gateway) slugPage(ctx context.Context, op string, data any, conn func() *wireTermConnection) []string {
	if err := g.query(ctx, op, map[string]any{"first": maxFirst}, data); err != nil {
		return []string{}
	}
	c := conn()
	if c == nil {
		return []string{}
	}
	return slugsOf(c.Nodes)
}

// GetPostsByAuthorSlug and GetPostsByTagSlug filter the 100 most recent
// posts client side. The CMS query surface has no usable server-side filter
// for these; callers only see the result contract.

func (g *Gateway) GetPostsByAuthorSlug(ctx context.Context, slug string, first int) []Post {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return []Post{}
	}
	return g.scanRecent(ctx, first, func(p Post) bool {
		return p.Author != nil && p.Author.Slug == slug
	}, "author_slug", slug)
}

func (g *Gateway) GetPostsByTagSlug(ctx context.Context, slug string, first int) []Post {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return []Post{}
	}
	return g.scanRecent(ctx, first, func(p Post) bool {
		for _, t := range p.Tags {
			if t.Slug == slug {
				return true
			}
		}
		return false
	}, "tag_slug", slug)
}

func (g *Gateway) scanRecent(ctx context.Context, first int, keep func(Post) bool, kv ...any) []Post {
	first = clampFirst(first)
	var data struct {
		Posts *wirePostConnection `json:"posts"`
	}
	if err := g.query(ctx, opRecentPostsForScan, map[string]any{"first": scanWindow}, &data, kv...); err != nil {
		return []Post{}
	}
	out := []Post{}
	for _, p := range data.Posts.posts() {
		if !keep(p) {
			continue
		}
		out = append(out, p)
		if len(out) == first {
			break
		}
	}
	return out
}
