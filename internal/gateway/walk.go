package gateway

import (
	"context"
)

// walkPosts follows endCursor from the first page until the connection
// reports no next page. It stops early on a null or repeated cursor, a failed
// page, a cancelled ctx, or after MaxWalkPages pages, returning what it has.
func (g *Gateway) walkPosts(ctx context.Context, op string, visit func(Post)) {
	if ctx == nil {
		ctx = context.Background()
	}
	seen := make(map[string]struct{})
	after := ""
	pages := 0
	defer func() {
		if g.obs != nil {
			g.obs.ObserveCursorWalk(op, pages)
		}
	}()

	for pages < g.opts.MaxWalkPages {
		if err := ctx.Err(); err != nil {
			g.logger.Warn(ctx, "cursor walk cancelled", "operation", op, "pages", pages, "err", err)
			return
		}
		var data struct {
			Posts *wirePostConnection `json:"posts"`
		}
		vars := map[string]any{"first": walkPageSize, "after": cursorVar(after)}
		if err := g.query(ctx, op, vars, &data, "after", after, "page", pages+1); err != nil {
			return
		}
		pages++

		pg := data.Posts.page()
		for _, p := range pg.Nodes {
			visit(p)
		}
		if !pg.PageInfo.HasNextPage {
			return
		}
		next, ok := pg.PageInfo.Next()
		if !ok {
			g.logger.Warn(ctx, "cursor walk stopped: next page claimed without a cursor", "operation", op, "pages", pages)
			return
		}
		if _, dup := seen[next]; dup {
			g.logger.Warn(ctx, "cursor walk stopped: cursor repeated", "operation", op, "pages", pages, "cursor", next)
			return
		}
		seen[next] = struct{}{}
		after = next
	}
	g.logger.Warn(ctx, "cursor walk stopped at page limit", "operation", op, "max_pages", g.opts.MaxWalkPages)
}

// GetAllPostSlugs returns every published post slug in upstream order.
func (g *Gateway) GetAllPostSlugs(ctx context.Context) []string {
	out := []string{}
	g.walkPosts(ctx, opAllPostSlugs, func(p Post) { out = append(out, p.Slug) })
	return out
}

// GetAllPostsWithDates returns every post with id, slug, title and dates only.
func (g *Gateway) GetAllPostsWithDates(ctx context.Context) []Post {
	out := []Post{}
	g.walkPosts(ctx, opAllPostsWithDates, func(p Post) { out = append(out, p) })
	return out
}
