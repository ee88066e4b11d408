package gateway

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
)

// GetRelatedPosts returns up to first posts from the category, never
// including excludeID. The CMS cannot exclude server side, so one extra post
// is requested and the excluded one dropped here.
func (g *Gateway) GetRelatedPosts(ctx context.Context, categoryID, excludeID string, first int) []Post {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return []Post{}
	}
	first = clampFirst(first)
	fetch := first + 1
	if fetch > maxFirst {
		fetch = maxFirst
	}

	var data struct {
		Posts *wirePostConnection `json:"posts"`
	}
	vars := map[string]any{"categoryId": categoryID, "first": fetch}
	if err := g.query(ctx, opGetRelatedPosts, vars, &data, "category_id", categoryID, "exclude_id", excludeID); err != nil {
		return []Post{}
	}

	exclude := normalizeID(excludeID)
	out := []Post{}
	for _, p := range data.Posts.posts() {
		if exclude != "" && (normalizeID(p.ID) == exclude || strconv.Itoa(p.DatabaseID) == exclude) {
			continue
		}
		out = append(out, p)
		if len(out) == first {
			break
		}
	}
	return out
}

// normalizeID maps both identifier encodings onto the numeric database id:
// a WPGraphQL global id is base64("post:<n>"), a plain id is "<n>". Global
// ids of other node types, and anything that does not decode to that shape,
// are returned trimmed but otherwise as is.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if isDigits(id) {
		return id
	}
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(id)
	}
	if err != nil {
		return id
	}
	typ, n, ok := strings.Cut(string(raw), ":")
	if !ok || typ != "post" || !isDigits(n) {
		return id
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
