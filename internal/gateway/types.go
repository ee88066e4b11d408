package gateway

import "time"

// Image is a featured image reference.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Post is a CMS post. Values are request scoped and never modified after a
// Gateway operation returns them.
type Post struct {
	ID            string     `json:"id"`
	DatabaseID    int        `json:"databaseId,omitempty"`
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Excerpt       string     `json:"excerpt,omitempty"`
	Content       string     `json:"content,omitempty"`
	Date          time.Time  `json:"date"`
	Modified      time.Time  `json:"modified"`
	FeaturedImage *Image     `json:"featuredImage,omitempty"`
	Author        *Author    `json:"author,omitempty"`
	Categories    []Category `json:"categories,omitempty"`
	Tags          []Tag      `json:"tags,omitempty"`
}

// LastModified is Modified, or Date when the post was never edited.
func (p Post) LastModified() time.Time {
	if p.Modified.After(p.Date) {
		return p.Modified
	}
	return p.Date
}

type Category struct {
	ID          string      `json:"id"`
	DatabaseID  int         `json:"databaseId,omitempty"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Count       int         `json:"count,omitempty"`
	Posts       *Page[Post] `json:"posts,omitempty"`
}

type Author struct {
	ID          string `json:"id"`
	DatabaseID  int    `json:"databaseId,omitempty"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Posts       []Post `json:"posts,omitempty"`
}

type Tag struct {
	ID          string `json:"id"`
	DatabaseID  int    `json:"databaseId,omitempty"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Count       int    `json:"count,omitempty"`
	Posts       []Post `json:"posts,omitempty"`
}

// PageInfo is the cursor envelope. A nil EndCursor with HasNextPage set is
// an upstream contract violation and is treated as the end of the stream.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// Next returns the cursor for the following page, if there is one to fetch.
func (pi PageInfo) Next() (string, bool) {
	if !pi.HasNextPage || pi.EndCursor == nil || *pi.EndCursor == "" {
		return "", false
	}
	return *pi.EndCursor, true
}

// Page is one page of a cursor-paginated list.
type Page[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}

func emptyPage[T any]() Page[T] {
	return Page[T]{Nodes: []T{}}
}
