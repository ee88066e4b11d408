package gateway

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Operation names. Each is also the GraphQL operationName sent on the wire
// and the operation label on cms_* metrics.
const (
	opGetPosts           = "GetPosts"
	opGetPostBySlug      = "GetPostBySlug"
	opGetCategoryPosts   = "GetPostsByCategorySlug"
	opGetCategories      = "GetCategories"
	opGetAuthorBySlug    = "GetAuthorBySlug"
	opGetTagBySlug       = "GetTagBySlug"
	opGetRelatedPosts    = "GetRelatedPosts"
	opSearchPosts        = "SearchPosts"
	opAllPostSlugs       = "GetAllPostSlugs"
	opAllPostsWithDates  = "GetAllPostsWithDates"
	opAllCategorySlugs   = "GetAllCategorySlugs"
	opAllAuthorSlugs     = "GetAllAuthorSlugs"
	opAllTagSlugs        = "GetAllTagSlugs"
	opRecentPostsForScan = "GetRecentPostsForScan"
)

const postFields = `
fragment PostFields on Post {
  id
  databaseId
  slug
  title
  excerpt
  dateGmt
  modifiedGmt
  featuredImage { node { sourceUrl altText } }
  author { node { id databaseId slug name } }
  categories { nodes { id databaseId slug name } }
  tags { nodes { id databaseId slug name } }
}
`

var queryText = map[string]string{
	opGetPosts: `
query GetPosts($first: Int!, $after: String) {
  posts(first: $first, after: $after, where: { orderby: { field: DATE, order: DESC } }) {
    nodes { ...PostFields }
    pageInfo { hasNextPage endCursor }
  }
}` + postFields,

	opGetPostBySlug: `
query GetPostBySlug($slug: ID!) {
  post(id: $slug, idType: SLUG) {
    ...PostFields
    content
  }
}` + postFields,

	opGetCategoryPosts: `
query GetPostsByCategorySlug($slug: ID!, $first: Int!, $after: String) {
  category(id: $slug, idType: SLUG) {
    id
    databaseId
    slug
    name
    description
    count
    posts(first: $first, after: $after) {
      nodes { ...PostFields }
      pageInfo { hasNextPage endCursor }
    }
  }
}` + postFields,

	opGetCategories: `
query GetCategories($first: Int!) {
  categories(first: $first, where: { hideEmpty: true }) {
    nodes { id databaseId slug name description count }
  }
}`,

	opGetAuthorBySlug: `
query GetAuthorBySlug($slug: ID!) {
  user(id: $slug, idType: SLUG) {
    id
    databaseId
    slug
    name
    description
    avatar { url }
    posts(first: 20) { nodes { ...PostFields } }
  }
}` + postFields,

	opGetTagBySlug: `
query GetTagBySlug($slug: ID!) {
  tag(id: $slug, idType: SLUG) {
    id
    databaseId
    slug
    name
    description
    count
    posts(first: 20) { nodes { ...PostFields } }
  }
}` + postFields,

	opGetRelatedPosts: `
query GetRelatedPosts($categoryId: ID!, $first: Int!) {
  posts(first: $first, where: { categoryIn: [$categoryId] }) {
    nodes { ...PostFields }
  }
}` + postFields,

	opSearchPosts: `
query SearchPosts($term: String!, $first: Int!) {
  posts(first: $first, where: { search: $term }) {
    nodes { ...PostFields }
  }
}` + postFields,

	opAllPostSlugs: `
query GetAllPostSlugs($first: Int!, $after: String) {
  posts(first: $first, after: $after) {
    nodes { slug }
    pageInfo { hasNextPage endCursor }
  }
}`,

	opAllPostsWithDates: `
query GetAllPostsWithDates($first: Int!, $after: String) {
  posts(first: $first, after: $after) {
    nodes { id slug title dateGmt modifiedGmt }
    pageInfo { hasNextPage endCursor }
  }
}`,

	opAllCategorySlugs: `
query GetAllCategorySlugs($first: Int!) {
  categories(first: $first) { nodes { slug } }
}`,

	opAllAuthorSlugs: `
query GetAllAuthorSlugs($first: Int!) {
  users(first: $first) { nodes { slug } }
}`,

	opAllTagSlugs: `
query GetAllTagSlugs($first: Int!) {
  tags(first: $first) { nodes { slug } }
}`,

	opRecentPostsForScan: `
query GetRecentPostsForScan($first: Int!) {
  posts(first: $first, where: { orderby: { field: DATE, order: DESC } }) {
    nodes { ...PostFields }
  }
}` + postFields,
}

// namedQuery is a parsed, checked query document.
type namedQuery struct {
	name string
	text string
	vars map[string]struct{}
}

// parseQueries parses every query and checks that each document holds
// exactly one operation named after its key.
func parseQueries(texts map[string]string) (map[string]*namedQuery, error) {
	out := make(map[string]*namedQuery, len(texts))
	for name, text := range texts {
		doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: text})
		if err != nil {
			return nil, fmt.Errorf("parse query %s: %w", name, err)
		}
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("query %s: want exactly one operation, got %d", name, len(doc.Operations))
		}
		op := doc.Operations[0]
		if op.Operation != ast.Query {
			return nil, fmt.Errorf("query %s: %s operations are not allowed", name, op.Operation)
		}
		if op.Name != name {
			return nil, fmt.Errorf("query %s: operation is named %q", name, op.Name)
		}
		vars := make(map[string]struct{}, len(op.VariableDefinitions))
		for _, v := range op.VariableDefinitions {
			vars[v.Variable] = struct{}{}
		}
		out[name] = &namedQuery{name: name, text: text, vars: vars}
	}
	return out, nil
}
