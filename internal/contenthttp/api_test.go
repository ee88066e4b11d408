package contenthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/gateway"
	"github.com/keithlinneman/newsfront/internal/sitemap"
)

// test stubs

type stubContent struct {
	posts      map[string]*gateway.Post
	categories map[string]*gateway.Category
	authors    map[string]*gateway.Author
	tags       map[string]*gateway.Tag
	related    []gateway.Post
	search     []gateway.Post

	lastFirst   int
	lastAfter   string
	lastTerm    string
	lastRelated [2]string
}

func (s *stubContent) GetPosts(_ context.Context, first int, after string) gateway.Page[gateway.Post] {
	s.lastFirst, s.lastAfter = first, after
	var nodes []gateway.Post
	for _, p := range s.posts {
		nodes = append(nodes, *p)
	}
	if nodes == nil {
		nodes = []gateway.Post{}
	}
	return gateway.Page[gateway.Post]{Nodes: nodes}
}

func (s *stubContent) GetPostBySlug(_ context.Context, slug string) *gateway.Post {
	return s.posts[slug]
}

func (s *stubContent) GetPostsByCategorySlug(_ context.Context, slug string, first int, after string) *gateway.Category {
	s.lastFirst, s.lastAfter = first, after
	return s.categories[slug]
}

func (s *stubContent) GetCategories(_ context.Context, first int) []gateway.Category {
	s.lastFirst = first
	out := []gateway.Category{}
	for _, c := range s.categories {
		out = append(out, *c)
	}
	return out
}

func (s *stubContent) GetAuthorBySlug(_ context.Context, slug string) *gateway.Author {
	return s.authors[slug]
}

func (s *stubContent) GetTagBySlug(_ context.Context, slug string) *gateway.Tag {
	return s.tags[slug]
}

func (s *stubContent) GetRelatedPosts(_ context.Context, categoryID, excludeID string, first int) []gateway.Post {
	s.lastRelated = [2]string{categoryID, excludeID}
	s.lastFirst = first
	if s.related == nil {
		return []gateway.Post{}
	}
	return s.related
}

func (s *stubContent) SearchPosts(_ context.Context, term string, first int) []gateway.Post {
	s.lastTerm, s.lastFirst = term, first
	if s.search == nil {
		return []gateway.Post{}
	}
	return s.search
}

type stubSitemaps struct {
	doc []byte
	err error
}

func (s *stubSitemaps) Build(context.Context) ([]byte, sitemap.Stats, error) {
	return s.doc, sitemap.Stats{URLs: 1}, s.err
}

func (s *stubSitemaps) BuildNews(context.Context) ([]byte, sitemap.Stats, error) {
	return s.doc, sitemap.Stats{URLs: 1}, s.err
}

type countingMetrics struct{ results []string }

func (m *countingMetrics) IncRevalidate(result string) { m.results = append(m.results, result) }

func testSite() cfg.Site {
	return cfg.Site{
		Name:             "Daily Wire Desk",
		URL:              "https://news.example.com",
		Description:      "Independent news",
		RevalidateSecret: "s3cret-value",
		NewsLanguage:     "en",
	}
}

func samplePost() *gateway.Post {
	return &gateway.Post{
		ID:         "cG9zdDo0Mg==",
		DatabaseID: 42,
		Slug:       "hello-world",
		Title:      "Hello World",
		Excerpt:    "<p>First post</p>",
		Content:    "<p>" + strings.Repeat("word ", 450) + "</p>",
		Date:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Categories: []gateway.Category{{ID: "Y2F0ZWdvcnk6Nw==", Slug: "world", Name: "World"}},
	}
}

func newTestAPI(c *stubContent, m *countingMetrics) *API {
	opts := Options{Content: c, Site: testSite(), Sitemaps: &stubSitemaps{doc: []byte("<urlset/>")}}
	if m != nil {
		opts.Metrics = m
	}
	return NewAPI(opts)
}

func serve(api *API, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return m
}

// NewAPI

func TestNewAPI_NilLogger(t *testing.T) {
	api := NewAPI(Options{Content: &stubContent{}})
	if api.logger == nil {
		t.Fatal("logger should default to Nop, not nil")
	}
}

func TestRegisterRoutes_AllEndpoints(t *testing.T) {
	api := newTestAPI(&stubContent{}, nil)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/site"},
		{"GET", "/api/posts"},
		{"GET", "/api/categories"},
		{"GET", "/api/related"},
		{"GET", "/api/search?q=x"},
		{"GET", "/sitemap.xml"},
		{"GET", "/news-sitemap.xml"},
	}
	for _, ep := range endpoints {
		rec := serve(api, ep.method, ep.path)
		if rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
			t.Errorf("%s %s: got %d, route not registered", ep.method, ep.path, rec.Code)
		}
	}
}

func TestRegisterRoutes_NoSitemaps(t *testing.T) {
	api := NewAPI(Options{Content: &stubContent{}, Site: testSite()})
	if rec := serve(api, "GET", "/sitemap.xml"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a sitemap builder", rec.Code)
	}
}

func TestHandleSite(t *testing.T) {
	rec := serve(newTestAPI(&stubContent{}, nil), "GET", "/api/site")
	m := parseJSON(t, rec)
	if m["title"] != "Daily Wire Desk" || m["canonical"] != "https://news.example.com/" {
		t.Fatalf("metadata = %v", m)
	}
}

// posts

func TestHandlePosts_PassesPaging(t *testing.T) {
	c := &stubContent{posts: map[string]*gateway.Post{"hello-world": samplePost()}}
	rec := serve(newTestAPI(c, nil), "GET", "/api/posts?first=5&after=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if c.lastFirst != 5 || c.lastAfter != "abc" {
		t.Fatalf("first=%d after=%q", c.lastFirst, c.lastAfter)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}
	nodes, ok := parseJSON(t, rec)["nodes"].([]any)
	if !ok || len(nodes) != 1 {
		t.Fatalf("nodes = %v", nodes)
	}
}

func TestHandlePosts_BadFirstUsesDefault(t *testing.T) {
	c := &stubContent{}
	serve(newTestAPI(c, nil), "GET", "/api/posts?first=-3")
	if c.lastFirst != defaultPageSize {
		t.Fatalf("first = %d, want %d", c.lastFirst, defaultPageSize)
	}
}

func TestHandlePost_Found(t *testing.T) {
	c := &stubContent{
		posts:   map[string]*gateway.Post{"hello-world": samplePost()},
		related: []gateway.Post{{ID: "cG9zdDo0Mw==", Slug: "next"}},
	}
	rec := serve(newTestAPI(c, nil), "GET", "/api/posts/hello-world")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	m := parseJSON(t, rec)
	if m["readingTime"] != float64(3) {
		t.Errorf("readingTime = %v, want 3", m["readingTime"])
	}
	md, ok := m["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata = %v", m["metadata"])
	}
	if md["title"] != "Hello World | Daily Wire Desk" {
		t.Errorf("title = %v", md["title"])
	}
	if md["canonical"] != "https://news.example.com/hello-world" {
		t.Errorf("canonical = %v", md["canonical"])
	}
	if rel, _ := m["related"].([]any); len(rel) != 1 {
		t.Errorf("related = %v", m["related"])
	}
	if c.lastRelated != [2]string{"Y2F0ZWdvcnk6Nw==", "cG9zdDo0Mg=="} || c.lastFirst != defaultRelated {
		t.Errorf("related lookup = %v first=%d", c.lastRelated, c.lastFirst)
	}
}

func TestHandlePost_NoCategorySkipsRelated(t *testing.T) {
	p := samplePost()
	p.Categories = nil
	c := &stubContent{posts: map[string]*gateway.Post{"hello-world": p}}
	rec := serve(newTestAPI(c, nil), "GET", "/api/posts/hello-world")

	rel, ok := parseJSON(t, rec)["related"].([]any)
	if !ok || len(rel) != 0 {
		t.Fatalf("related = %v, want empty list", rel)
	}
	if c.lastRelated != [2]string{} {
		t.Fatal("related lookup should not run without a category")
	}
}

func TestHandleLookups_NotFound(t *testing.T) {
	api := newTestAPI(&stubContent{}, nil)
	for _, p := range []string{
		"/api/posts/missing",
		"/api/categories/missing",
		"/api/authors/missing",
		"/api/tags/missing",
	} {
		rec := serve(api, "GET", p)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, rec.Code)
			continue
		}
		if parseJSON(t, rec)["error"] == "" {
			t.Errorf("%s: error message missing", p)
		}
	}
}

func TestHandleLookups_Found(t *testing.T) {
	c := &stubContent{
		categories: map[string]*gateway.Category{"world": {Slug: "world", Name: "World"}},
		authors:    map[string]*gateway.Author{"jane": {Slug: "jane", Name: "Jane"}},
		tags:       map[string]*gateway.Tag{"elections": {Slug: "elections", Name: "Elections"}},
	}
	api := newTestAPI(c, nil)
	for p, name := range map[string]string{
		"/api/categories/world": "World",
		"/api/authors/jane":     "Jane",
		"/api/tags/elections":   "Elections",
	} {
		rec := serve(api, "GET", p)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", p, rec.Code)
			continue
		}
		if got := parseJSON(t, rec)["name"]; got != name {
			t.Errorf("%s: name = %v, want %s", p, got, name)
		}
	}
}

func TestHandleCategories_EmptyIsList(t *testing.T) {
	rec := serve(newTestAPI(&stubContent{}, nil), "GET", "/api/categories")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("body = %q, want []", rec.Body.String())
	}
}

func TestHandleRelated_Params(t *testing.T) {
	c := &stubContent{}
	serve(newTestAPI(c, nil), "GET", "/api/related?category=7&exclude=42&first=4")
	if c.lastRelated != [2]string{"7", "42"} || c.lastFirst != 4 {
		t.Fatalf("related = %v first=%d", c.lastRelated, c.lastFirst)
	}
}

// search

func TestHandleSearch_EscapesEchoedQuery(t *testing.T) {
	c := &stubContent{search: []gateway.Post{{Slug: "a"}}}
	rec := serve(newTestAPI(c, nil), "GET", "/api/search?q=%20%3Cb%3Ex%3C%2Fb%3E%20")

	if c.lastTerm != "<b>x</b>" {
		t.Fatalf("term passed to gateway = %q", c.lastTerm)
	}
	m := parseJSON(t, rec)
	if m["query"] != "&lt;b&gt;x&lt;/b&gt;" {
		t.Fatalf("query = %v", m["query"])
	}
	if res, _ := m["results"].([]any); len(res) != 1 {
		t.Fatalf("results = %v", m["results"])
	}
}

func TestHandleSearch_LongTermCapped(t *testing.T) {
	c := &stubContent{}
	serve(newTestAPI(c, nil), "GET", "/api/search?q="+strings.Repeat("a", 500))
	if len(c.lastTerm) != maxSearchTermRunes {
		t.Fatalf("term length = %d, want %d", len(c.lastTerm), maxSearchTermRunes)
	}
}

// revalidate

func TestHandleRevalidate_WrongSecret(t *testing.T) {
	m := &countingMetrics{}
	rec := serve(newTestAPI(&stubContent{}, m), "POST", "/api/revalidate?secret=nope&path=/")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
	if len(m.results) != 1 || m.results[0] != "unauthorized" {
		t.Fatalf("metrics = %v", m.results)
	}
}

func TestHandleRevalidate_Accepted(t *testing.T) {
	m := &countingMetrics{}
	rec := serve(newTestAPI(&stubContent{}, m), "POST", "/api/revalidate?secret=s3cret-value&path=/category/world")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got RevalidateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Revalidated || got.Path != "/category/world" {
		t.Fatalf("response = %+v", got)
	}
	if strings.Join(got.Tags, ",") != "category,posts,all-content" {
		t.Fatalf("tags = %v", got.Tags)
	}
	if len(m.results) != 1 || m.results[0] != "accepted" {
		t.Fatalf("metrics = %v", m.results)
	}
}

func TestHandleRevalidate_HeaderSecret(t *testing.T) {
	r := chi.NewRouter()
	newTestAPI(&stubContent{}, nil).RegisterRoutes(r)
	req := httptest.NewRequest("POST", "/api/revalidate?path=/", nil)
	req.Header.Set("X-Revalidate-Secret", "s3cret-value")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleRevalidate_BadPath(t *testing.T) {
	m := &countingMetrics{}
	api := newTestAPI(&stubContent{}, m)
	for _, p := range []string{"", "relative", "//evil.example"} {
		rec := serve(api, "POST", "/api/revalidate?secret=s3cret-value&path="+p)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("path %q: status = %d, want 400", p, rec.Code)
		}
	}
	for _, r := range m.results {
		if r != "bad_request" {
			t.Fatalf("metrics = %v", m.results)
		}
	}
}

func TestHandleRevalidate_GetNotAllowed(t *testing.T) {
	rec := serve(newTestAPI(&stubContent{}, nil), "GET", "/api/revalidate?secret=s3cret-value&path=/")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

// redirect

func TestHandleRedirect(t *testing.T) {
	api := newTestAPI(&stubContent{}, nil)
	tests := []struct {
		to       string
		wantCode int
	}{
		{"/world/story", http.StatusFound},
		{"https://news.example.com/x", http.StatusFound},
		{"https://evil.example/x", http.StatusBadRequest},
		{"//evil.example/x", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := serve(api, "GET", "/api/redirect?to="+tt.to)
		if rec.Code != tt.wantCode {
			t.Errorf("to=%q: status = %d, want %d", tt.to, rec.Code, tt.wantCode)
			continue
		}
		if tt.wantCode == http.StatusFound && rec.Header().Get("Location") != tt.to {
			t.Errorf("to=%q: Location = %q", tt.to, rec.Header().Get("Location"))
		}
	}
}

// sitemaps

func TestHandleSitemap_XML(t *testing.T) {
	rec := serve(newTestAPI(&stubContent{}, nil), "GET", "/sitemap.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=300") {
		t.Fatalf("Cache-Control = %q", cc)
	}
	if rec.Body.String() != "<urlset/>" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHandleSitemap_BuildError(t *testing.T) {
	api := NewAPI(Options{
		Content:  &stubContent{},
		Site:     testSite(),
		Sitemaps: &stubSitemaps{err: errors.New("context canceled")},
	})
	rec := serve(api, "GET", "/news-sitemap.xml")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}
}

func TestIntParam(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 10},
		{"7", 7},
		{" 7 ", 7},
		{"0", 10},
		{"x", 10},
		{"1000", 1000},
	}
	for _, tt := range tests {
		if got := intParam(tt.in, 10); got != tt.want {
			t.Errorf("intParam(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
