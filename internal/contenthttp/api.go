package contenthttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/keithlinneman/newsfront/internal/cachepolicy"
	"github.com/keithlinneman/newsfront/internal/cfg"
	"github.com/keithlinneman/newsfront/internal/cryptoutil"
	"github.com/keithlinneman/newsfront/internal/gateway"
	"github.com/keithlinneman/newsfront/internal/log"
	"github.com/keithlinneman/newsfront/internal/secpolicy"
	"github.com/keithlinneman/newsfront/internal/seo"
	"github.com/keithlinneman/newsfront/internal/sitemap"
)

// Content is the part of *gateway.Gateway served over HTTP.
type Content interface {
	GetPosts(ctx context.Context, first int, after string) gateway.Page[gateway.Post]
	GetPostBySlug(ctx context.Context, slug string) *gateway.Post
	GetPostsByCategorySlug(ctx context.Context, slug string, first int, after string) *gateway.Category
	GetCategories(ctx context.Context, first int) []gateway.Category
	GetAuthorBySlug(ctx context.Context, slug string) *gateway.Author
	GetTagBySlug(ctx context.Context, slug string) *gateway.Tag
	GetRelatedPosts(ctx context.Context, categoryID, excludeID string, first int) []gateway.Post
	SearchPosts(ctx context.Context, term string, first int) []gateway.Post
}

// Sitemaps builds the generated XML documents.
type Sitemaps interface {
	Build(ctx context.Context) ([]byte, sitemap.Stats, error)
	BuildNews(ctx context.Context) ([]byte, sitemap.Stats, error)
}

// Metrics is optional.
type Metrics interface {
	IncRevalidate(result string)
}

type Options struct {
	Content  Content
	Sitemaps Sitemaps
	Site     cfg.Site
	Logger   log.Logger
	Metrics  Metrics
}

// API implements the content endpoints consumed by the rendering layer.
// Upstream failures are already contained by the gateway, so handlers only
// map empty values to empty lists or 404s.
type API struct {
	content  Content
	sitemaps Sitemaps
	site     cfg.Site
	logger   log.Logger
	metrics  Metrics
	now      func() time.Time
}

func NewAPI(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &API{
		content:  opts.Content,
		sitemaps: opts.Sitemaps,
		site:     opts.Site,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// RegisterRoutes attaches the content endpoints to the router
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/api/site", api.HandleSite)
	r.Get("/api/posts", api.HandlePosts)
	r.Get("/api/posts/{slug}", api.HandlePost)
	r.Get("/api/categories", api.HandleCategories)
	r.Get("/api/categories/{slug}", api.HandleCategory)
	r.Get("/api/authors/{slug}", api.HandleAuthor)
	r.Get("/api/tags/{slug}", api.HandleTag)
	r.Get("/api/related", api.HandleRelated)
	r.Get("/api/search", api.HandleSearch)
	r.Post("/api/revalidate", api.HandleRevalidate)
	r.Get("/api/redirect", api.HandleRedirect)
	if api.sitemaps != nil {
		r.Get("/sitemap.xml", api.HandleSitemap)
		r.Get("/news-sitemap.xml", api.HandleNewsSitemap)
	}
}

const (
	defaultPageSize    = 10
	defaultRelated     = 3
	defaultCategories  = 100
	maxSearchTermRunes = 200
)

// PostResponse is a single post with the values derived from it.
type PostResponse struct {
	Post        gateway.Post   `json:"post"`
	ReadingTime int            `json:"readingTime"`
	Metadata    seo.Metadata   `json:"metadata"`
	Related     []gateway.Post `json:"related"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []gateway.Post `json:"results"`
}

type RevalidateResponse struct {
	Revalidated bool      `json:"revalidated"`
	Path        string    `json:"path"`
	Tags        []string  `json:"tags"`
	Now         time.Time `json:"now"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleSite returns the home page metadata.
func (api *API) HandleSite(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(r.Context(), w, http.StatusOK, seo.ForSite(api.site))
}

func (api *API) HandlePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := api.content.GetPosts(r.Context(), intParam(q.Get("first"), defaultPageSize), q.Get("after"))
	api.writeJSON(r.Context(), w, http.StatusOK, page)
}

func (api *API) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	p := api.content.GetPostBySlug(ctx, slug)
	if p == nil {
		api.notFound(ctx, w, "post not found")
		return
	}

	resp := PostResponse{
		Post:        *p,
		ReadingTime: gateway.ReadingTime(gateway.StripHTML(p.Content)),
		Metadata:    seo.ForPost(*p, api.site),
		Related:     []gateway.Post{},
	}
	if len(p.Categories) > 0 {
		resp.Related = api.content.GetRelatedPosts(ctx, p.Categories[0].ID, p.ID, defaultRelated)
	}
	api.writeJSON(ctx, w, http.StatusOK, resp)
}

func (api *API) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats := api.content.GetCategories(r.Context(), intParam(r.URL.Query().Get("first"), defaultCategories))
	api.writeJSON(r.Context(), w, http.StatusOK, cats)
}

func (api *API) HandleCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	c := api.content.GetPostsByCategorySlug(ctx, chi.URLParam(r, "slug"), intParam(q.Get("first"), defaultPageSize), q.Get("after"))
	if c == nil {
		api.notFound(ctx, w, "category not found")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, c)
}

func (api *API) HandleAuthor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := api.content.GetAuthorBySlug(ctx, chi.URLParam(r, "slug"))
	if a == nil {
		api.notFound(ctx, w, "author not found")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, a)
}

func (api *API) HandleTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := api.content.GetTagBySlug(ctx, chi.URLParam(r, "slug"))
	if t == nil {
		api.notFound(ctx, w, "tag not found")
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, t)
}

func (api *API) HandleRelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	posts := api.content.GetRelatedPosts(r.Context(), q.Get("category"), q.Get("exclude"), intParam(q.Get("first"), defaultRelated))
	api.writeJSON(r.Context(), w, http.StatusOK, posts)
}

func (api *API) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	if rs := []rune(term); len(rs) > maxSearchTermRunes {
		term = string(rs[:maxSearchTermRunes])
	}
	results := api.content.SearchPosts(r.Context(), term, intParam(q.Get("first"), defaultPageSize))
	api.writeJSON(r.Context(), w, http.StatusOK, SearchResponse{
		Query:   secpolicy.SanitizeInput(term),
		Results: results,
	})
}

// HandleRevalidate checks the shared secret and returns the cache tags the
// caller should invalidate for path.
func (api *API) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Cache-Control", cachepolicy.NoStore)

	q := r.URL.Query()
	secret := q.Get("secret")
	if secret == "" {
		secret = r.Header.Get("X-Revalidate-Secret")
	}
	if !cryptoutil.SecretEqual(secret, api.site.RevalidateSecret) {
		api.countRevalidate("unauthorized")
		api.logger.Warn(ctx, "revalidate rejected", "reason", "invalid secret")
		api.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Error: "invalid secret"})
		return
	}

	p := q.Get("path")
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		api.countRevalidate("bad_request")
		api.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "path must be an absolute path"})
		return
	}

	tags := cachepolicy.TagsFor(p)
	api.countRevalidate("accepted")
	api.logger.Info(ctx, "revalidate accepted", "path", p, "tags", strings.Join(tags, ","))
	api.writeJSON(ctx, w, http.StatusOK, RevalidateResponse{
		Revalidated: true,
		Path:        p,
		Tags:        tags,
		Now:         api.now().UTC().Truncate(time.Second),
	})
}

// HandleRedirect only follows targets on the site's own origin.
func (api *API) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if !secpolicy.IsValidRedirectURL(to, []string{api.site.URL}) {
		api.logger.Warn(r.Context(), "redirect rejected", "to", secpolicy.SanitizeInput(to))
		api.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid redirect target"})
		return
	}
	w.Header().Set("Cache-Control", cachepolicy.NoStore)
	http.Redirect(w, r, to, http.StatusFound)
}

func (api *API) HandleSitemap(w http.ResponseWriter, r *http.Request) {
	api.serveSitemap(w, r, "sitemap", api.sitemaps.Build)
}

func (api *API) HandleNewsSitemap(w http.ResponseWriter, r *http.Request) {
	api.serveSitemap(w, r, "news-sitemap", api.sitemaps.BuildNews)
}

func (api *API) serveSitemap(w http.ResponseWriter, r *http.Request, kind string, build func(context.Context) ([]byte, sitemap.Stats, error)) {
	ctx := r.Context()
	doc, stats, err := build(ctx)
	if err != nil {
		api.logger.Error(ctx, err, "sitemap build failed", "kind", kind)
		w.Header().Set("Cache-Control", cachepolicy.NoStore)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	const ct = "application/xml; charset=utf-8"
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", cachepolicy.HeaderFor(cachepolicy.Classify(ct)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		api.logger.Warn(ctx, "failed to write sitemap", "kind", kind, "error", err)
		return
	}
	api.logger.Debug(ctx, "served sitemap", "kind", kind, "urls", stats.URLs)
}

func (api *API) countRevalidate(result string) {
	if api.metrics != nil {
		api.metrics.IncRevalidate(result)
	}
}

func (api *API) notFound(ctx context.Context, w http.ResponseWriter, msg string) {
	api.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: msg})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// intParam parses a positive integer query value, falling back to def.
// Range clamping is left to the gateway.
func intParam(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}
