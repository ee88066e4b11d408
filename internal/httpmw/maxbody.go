package httpmw

import "net/http"

// DefaultMaxBody bounds request bodies on the site listener. The only
// endpoint that accepts a body is revalidate, and it reads its inputs from
// the query string.
const DefaultMaxBody = 4 << 10

// MaxBody limits request bodies to n bytes; reading past it fails and the
// server answers 413.
func MaxBody(n int64) func(http.Handler) http.Handler {
	if n <= 0 {
		n = DefaultMaxBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
