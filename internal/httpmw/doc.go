// Package httpmw provides HTTP middleware for the site listener.
//
// httpserver.NewHandler composes them outermost first: edge headers, panic
// recovery, request ID, client IP, rate limiting, OTel tracing, trace
// headers, metrics, request logger, then the chi router with route
// annotation and the access log.
//
// Query strings are logged only as a length and user agents are never
// logged, so search terms and secrets passed as parameters stay out of logs.
package httpmw
