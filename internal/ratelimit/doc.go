// Package ratelimit is per-IP rate limiting for the site listener.
//
// It is in-memory and per instance. It limits a single address flooding the
// origin with uncached page and API requests; it does not stop distributed
// floods, which are left to the CDN in front. Static asset paths are not
// counted because the CDN serves them from cache.
package ratelimit
