// Package secpolicy builds the Content-Security-Policy and the fixed set of
// security headers attached to every response, and holds the small input
// hygiene helpers (redirect allow-listing, HTML escaping) used by handlers.
//
// Nonces come from crypto/rand only. If the random source fails the caller
// gets ErrRandUnavailable and must not serve the response with a weaker
// policy.
package secpolicy
