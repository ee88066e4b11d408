// Package gateway is the only path from newsfront to the CMS GraphQL API.
//
// A Gateway owns one HTTP client bound to one endpoint. The client is built
// on first use (or by Init at startup) and never rebuilt: if the endpoint
// check fails, the failure is permanent for the life of the process.
//
// Public operations never return errors. Transport failures, non-2xx
// responses, undecodable bodies and GraphQL error arrays are logged with the
// operation and its identifying argument, and the caller gets the empty value
// for the return type: nil for single lookups, an empty slice for lists and
// an empty Page for paginated lookups.
//
// Response payloads are decoded into pointer-heavy wire structs and converted
// to the exported entity types here; nothing outside this package sees the
// raw response shape.
package gateway
