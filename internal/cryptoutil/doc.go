// Package cryptoutil holds the small hashing helpers shared by the content
// API and the sitemap publisher: a constant-time secret comparison for the
// revalidation endpoint and SHA-256 digests for published documents.
package cryptoutil
