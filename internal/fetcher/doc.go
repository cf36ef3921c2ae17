// Package fetcher performs single conditional HTTP retrievals of the
// mirrored text resource. It injects the configured User-Agent and any
// stored validators (If-None-Match / If-Modified-Since), follows redirects
// up to a caller-supplied bound, and classifies failures into a small typed
// taxonomy so the freshness layer can decide between stale fallback and a
// hard failure. The fetcher never touches the filesystem.
package fetcher
