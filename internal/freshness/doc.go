// Package freshness decides, per invocation, whether the local copy of the
// mirrored resource can be served as-is, needs a conditional revalidation,
// or must be refetched outright. It is the only layer that reasons about
// time: the fetcher just talks HTTP and the cachestore just moves bytes.
// It is also the only layer allowed to recover from a fetch failure by
// falling back to an existing stale copy. Concurrent calls for the same
// output path are collapsed into one in-flight refresh via singleflight.
package freshness
