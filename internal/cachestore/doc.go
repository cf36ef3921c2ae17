// Package cachestore persists the mirrored text body and its validation
// metadata sidecar. The disk layout is two files per entry:
//
//	<OutputDir>/<OutputFile>            # the mirrored body
//	<OutputDir>/<OutputFile>.meta.json  # etag/lastModified/lastFetchedAtMs
//
// Writes go through temp-file + rename so a reader never observes a partial
// body, and the metadata file is always written after the body it describes.
// A missing or unparsable metadata file is reported as "no prior cache"
// rather than an error; the freshness layer then falls back to a full fetch.
package cachestore
