// Package server exposes the mirrored file over HTTP for the serve mode.
// Each request runs the freshness controller first (ensure-on-request) and
// then streams the local copy, so an ad-hoc HTTP caller gets the same
// freshness guarantees as the background scheduler. Requests carry uuid
// request IDs for log correlation and the refresh conclusion is echoed in
// an X-Llms-Keep-Outcome response header.
package server
