// Package api implements the JSON HTTP API: ask, note and relation
// endpoints under /api/v1, health probes outside the middleware stack.
//
// Every response body uses one envelope: {"data": ...} on success,
// {"error": {"code", "message", "status"}} on failure. Handlers depend on
// narrow interfaces over the note store and the retrieval pipeline so they
// can be exercised without a database.
//
// The middleware stack, outermost first: panic recovery, request id,
// request logging, CORS, per-IP rate limiting. /healthz and /readyz are
// registered on a separate top-level mux so probes stay cheap and
// unthrottled.
package api
