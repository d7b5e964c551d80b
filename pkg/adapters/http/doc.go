// Package http serves the automata engine over a chi router: validation,
// whole-string runs, batches, conversions, stored sessions with SSE diffs,
// history and the catalog. The /convert/{kind} endpoints speak the contract
// of the backend package, so a server can act as another's conversion backend.
//
// The embedded openapi.yaml is loaded and validated with kin-openapi at start
// up and served on /openapi.yaml and /swagger.
package http
