// Package internal documents the gateway internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - apiclient: the retrying client for the White Cross backend
// - domain: per-entity services that validate, cache, and audit
// - auth, audit, cache, ratelimit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
