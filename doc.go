// Package sessiongate provides a credential lifecycle engine with paired
// JWT access/refresh tokens, single-use refresh rotation with stolen-token
// reuse detection, a queryable multi-session inventory, revocation
// blocklisting, and sliding-window abuse controls with soft lockout.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessiongate is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (Identity, Session, TokenPair). Rate limiting
// and audit dispatch live under internal/ and are never exported; the
// jwt, tokenstore, and blocklist sub-packages are importable but most
// callers only need the Engine facade. Flow counters are read through
// [Engine.MetricsSnapshot]; exporter bindings live under metrics/export.
//
// # What this package must NOT do
//
//   - Expose refresh token values through the session inventory.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only apart from the schema migration in Build).
//   - Import any sub-package that re-imports sessiongate (no import cycles).
package sessiongate
