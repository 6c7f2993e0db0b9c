// Package middleware exposes an HTTP middleware adapter enforcing access
// token verification on protected routes.
//
// [Guard] reads the Authorization bearer token, calls Engine.VerifyAccess,
// and injects the verified [sessiongate.Identity] into the request
// context, retrievable with [IdentityFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement verification itself; all decisions are delegated to
// Engine.VerifyAccess.
package middleware
