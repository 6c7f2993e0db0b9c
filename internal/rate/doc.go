// Package rate provides sliding-window counters and lockout flags for the
// login and refresh abuse controls.
//
// # Backends
//
// Counters live in a shared Redis so every process sees the same window.
// When a Redis call fails the operation transparently falls back to an
// in-process map keyed identically. The fallback is best-effort and not
// shared across processes.
//
// # Window semantics
//
// A counter increment is a single atomic step (Lua INCR + PEXPIRE on first
// hit; a mutex-guarded critical section in the fallback). Key prefixes:
//   - attempts:login:  failed logins per ip+identifier
//   - lockout:login:   soft-lockout flag per ip+identifier
//   - rate:refresh:    refresh attempts per IP
package rate
