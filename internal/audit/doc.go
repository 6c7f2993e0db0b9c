// Package audit implements async event dispatching for credential lifecycle operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (JSON writer, Kafka, no-op).
//   - [Dispatcher]: buffered async relay that never blocks the caller; events
//     that do not fit in the buffer are counted and dropped.
//   - [Event]: structured audit record with timestamp, action, subject, session,
//     client address and free-form details.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; that responsibility belongs to the Engine flows.
package audit
