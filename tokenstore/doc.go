// Package tokenstore persists outstanding refresh-token sessions. One
// record is one live refresh session; the token value is unique across
// all records and every operation is atomic at the single-record level.
package tokenstore
