// Package jwt mints and verifies paired access/refresh credentials using
// configured signing keys. Both tokens of a pair share one correlation id
// so a refresh session can be tied back to the access token it was issued
// with.
package jwt
