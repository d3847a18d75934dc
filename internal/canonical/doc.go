// Package canonical provides the JSON value model and the RFC 8785 canonical
// serialization used to compare task definitions structurally.
//
// Opaque task fields (payload, extra) are decoded into Value trees so that
// numbers keep their exact integer form and object keys can be emitted in a
// stable order. Two definitions are considered equal when their canonical
// bytes are equal.
//
// # Canonical JSON
//
//   - Object keys sorted by UTF-16 code units
//   - No HTML escaping, no insignificant whitespace
//   - Strings kept byte for byte, with no Unicode normalization
//   - Integers printed in decimal, other numbers in ECMAScript form
//
// Hashes are SHA-256 with a versioned domain prefix, see hash.go.
package canonical
