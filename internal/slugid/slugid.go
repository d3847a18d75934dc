// Package slugid encodes 128-bit random identifiers as 22-character
// URL-safe strings.
//
// A slug is the unpadded base64url encoding of a version 4 UUID. Nice slugs
// additionally clear the top bit so the first character is never '-', which
// keeps them safe as command-line arguments.
package slugid

import (
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Length is the number of characters in an encoded slug.
const Length = 22

// Pattern matches an encoded version 4 UUID. The fixed positions pin the
// version nibble and the RFC 4122 variant bits.
const Pattern = `^[A-Za-z0-9_-]{8}[Q-T][A-Za-z0-9_-][CGKOSWaeimquy26-][A-Za-z0-9_-]{10}[AQgw]$`

var slugRegexp = regexp.MustCompile(Pattern)

// Encode returns the slug for u.
func Encode(u uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(u[:])
}

// Decode parses a slug back into a UUID.
func Decode(slug string) (uuid.UUID, error) {
	if len(slug) != Length {
		return uuid.Nil, fmt.Errorf("slugid: invalid length %d, want %d", len(slug), Length)
	}
	b, err := base64.RawURLEncoding.DecodeString(slug)
	if err != nil {
		return uuid.Nil, fmt.Errorf("slugid: %w", err)
	}
	return uuid.FromBytes(b)
}

// V4 returns a slug for a fresh random UUID.
func V4() string {
	return Encode(uuid.New())
}

// Nice returns a random slug that never starts with '-'.
func Nice() string {
	u := uuid.New()
	u[0] &= 0x7f
	return Encode(u)
}

// Valid reports whether s is a well-formed version 4 slug.
func Valid(s string) bool {
	return slugRegexp.MatchString(s)
}
