package ir

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// IdentitySize is the length of an account identity in bytes.
const IdentitySize = 32

// Identity is a 32-byte account address, rendered in base58.
//
// Identities name callers, recipients, the vault account itself and the
// destruction sink. The zero value is the all-zero key and is never a
// valid caller.
type Identity [IdentitySize]byte

// ParseIdentity decodes a base58 string into an Identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("parse identity %q: %w", s, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("parse identity %q: decoded length %d, want %d", s, len(raw), IdentitySize)
	}
	copy(id[:], raw)
	return id, nil
}

// MustParseIdentity is like ParseIdentity but panics on error.
// Use only for compile-time constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentityFromBytes copies a 32-byte slice into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("identity from bytes: length %d, want %d", len(b), IdentitySize)
	}
	copy(id[:], b)
	return id, nil
}

// String returns the base58 form.
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw key.
func (id Identity) Bytes() []byte {
	out := make([]byte, IdentitySize)
	copy(out, id[:])
	return out
}

// IsZero reports whether id is the all-zero key.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Equal reports whether two identities are the same key.
func (id Identity) Equal(other Identity) bool {
	return bytes.Equal(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler (JSON and YAML use base58).
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
