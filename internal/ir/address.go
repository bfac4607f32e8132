package ir

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Well-known identities.
var (
	// ProgramID is the identity of the vault program. Vault addresses are
	// derived under it.
	ProgramID = MustParseIdentity("F1aLM6gPxEmoGRCT84ZYTSWAgiaaf3m4JHabr4nkBiHo")

	// Incinerator is the destruction sink. Nobody holds its key, so lamports
	// sent there are gone for good.
	Incinerator = MustParseIdentity("1nc1nerator11111111111111111111111111111111")
)

// Derivation limits.
const (
	MaxSeedLength = 32
	MaxSeeds      = 16
)

// pdaMarker is appended to every derivation so that derived addresses can
// never collide with the hash of an ordinary key.
const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrAddressOnCurve means the derived hash is a valid ed25519 point and
	// could therefore have a private key; the bump must be changed.
	ErrAddressOnCurve = errors.New("derived address lies on the ed25519 curve")

	// ErrNoViableBump means every bump from 255 to 0 landed on the curve.
	ErrNoViableBump = errors.New("no viable bump seed found")
)

// CreateProgramAddress derives an off-curve address from seeds and a program.
//
// Format: SHA256(seed_0 || ... || seed_n || program || "ProgramDerivedAddress")
//
// The result is rejected with ErrAddressOnCurve when it decodes as a curve
// point. Callers that store a bump pass it as the last seed.
func CreateProgramAddress(seeds [][]byte, program Identity) (Identity, error) {
	if len(seeds) > MaxSeeds {
		return Identity{}, fmt.Errorf("create program address: %d seeds exceeds max %d", len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Identity{}, fmt.Errorf("create program address: seed %d is %d bytes, max %d", i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var addr Identity
	copy(addr[:], h.Sum(nil))
	if isOnCurve(addr) {
		return Identity{}, ErrAddressOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address together with the bump that produced it.
//
// The search is deterministic, so every caller agrees on the canonical
// address without coordination.
func FindProgramAddress(seeds [][]byte, program Identity) (Identity, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		withBump := make([][]byte, 0, len(seeds)+1)
		withBump = append(withBump, seeds...)
		withBump = append(withBump, []byte{byte(bump)})

		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return Identity{}, 0, err
		}
	}
	return Identity{}, 0, ErrNoViableBump
}

// isOnCurve reports whether the 32 bytes decode as an ed25519 point.
func isOnCurve(addr Identity) bool {
	_, err := new(edwards25519.Point).SetBytes(addr[:])
	return err == nil
}
