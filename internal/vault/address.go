package vault

import (
	"sync"

	"github.com/roach88/solforge/internal/ir"
)

type derivedAddress struct {
	addr ir.Identity
	bump uint8
}

var canonicalAddress = sync.OnceValues(func() (derivedAddress, error) {
	addr, bump, err := ir.FindProgramAddress([][]byte{[]byte(AddressSeed)}, ir.ProgramID)
	return derivedAddress{addr: addr, bump: bump}, err
})

// Address returns the vault account address and its bump.
func Address() (ir.Identity, uint8, error) {
	d, err := canonicalAddress()
	return d.addr, d.bump, err
}

// verifyAddress recomputes the address from a stored bump.
func verifyAddress(addr ir.Identity, bump uint8) error {
	derived, err := ir.CreateProgramAddress([][]byte{[]byte(AddressSeed), {bump}}, ir.ProgramID)
	if err != nil {
		return ErrInvalidVaultAddress.wrap(err)
	}
	if derived != addr {
		return ErrInvalidVaultAddress.with("stored_bump", bump, "address", addr)
	}
	return nil
}
