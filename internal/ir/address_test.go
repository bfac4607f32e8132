package ir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProgramAddressVaultVector(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("vault")}, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), bump)
	assert.Equal(t, "hUFQx5GJ9tGdpCJXck7W9WXNdvV2WQGvxY6oiyABnDx", addr.String())
}

func TestFindProgramAddressMatchesCreate(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	addr, bump, err := FindProgramAddress(seeds, ProgramID)
	require.NoError(t, err)

	again, err := CreateProgramAddress([][]byte{[]byte("vault"), {bump}}, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.False(t, isOnCurve(addr))
}

func TestFindProgramAddressDoesNotMutateSeeds(t *testing.T) {
	seeds := make([][]byte, 1, 4)
	seeds[0] = []byte("vault")
	_, _, err := FindProgramAddress(seeds, ProgramID)
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestCreateProgramAddressDependsOnProgram(t *testing.T) {
	a, _, err := FindProgramAddress([][]byte{[]byte("vault")}, ProgramID)
	require.NoError(t, err)
	b, _, err := FindProgramAddress([][]byte{[]byte("vault")}, Incinerator)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCreateProgramAddressLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, ProgramID)
	assert.Error(t, err)

	many := make([][]byte, MaxSeeds+1)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress(many, ProgramID)
	assert.Error(t, err)
}

func TestIsOnCurveForRealKey(t *testing.T) {
	// The ed25519 base point encoding is a valid curve point.
	basePoint := Identity{0x58}
	for i := 1; i < IdentitySize; i++ {
		basePoint[i] = 0x66
	}
	assert.True(t, isOnCurve(basePoint))
}
