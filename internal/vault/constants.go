package vault

// Parameter bounds.
const (
	// MaxBasisPoints is 100%.
	MaxBasisPoints = 10_000

	// DefaultDelaySeconds is the timelock used when initialize omits one.
	DefaultDelaySeconds int64 = 86_400

	MinDelaySeconds int64 = 3_600
	MaxDelaySeconds int64 = 604_800

	// MinDustThreshold is the smallest amount the authority may burn or
	// distribute (0.001 SOL).
	MinDustThreshold uint64 = 1_000_000

	// LamportsPerSOL converts between display units and lamports.
	LamportsPerSOL uint64 = 1_000_000_000
)

// AddressSeed is the derivation label of the vault account.
const AddressSeed = "vault"

func validBasisPoints(bps uint16) bool {
	return bps <= MaxBasisPoints
}

func validDelay(seconds int64) bool {
	return seconds >= MinDelaySeconds && seconds <= MaxDelaySeconds
}
