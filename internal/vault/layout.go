package vault

import (
	"crypto/sha256"
	"encoding/binary"
)

// RecordSize is the encoded size of a Record.
const RecordSize = 82

// LayoutVersion is written after the discriminator.
const LayoutVersion byte = 1

// Field offsets.
const (
	offDiscriminator = 0
	offVersion       = 8
	offAuthority     = 9
	offTotalAccrued  = 41
	offFeeBps        = 49
	offBurnBps       = 51
	offDelay         = 53
	offBump          = 61
	offPendingBurn   = 62
	offPendingDelay  = 65
	offReleaseTime   = 74
)

// discriminator tags vault account data so that foreign data is never
// decoded as a Record.
var discriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:Vault"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// EncodeRecord serializes r into its fixed layout.
func EncodeRecord(r Record) []byte {
	buf := make([]byte, RecordSize)
	le := binary.LittleEndian

	copy(buf[offDiscriminator:], discriminator[:])
	buf[offVersion] = LayoutVersion
	copy(buf[offAuthority:], r.Authority[:])
	le.PutUint64(buf[offTotalAccrued:], r.TotalAccrued)
	le.PutUint16(buf[offFeeBps:], r.FeeBasisPoints)
	le.PutUint16(buf[offBurnBps:], r.BurnPercentageBps)
	le.PutUint64(buf[offDelay:], uint64(r.DelaySeconds))
	buf[offBump] = r.Bump

	if bps, ok := r.PendingBurnPercentageBps.Get(); ok {
		buf[offPendingBurn] = 1
		le.PutUint16(buf[offPendingBurn+1:], bps)
	}
	if d, ok := r.PendingDelaySeconds.Get(); ok {
		buf[offPendingDelay] = 1
		le.PutUint64(buf[offPendingDelay+1:], uint64(d))
	}
	le.PutUint64(buf[offReleaseTime:], uint64(r.PendingReleaseTime))
	return buf
}

// DecodeRecord parses data produced by EncodeRecord. It checks framing
// only; callers run Validate for the invariants.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) != RecordSize {
		return Record{}, ErrInvalidAccountData.with("reason", "length", "got", len(data), "want", RecordSize)
	}
	if [8]byte(data[offDiscriminator:offVersion]) != discriminator {
		return Record{}, ErrInvalidAccountData.with("reason", "discriminator")
	}
	if data[offVersion] != LayoutVersion {
		return Record{}, ErrInvalidAccountData.with("reason", "version", "got", data[offVersion])
	}

	le := binary.LittleEndian
	var r Record
	copy(r.Authority[:], data[offAuthority:offTotalAccrued])
	r.TotalAccrued = le.Uint64(data[offTotalAccrued:])
	r.FeeBasisPoints = le.Uint16(data[offFeeBps:])
	r.BurnPercentageBps = le.Uint16(data[offBurnBps:])
	r.DelaySeconds = int64(le.Uint64(data[offDelay:]))
	r.Bump = data[offBump]

	switch data[offPendingBurn] {
	case 0:
	case 1:
		r.PendingBurnPercentageBps = SetTo(le.Uint16(data[offPendingBurn+1:]))
	default:
		return Record{}, ErrInvalidAccountData.with("reason", "pending_burn_tag", "got", data[offPendingBurn])
	}
	switch data[offPendingDelay] {
	case 0:
	case 1:
		r.PendingDelaySeconds = SetTo(int64(le.Uint64(data[offPendingDelay+1:])))
	default:
		return Record{}, ErrInvalidAccountData.with("reason", "pending_delay_tag", "got", data[offPendingDelay])
	}
	r.PendingReleaseTime = int64(le.Uint64(data[offReleaseTime:]))
	return r, nil
}
