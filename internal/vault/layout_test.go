package vault

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		Authority:                identity(7),
		TotalAccrued:             800_000_000,
		FeeBasisPoints:           500,
		BurnPercentageBps:        2000,
		DelaySeconds:             DefaultDelaySeconds,
		Bump:                     255,
		PendingBurnPercentageBps: SetTo[uint16](3000),
		PendingReleaseTime:       1_700_086_400,
	}
}

func TestEncodeRecordLayout(t *testing.T) {
	rec := sampleRecord()
	buf := EncodeRecord(rec)

	require.Len(t, buf, RecordSize)
	assert.Equal(t, discriminator[:], buf[:8])
	assert.Equal(t, LayoutVersion, buf[8])
	assert.Equal(t, rec.Authority[:], buf[9:41])
	assert.Equal(t, uint64(800_000_000), binary.LittleEndian.Uint64(buf[41:]))
	assert.Equal(t, uint16(500), binary.LittleEndian.Uint16(buf[49:]))
	assert.Equal(t, uint16(2000), binary.LittleEndian.Uint16(buf[51:]))
	assert.Equal(t, uint64(86_400), binary.LittleEndian.Uint64(buf[53:]))
	assert.Equal(t, byte(255), buf[61])
	assert.Equal(t, byte(1), buf[62])
	assert.Equal(t, uint16(3000), binary.LittleEndian.Uint16(buf[63:]))
	assert.Equal(t, byte(0), buf[65])
	assert.Equal(t, uint64(1_700_086_400), binary.LittleEndian.Uint64(buf[74:]))
}

func TestDecodeRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"idle", Record{Authority: identity(1), DelaySeconds: MinDelaySeconds, Bump: 254}},
		{"pending burn", sampleRecord()},
		{"pending both", Record{
			Authority:                identity(2),
			TotalAccrued:             ^uint64(0),
			FeeBasisPoints:           MaxBasisPoints,
			BurnPercentageBps:        MaxBasisPoints,
			DelaySeconds:             MaxDelaySeconds,
			PendingBurnPercentageBps: SetTo[uint16](0),
			PendingDelaySeconds:      SetTo(MinDelaySeconds),
			PendingReleaseTime:       1,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord(EncodeRecord(tt.rec))
			require.NoError(t, err)
			assert.Equal(t, tt.rec, got)
		})
	}
}

func TestDecodeRecordRejects(t *testing.T) {
	valid := EncodeRecord(sampleRecord())
	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", valid[:RecordSize-1]},
		{"long", append(append([]byte(nil), valid...), 0)},
		{"discriminator", mutate(func(b []byte) { b[0] ^= 0xff })},
		{"version", mutate(func(b []byte) { b[8] = 2 })},
		{"pending burn tag", mutate(func(b []byte) { b[62] = 2 })},
		{"pending delay tag", mutate(func(b []byte) { b[65] = 7 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord(tt.data)
			assert.ErrorIs(t, err, ErrInvalidAccountData)
		})
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Record)
		ok     bool
	}{
		{"valid", func(*Record) {}, true},
		{"idle", func(r *Record) { r.clearPending() }, true},
		{"zero authority", func(r *Record) { r.Authority = identity(0) }, false},
		{"fee too high", func(r *Record) { r.FeeBasisPoints = 10_001 }, false},
		{"burn too high", func(r *Record) { r.BurnPercentageBps = 10_001 }, false},
		{"delay too short", func(r *Record) { r.DelaySeconds = MinDelaySeconds - 1 }, false},
		{"delay too long", func(r *Record) { r.DelaySeconds = MaxDelaySeconds + 1 }, false},
		{"release without values", func(r *Record) { r.PendingBurnPercentageBps = Unchanged[uint16]() }, false},
		{"values without release", func(r *Record) { r.PendingReleaseTime = 0 }, false},
		{"pending burn out of range", func(r *Record) { r.PendingBurnPercentageBps = SetTo[uint16](20_000) }, false},
		{"pending delay out of range", func(r *Record) { r.PendingDelaySeconds = SetTo[int64](1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAccountData)
		})
	}
}
