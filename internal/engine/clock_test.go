package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/solforge/internal/testutil"
)

var (
	_ Sequencer = (*Clock)(nil)
	_ Sequencer = (*testutil.DeterministicClock)(nil)
	_ WallClock = SystemWallClock{}
	_ WallClock = (*testutil.ManualClock)(nil)
)

func TestClock_StartsAndResumes(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())

	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next(), "resumed clock continues after the recorded seq")
	assert.Equal(t, int64(42), c.Current())
}

func TestClock_AdvanceToNeverMovesBack(t *testing.T) {
	c := NewClockAt(5)
	c.AdvanceTo(9)
	assert.Equal(t, int64(9), c.Current())
	c.AdvanceTo(3)
	assert.Equal(t, int64(9), c.Current())
	assert.Equal(t, int64(10), c.Next())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines, calls = 50, 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*calls)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d handed out twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), c.Current())
}

func TestSystemWallClock_UnixSeconds(t *testing.T) {
	before := time.Now().Unix()
	got := SystemWallClock{}.Now()
	after := time.Now().Unix()

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}
