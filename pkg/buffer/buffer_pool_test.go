package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUsage(bp *BufferPool, counts ...uint64) {
	for i, c := range counts {
		bp.frames[i].usageCount = c
	}
}

func TestEvictSecondChance(t *testing.T) {
	bp := NewBufferPool(3)
	setUsage(bp, 2, 0, 1)

	victim, ok := bp.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), victim)
	assert.Equal(t, uint64(1), bp.Frame(0).UsageCount())
	assert.Equal(t, uint64(1), bp.Frame(2).UsageCount())
	// the hand stays on the victim
	assert.Equal(t, FrameID(1), bp.nextVictimID)
}

func TestEvictHandIsSticky(t *testing.T) {
	bp := NewBufferPool(4)
	setUsage(bp, 1, 1, 1, 1)
	bp.nextVictimID = 2

	// frames 2, 3, 0, 1 lose a unit, then frame 2 is the first at zero
	victim, ok := bp.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), victim)
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint64(0), bp.Frame(FrameID(i)).UsageCount())
	}

	bp.Frame(2).usageCount = 1
	victim, ok = bp.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(3), victim)
}

func TestEvictSkipsPinnedFrames(t *testing.T) {
	bp := NewBufferPool(3)
	setUsage(bp, 1, 1, 1)
	bp.Frame(0).buffer.pins.Add(1)
	bp.Frame(2).buffer.pins.Add(1)

	victim, ok := bp.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), victim)
	// pinned frames keep their usage
	assert.Equal(t, uint64(1), bp.Frame(0).UsageCount())
	assert.Equal(t, uint64(1), bp.Frame(2).UsageCount())
}

func TestEvictNeverPicksPinnedFrameAtZeroUsage(t *testing.T) {
	bp := NewBufferPool(2)
	setUsage(bp, 0, 1)
	bp.Frame(0).buffer.pins.Add(1)

	victim, ok := bp.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), victim)
}

func TestEvictAllPinned(t *testing.T) {
	bp := NewBufferPool(3)
	setUsage(bp, 1, 2, 1)
	for i := 0; i < 3; i++ {
		bp.Frame(FrameID(i)).buffer.pins.Add(1)
	}
	bp.nextVictimID = 1

	victim, ok := bp.Evict()
	assert.False(t, ok)
	assert.Equal(t, FrameID(-1), victim)
	assert.True(t, bp.nextVictimID >= 0 && int(bp.nextVictimID) < bp.Size())
}

func TestIncrementIDWraps(t *testing.T) {
	bp := NewBufferPool(3)
	assert.Equal(t, FrameID(1), bp.incrementID(0))
	assert.Equal(t, FrameID(0), bp.incrementID(2))
}

func TestFrameTouchIsCapped(t *testing.T) {
	f := &Frame{buffer: newBuffer()}
	for i := 0; i < MaxUsageCount+3; i++ {
		f.touch()
	}
	assert.Equal(t, uint64(MaxUsageCount), f.UsageCount())
}
