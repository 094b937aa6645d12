package buffer

// FrameID is an index into the buffer pool's frame array.
type FrameID int

// MaxUsageCount caps a frame's usage count so one sweep pass over the pool
// can never have to spin more than MaxUsageCount rounds.
const MaxUsageCount = 5

// Frame is one slot of the pool.
// usageCount is the clock-sweep cooldown, not the pin count.
type Frame struct {
	usageCount uint64
	buffer     *Buffer
}

func (f *Frame) Buffer() *Buffer {
	return f.buffer
}

func (f *Frame) UsageCount() uint64 {
	return f.usageCount
}

// touch records a use of the frame.
func (f *Frame) touch() {
	if f.usageCount < MaxUsageCount {
		f.usageCount++
	}
}

// BufferPool is a fixed array of frames plus the clock hand.
// It is not synchronized; the manager's mutex covers it.
type BufferPool struct {
	frames       []Frame
	nextVictimID FrameID
}

func NewBufferPool(poolSize int) *BufferPool {
	frames := make([]Frame, poolSize)
	for i := range frames {
		frames[i].buffer = newBuffer()
	}
	return &BufferPool{frames: frames}
}

func (bp *BufferPool) Size() int {
	return len(bp.frames)
}

func (bp *BufferPool) Frame(id FrameID) *Frame {
	return &bp.frames[id]
}

// Evict picks the frame to repurpose with a clock sweep.
//
// Starting at the hand, a frame with usage 0 and no pins is the victim and
// the hand stays on it. An unpinned frame with usage > 0 loses one unit and
// the hand moves on. A pinned frame is skipped; after Size consecutive
// pinned frames there is no victim and ok is false.
func (bp *BufferPool) Evict() (victim FrameID, ok bool) {
	poolSize := bp.Size()
	consecutivePinned := 0
	for {
		frame := &bp.frames[bp.nextVictimID]
		pinned := frame.buffer.isPinned()

		switch {
		case !pinned && frame.usageCount == 0:
			return bp.nextVictimID, true
		case !pinned:
			frame.usageCount--
			consecutivePinned = 0
		default:
			consecutivePinned++
			if consecutivePinned >= poolSize {
				return -1, false
			}
		}
		bp.nextVictimID = bp.incrementID(bp.nextVictimID)
	}
}

func (bp *BufferPool) incrementID(id FrameID) FrameID {
	return FrameID((int(id) + 1) % bp.Size())
}
