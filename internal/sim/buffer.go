package sim

import (
	"sync"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

type slot struct {
	mu   sync.RWMutex
	snap *dynamo.Snapshot
}

// DoubleBuffer publishes snapshots from the worker to any number of readers.
// Write and Read touch different slots; only Swap holds both locks.
type DoubleBuffer struct {
	read  slot
	write slot
}

func NewDoubleBuffer() *DoubleBuffer {
	b := &DoubleBuffer{}
	b.read.snap = dynamo.NewSnapshot(0, 0, 0)
	b.write.snap = dynamo.NewSnapshot(0, 0, 0)
	return b
}

func (b *DoubleBuffer) Write(s *dynamo.Snapshot) {
	b.write.mu.Lock()
	b.write.snap = s
	b.write.mu.Unlock()
}

// Swap exchanges the slots. Lock order is write then read.
func (b *DoubleBuffer) Swap() {
	b.write.mu.Lock()
	b.read.mu.Lock()
	b.read.snap, b.write.snap = b.write.snap, b.read.snap
	b.read.mu.Unlock()
	b.write.mu.Unlock()
}

// Publish makes s visible to readers. Only the worker may call it.
func (b *DoubleBuffer) Publish(s *dynamo.Snapshot) {
	b.Write(s)
	b.Swap()
}

// Read returns a deep copy of the read slot.
func (b *DoubleBuffer) Read() *dynamo.Snapshot {
	b.read.mu.RLock()
	defer b.read.mu.RUnlock()
	return b.read.snap.Clone()
}

// View runs fn against the read slot without copying. fn must not retain or
// modify the snapshot.
func (b *DoubleBuffer) View(fn func(s *dynamo.Snapshot)) {
	b.read.mu.RLock()
	defer b.read.mu.RUnlock()
	fn(b.read.snap)
}

func (b *DoubleBuffer) Frame() uint64 {
	var f uint64
	b.View(func(s *dynamo.Snapshot) { f = s.Frame })
	return f
}
