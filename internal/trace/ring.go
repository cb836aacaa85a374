package trace

import (
	"io"
	"sync"
)

// DefaultRingSize is the number of events a ring keeps when unset.
const DefaultRingSize = 4096

// RingTracer remembers the most recent events of a decode run so they can be
// printed after a sentence aborts. Nothing is written until Dump.
type RingTracer struct {
	level Level

	mu    sync.Mutex
	slots []Event
	total uint64 // events ever stored; total % len(slots) is the next slot
}

// NewRingTracer keeps the last capacity events; capacity <= 0 means
// DefaultRingSize.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{level: level, slots: make([]Event, capacity)}
}

func (t *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	t.slots[t.total%uint64(len(t.slots))] = stored
	t.total++
	t.mu.Unlock()
}

// Snapshot copies the kept events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := uint64(len(t.slots))
	kept := min(t.total, size)
	out := make([]Event, 0, kept)
	for i := t.total - kept; i < t.total; i++ {
		out = append(out, t.slots[i%size])
	}
	return out
}

// Dump writes the kept events to w, oldest first.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
