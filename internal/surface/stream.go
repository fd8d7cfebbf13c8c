package surface

import (
	"image"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable copy of the surface at publish time.
type Snapshot struct {
	Image *image.RGBA
	Seq   uint64
	At    time.Time
}

// Stream exposes published snapshots to observers on other goroutines.
// Observers never see the live pixel buffer.
type Stream struct {
	observers atomic.Int32
	latest    atomic.Pointer[Snapshot]
	seq       atomic.Uint64
}

// Observe registers an observer. Snapshots are only produced while at least
// one observer is registered. The returned func releases the registration
// and is safe to call more than once.
func (st *Stream) Observe() (release func()) {
	st.observers.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			st.observers.Add(-1)
		}
	}
}

// Observed reports whether anyone is watching the stream.
func (st *Stream) Observed() bool {
	return st.observers.Load() > 0
}

// Latest returns the most recent snapshot or nil if none was published.
func (st *Stream) Latest() *Snapshot {
	return st.latest.Load()
}

func (st *Stream) publish(img *image.RGBA) {
	st.latest.Store(&Snapshot{
		Image: img,
		Seq:   st.seq.Add(1),
		At:    time.Now(),
	})
}
