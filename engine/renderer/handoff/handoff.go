// Package handoff implements the non-blocking frame channel between the
// production and presentation contexts. The channel holds at most one frame:
// publishing replaces the previous frame rather than queueing behind it, so a
// slow consumer observes frame drops, never backpressure.
package handoff

import (
	"sync"
	"sync/atomic"
)

// Frame is one published handle with its reference count. The channel holds
// one reference while the frame is current; each successful Latest call adds
// one. When the count drops to zero the retire callback runs exactly once,
// returning ownership of the handle to the producer.
type Frame[H any] struct {
	handle     H
	generation uint64

	refs       atomic.Int32
	retire     func()
	retireOnce sync.Once
}

// Handle returns the published handle. Valid until Release.
func (f *Frame[H]) Handle() H {
	return f.handle
}

// Generation returns the monotonically increasing publish sequence number of
// this frame.
func (f *Frame[H]) Generation() uint64 {
	return f.generation
}

// Release drops one reference. When the last reference is dropped, the
// frame's retire callback runs and the handle must no longer be used.
func (f *Frame[H]) Release() {
	if f.refs.Add(-1) == 0 {
		f.retireOnce.Do(func() {
			if f.retire != nil {
				f.retire()
			}
		})
	}
}

// retain adds a reference unless the frame has already retired. The count
// only reaches zero after the channel has swapped the frame out, so a failed
// retain means a reload of the channel will observe a different frame.
func (f *Frame[H]) retain() bool {
	for {
		n := f.refs.Load()
		if n == 0 {
			return false
		}
		if f.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Channel is the single-slot frame handoff. Publish and Latest never block
// and are safe to call concurrently from the two contexts.
type Channel[H any] struct {
	current    atomic.Pointer[Frame[H]]
	generation atomic.Uint64
}

// NewChannel creates an empty handoff channel.
//
// Returns:
//   - *Channel[H]: the channel, with no frame published
func NewChannel[H any]() *Channel[H] {
	return &Channel[H]{}
}

// Publish replaces the current frame with a new one wrapping handle. The
// previous frame loses the channel's reference; if no consumer holds it, its
// retire callback runs before Publish returns.
//
// Parameters:
//   - handle: the handle to publish
//   - onRetire: called exactly once when the last reference to this frame is
//     dropped, or nil
func (c *Channel[H]) Publish(handle H, onRetire func()) {
	f := &Frame[H]{
		handle:     handle,
		generation: c.generation.Add(1),
		retire:     onRetire,
	}
	f.refs.Store(1)

	if old := c.current.Swap(f); old != nil {
		old.Release()
	}
}

// Latest retains and returns the most recently published frame. The caller
// must Release the frame when done with it. Returns false when nothing has
// been published or the channel was cleared.
//
// Returns:
//   - *Frame[H]: the retained frame, or nil
//   - bool: true when a frame was retained
func (c *Channel[H]) Latest() (*Frame[H], bool) {
	for {
		f := c.current.Load()
		if f == nil {
			return nil, false
		}
		if f.retain() {
			return f, true
		}
		// The frame retired between the load and the retain, which means it
		// is no longer current. Reload and try the replacement.
	}
}

// Clear removes the current frame, dropping the channel's reference to it.
// Consumers still holding the frame keep it alive until they Release.
func (c *Channel[H]) Clear() {
	if old := c.current.Swap(nil); old != nil {
		old.Release()
	}
}

// Generation returns the sequence number of the most recent Publish, or zero
// when nothing has ever been published.
func (c *Channel[H]) Generation() uint64 {
	return c.generation.Load()
}
