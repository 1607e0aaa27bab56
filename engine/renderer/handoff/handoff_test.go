package handoff

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestEmptyChannel(t *testing.T) {
	c := NewChannel[int]()

	frame, ok := c.Latest()
	assert.False(t, ok)
	assert.Nil(t, frame)
	assert.Zero(t, c.Generation())
}

func TestPublishThenLatest(t *testing.T) {
	c := NewChannel[string]()
	c.Publish("frame-1", nil)

	frame, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "frame-1", frame.Handle())
	assert.Equal(t, uint64(1), frame.Generation())
	frame.Release()
}

func TestLatestReturnsSameFrameUntilReplaced(t *testing.T) {
	c := NewChannel[string]()
	c.Publish("frame-1", nil)

	a, ok := c.Latest()
	require.True(t, ok)
	b, ok := c.Latest()
	require.True(t, ok)
	assert.Same(t, a, b, "repeat reads see the same published frame")
	a.Release()
	b.Release()

	c.Publish("frame-2", nil)
	next, ok := c.Latest()
	require.True(t, ok)
	assert.Equal(t, "frame-2", next.Handle())
	assert.Equal(t, uint64(2), next.Generation())
	next.Release()
}

func TestRetireRunsWhenUnreferencedOnReplace(t *testing.T) {
	c := NewChannel[int]()

	var retired atomic.Int32
	c.Publish(1, func() { retired.Add(1) })
	assert.Zero(t, retired.Load(), "published frame is still referenced by the channel")

	c.Publish(2, func() { retired.Add(1) })
	assert.Equal(t, int32(1), retired.Load(), "replaced frame with no readers retires immediately")
}

func TestReaderKeepsReplacedFrameAlive(t *testing.T) {
	c := NewChannel[int]()

	var retired atomic.Int32
	c.Publish(1, func() { retired.Add(1) })

	frame, ok := c.Latest()
	require.True(t, ok)

	c.Publish(2, nil)
	assert.Zero(t, retired.Load(), "reader still holds the replaced frame")
	assert.Equal(t, 1, frame.Handle(), "captured handle stays valid after replacement")

	frame.Release()
	assert.Equal(t, int32(1), retired.Load(), "last release retires the frame")
}

func TestRetireRunsExactlyOnce(t *testing.T) {
	c := NewChannel[int]()

	var retired atomic.Int32
	c.Publish(1, func() { retired.Add(1) })

	a, _ := c.Latest()
	b, _ := c.Latest()
	c.Clear()
	a.Release()
	b.Release()

	assert.Equal(t, int32(1), retired.Load())
}

func TestClearEmptiesChannel(t *testing.T) {
	c := NewChannel[int]()

	var retired atomic.Int32
	c.Publish(1, func() { retired.Add(1) })
	c.Clear()

	_, ok := c.Latest()
	assert.False(t, ok)
	assert.Equal(t, int32(1), retired.Load())

	// Clearing an empty channel is a no-op.
	c.Clear()
	assert.Equal(t, int32(1), retired.Load())
}

func TestConcurrentPublishAndLatest(t *testing.T) {
	c := NewChannel[uint64]()

	const publishes = 5000
	var retired atomic.Uint64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= publishes; i++ {
			c.Publish(i, func() { retired.Add(1) })
		}
	}()

	var lastSeen atomic.Uint64
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := uint64(0)
			for i := 0; i < 2000; i++ {
				frame, ok := c.Latest()
				if !ok {
					continue
				}
				gen := frame.Generation()
				if gen < prev {
					t.Errorf("generation moved backwards: %d after %d", gen, prev)
				}
				prev = gen
				if gen > lastSeen.Load() {
					lastSeen.Store(gen)
				}
				frame.Release()
			}
		}()
	}

	wg.Wait()
	c.Clear()

	// Every frame except readers' in-flight holds has retired; after Clear
	// and all Releases, the retire count matches the publish count.
	assert.Equal(t, uint64(publishes), retired.Load())
	assert.Equal(t, uint64(publishes), c.Generation())
}
