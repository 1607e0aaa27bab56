package renderer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeview/engine/renderer"
	"scopeview/engine/renderer/consumer"
	"scopeview/engine/renderer/handoff"
	"scopeview/engine/renderer/renderertest"
	"scopeview/engine/renderer/worker"
)

// TestPipelineClearColorReachesDisplay drives the full worker-to-consumer
// path: the worker renders offscreen at 512x512 with a black background, the
// consumer composites whatever is latest, and a clear color change on the
// worker shows up in a later composite without any cross-thread stall.
func TestPipelineClearColorReachesDisplay(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()

	black := renderer.ClearColor{A: 1}
	w := worker.New(backend, channel,
		worker.WithSize(512, 512),
		worker.WithFrameInterval(time.Millisecond),
		worker.WithClearColor(black),
	)
	c := consumer.New(backend, channel)

	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	require.Eventually(t, func() bool {
		if err := c.OnRedraw(); err != nil {
			return false
		}
		record, ok := backend.LastComposite()
		return ok && record.FrameLabel != "" && record.FrameClear == black
	}, time.Second, 2*time.Millisecond, "first frames composite as black")

	red := renderer.ClearColor{R: 1, A: 1}
	w.SetClearColor(red)

	require.Eventually(t, func() bool {
		if err := c.OnRedraw(); err != nil {
			return false
		}
		record, ok := backend.LastComposite()
		return ok && record.FrameClear == red
	}, time.Second, 2*time.Millisecond, "color change propagates to the display")

	assert.Positive(t, c.Composited())
	assert.Positive(t, w.Published())
}

// TestPipelineStopWhileRedrawing shuts the worker down while the consumer is
// hammering redraws. Neither side may deadlock, and every surface must come
// home once the consumer stops retaining frames.
func TestPipelineStopWhileRedrawing(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()

	w := worker.New(backend, channel,
		worker.WithSize(512, 512),
		worker.WithFrameInterval(time.Millisecond),
	)
	c := consumer.New(backend, channel)

	require.NoError(t, w.Start())

	redrawDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-redrawDone:
				return
			default:
				if err := c.OnRedraw(); err != nil {
					t.Errorf("redraw failed: %v", err)
					return
				}
			}
		}
	}()

	require.Eventually(t, func() bool {
		return w.Published() >= 3
	}, time.Second, 2*time.Millisecond)

	w.Stop()

	joined := make(chan struct{})
	go func() {
		w.Join()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		t.Fatal("worker teardown deadlocked against an active consumer")
	}

	close(redrawDone)
	wg.Wait()

	assert.Equal(t, worker.StateTerminated, w.State())
	assert.NoError(t, w.Err())
	assert.Zero(t, backend.LiveTextures(), "every surface destroyed at shutdown")
}
