package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeview/engine/renderer"
	"scopeview/engine/renderer/handoff"
	"scopeview/engine/renderer/renderertest"
	"scopeview/engine/renderer/surface"
)

func newTestWorker(t *testing.T, backend renderer.Backend, opts ...Option) Worker {
	t.Helper()
	channel := handoff.NewChannel[renderer.Texture]()
	base := []Option{
		WithFrameInterval(0),
		WithSize(256, 256),
	}
	return New(backend, channel, append(base, opts...)...)
}

func waitForGeneration(t *testing.T, w Worker, after uint64) *handoff.Frame[renderer.Texture] {
	t.Helper()
	require.Eventually(t, func() bool {
		return w.Channel().Generation() > after
	}, time.Second, 2*time.Millisecond, "worker did not publish a frame")

	frame, ok := w.Channel().Latest()
	require.True(t, ok)
	return frame
}

func TestLifecycleStates(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)

	assert.Equal(t, StateCreated, w.State())

	require.NoError(t, w.Start())
	assert.Equal(t, StateRunning, w.State())
	assert.Equal(t, 3, backend.LiveTextures(), "default pool of three surfaces")

	w.Stop()
	w.Join()
	assert.Equal(t, StateTerminated, w.State())
	assert.NoError(t, w.Err())
	assert.Zero(t, backend.LiveTextures(), "all surfaces destroyed at teardown")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "state(99)", State(99).String())
}

func TestStartInitializationFailure(t *testing.T) {
	backend := renderertest.NewBackend()
	backend.FailNextAllocation()
	w := newTestWorker(t, backend)

	err := w.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, renderer.ErrInitializationFailed)
	assert.Equal(t, StateTerminated, w.State())
	assert.ErrorIs(t, w.Err(), renderer.ErrInitializationFailed)
	assert.Zero(t, backend.LiveTextures(), "partial allocations released")
}

func TestStartTwiceFails(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)

	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	assert.Error(t, w.Start())
}

func TestPublishedFrameIsFenced(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	red := renderer.ClearColor{R: 1, A: 1}
	w.SetClearColor(red)
	assert.Equal(t, red, w.ClearColor())
	w.RequestFrame()

	frame := waitForGeneration(t, w, 0)
	defer frame.Release()

	tex := frame.Handle().(*renderertest.Texture)
	assert.True(t, tex.Fenced(), "frame published only after its pass completed")
	assert.Equal(t, red, tex.Content())
	assert.GreaterOrEqual(t, w.Published(), uint64(1))
}

func TestClearColorChangeAppearsInNextFrame(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	w.RequestFrame()
	first := waitForGeneration(t, w, 0)
	assert.Equal(t, renderer.ClearColor{A: 1}, first.Handle().(*renderertest.Texture).Content())
	gen := first.Generation()
	first.Release()

	w.SetClearColor(renderer.ClearColor{R: 1, A: 1})
	w.RequestFrame()
	second := waitForGeneration(t, w, gen)
	defer second.Release()
	assert.Equal(t, renderer.ClearColor{R: 1, A: 1}, second.Handle().(*renderertest.Texture).Content())
}

func TestFrameEncoderDrawsIntoPass(t *testing.T) {
	backend := renderertest.NewBackend()
	encoded := make(chan time.Duration, 1)
	w := newTestWorker(t, backend, WithFrameEncoder(func(pass *surface.Pass, elapsed time.Duration) error {
		select {
		case encoded <- elapsed:
		default:
		}
		return pass.DrawLines(make([]byte, 48), 2)
	}))
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	w.RequestFrame()
	frame := waitForGeneration(t, w, 0)
	frame.Release()

	select {
	case <-encoded:
	case <-time.After(time.Second):
		t.Fatal("frame encoder never ran")
	}
}

func TestFrameSkippedWhenAllSurfacesRetained(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend, WithSurfaceCount(2))
	require.NoError(t, w.Start())

	w.RequestFrame()
	first := waitForGeneration(t, w, 0)

	w.RequestFrame()
	second := waitForGeneration(t, w, first.Generation())

	// Both surfaces are now retained: one by this test, one by the channel
	// plus this test. The next frame has nowhere to render.
	w.RequestFrame()
	require.Eventually(t, func() bool {
		return w.Skipped() >= 1
	}, time.Second, 2*time.Millisecond, "exhausted pool should drop the frame")

	skippedGen := w.Channel().Generation()
	assert.Equal(t, second.Generation(), skippedGen, "dropped frame publishes nothing")

	// Releasing a retained frame returns its surface and rendering resumes.
	first.Release()
	w.RequestFrame()
	third := waitForGeneration(t, w, skippedGen)
	third.Release()
	second.Release()

	w.Stop()
	w.Join()
	assert.Equal(t, StateTerminated, w.State())
	assert.NoError(t, w.Err())
	assert.Zero(t, backend.LiveTextures())
}

func TestResizeSwapsSurfaces(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	w.Resize(512, 512)
	frame := waitForGeneration(t, w, 0)
	defer frame.Release()

	assert.Equal(t, uint32(512), frame.Handle().Width())
	assert.Equal(t, uint32(512), frame.Handle().Height())
	assert.Equal(t, 3, backend.LiveTextures(), "swap destroys the stale surface")
}

func TestResizeFailureKeepsOldSurface(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	backend.FailAllocationsWith(renderer.ErrAllocationFailed)
	w.Resize(1024, 1024)
	frame := waitForGeneration(t, w, 0)

	assert.Equal(t, uint32(256), frame.Handle().Width(), "frame rendered at the stale size")
	frame.Release()
	backend.FailAllocationsWith(nil)
}

func TestResizeIgnoresZeroDimensions(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)

	w.Resize(0, 512)
	w.Resize(512, 0)

	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	w.RequestFrame()
	frame := waitForGeneration(t, w, 0)
	defer frame.Release()
	assert.Equal(t, uint32(256), frame.Handle().Width())
}

func TestOnDemandModeRendersOnlyOnRequest(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend)
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, w.Published(), "no frames without a request")

	w.RequestFrame()
	frame := waitForGeneration(t, w, 0)
	frame.Release()
}

func TestContinuousModePublishesRepeatedly(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend, WithFrameInterval(time.Millisecond))
	require.NoError(t, w.Start())
	defer func() {
		w.Stop()
		w.Join()
	}()

	require.Eventually(t, func() bool {
		return w.Channel().Generation() >= 3
	}, time.Second, 2*time.Millisecond, "ticker should keep producing frames")
}

// panickingAllocBackend panics on texture creation, standing in for a device
// layer that faults during initialization.
type panickingAllocBackend struct {
	*renderertest.Backend
}

func (b *panickingAllocBackend) CreateColorTarget(label string, width, height uint32) (renderer.Texture, error) {
	panic("device fault: " + label)
}

func TestStartReturnsErrorWhenInitPanics(t *testing.T) {
	backend := &panickingAllocBackend{Backend: renderertest.NewBackend()}
	w := newTestWorker(t, backend)

	done := make(chan error, 1)
	go func() {
		done <- w.Start()
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, renderer.ErrInitializationFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned after an initialization panic")
	}

	assert.Equal(t, StateTerminated, w.State())
	assert.Error(t, w.Err())
}

func TestEncoderPanicSkipsFrame(t *testing.T) {
	backend := renderertest.NewBackend()
	calls := 0
	w := newTestWorker(t, backend, WithFrameEncoder(func(pass *surface.Pass, elapsed time.Duration) error {
		calls++
		if calls == 1 {
			panic("bad frame content")
		}
		return pass.DrawLines(make([]byte, 48), 2)
	}))
	require.NoError(t, w.Start())

	w.RequestFrame()
	require.Eventually(t, func() bool {
		return w.Skipped() >= 1
	}, time.Second, 2*time.Millisecond, "panicking encoder should cost exactly its frame")
	assert.Equal(t, StateRunning, w.State(), "worker survives the encoder panic")

	w.RequestFrame()
	frame := waitForGeneration(t, w, 0)
	frame.Release()

	w.Stop()
	w.Join()
	assert.NoError(t, w.Err())
	assert.Zero(t, backend.LiveTextures())
}

// panicOnPassBackend panics when a render pass is opened, standing in for a
// device fault after the worker is already running.
type panicOnPassBackend struct {
	*renderertest.Backend
}

func (b *panicOnPassBackend) BeginPass(color, depth renderer.Texture, clear renderer.ClearColor) (renderer.Pass, error) {
	panic("device lost")
}

func TestRenderLoopPanicStillTearsDown(t *testing.T) {
	backend := &panicOnPassBackend{Backend: renderertest.NewBackend()}
	w := newTestWorker(t, backend, WithSurfaceCount(2))
	require.NoError(t, w.Start())

	w.RequestFrame()

	joined := make(chan struct{})
	go func() {
		w.Join()
		close(joined)
	}()

	// The panic in the render loop must still run teardown, so Join returns
	// without Stop ever being called. The surface checked out when the pass
	// panicked is reported, not waited on forever.
	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never terminated after a render loop panic")
	}

	assert.Equal(t, StateTerminated, w.State())
	require.Error(t, w.Err())
	assert.Contains(t, w.Err().Error(), "panic")

	_, ok := w.Channel().Latest()
	assert.False(t, ok, "teardown unpublishes the channel")
}

func TestTeardownReportsRetainedSurfaces(t *testing.T) {
	backend := renderertest.NewBackend()
	w := newTestWorker(t, backend, WithSurfaceCount(2))
	require.NoError(t, w.Start())

	w.RequestFrame()
	frame := waitForGeneration(t, w, 0)

	// The presentation side never releases its handle. Teardown waits out its
	// collection deadline and reports the leak instead of hanging forever.
	w.Stop()
	w.Join()

	assert.Equal(t, StateTerminated, w.State())
	assert.Error(t, w.Err())

	frame.Release()
}
