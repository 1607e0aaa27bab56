// Package worker implements the background render worker. The worker owns a
// private set of offscreen surfaces and a render loop pinned to its own OS
// thread; each iteration draws one frame, waits for the GPU to finish it, and
// publishes the surface handle through the handoff channel. The display side
// never drives this loop and the loop never touches the window surface.
package worker

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"scopeview/engine/renderer"
	"scopeview/engine/renderer/handoff"
	"scopeview/engine/renderer/surface"
)

// State is the lifecycle state of a render worker. Transitions are strictly
// forward: Created, ContextInitialized, Running, Stopping, Terminated.
type State int32

const (
	StateCreated State = iota
	StateContextInitialized
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateContextInitialized:
		return "context_initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// FrameEncoder draws one frame's content into an open surface pass. The
// elapsed duration is the time since the worker started rendering. Returning
// an error skips publication of the frame.
type FrameEncoder func(pass *surface.Pass, elapsed time.Duration) error

// collectTimeout bounds how long teardown waits for the presentation side to
// release retained frames before reporting leaked surfaces.
const collectTimeout = 2 * time.Second

// Worker is the background frame producer.
type Worker interface {
	// Start launches the render goroutine and blocks until its graphics
	// resources are initialized. Initialization failure is returned from
	// Start itself and the worker terminates without entering its loop.
	//
	// Returns:
	//   - error: renderer.ErrInitializationFailed wrapping the cause, or nil
	Start() error

	// Stop requests the render loop to exit. Idempotent and non-blocking;
	// pair with Join to wait for teardown to complete.
	Stop()

	// Join blocks until the worker has fully terminated and its surfaces are
	// destroyed or reported leaked.
	Join()

	// State returns the current lifecycle state.
	State() State

	// Err returns the terminal error recorded during the worker's lifetime,
	// or nil.
	Err() error

	// SetClearColor replaces the background color used for subsequent frames.
	// Safe to call from any goroutine; takes effect on the next frame.
	//
	// Parameters:
	//   - c: the new clear color
	SetClearColor(c renderer.ClearColor)

	// ClearColor returns the clear color in effect for the next frame.
	ClearColor() renderer.ClearColor

	// RequestFrame asks the worker to render one frame now. Coalesces: at
	// most one request is pending at a time. This is the only way frames are
	// produced when the worker was built without a frame interval.
	RequestFrame()

	// Resize requests that subsequent frames render at the new size. The
	// worker swaps each surface to the new size as it comes up for rendering;
	// a failed reallocation keeps the old surface and retries next frame.
	//
	// Parameters:
	//   - width: new frame width in texels
	//   - height: new frame height in texels
	Resize(width, height uint32)

	// Channel returns the handoff channel this worker publishes to.
	Channel() *handoff.Channel[renderer.Texture]

	// Published returns the number of frames published since Start.
	Published() uint64

	// Skipped returns the number of frames dropped since Start.
	Skipped() uint64
}

type workerImpl struct {
	mu sync.Mutex

	backend renderer.Backend
	channel *handoff.Channel[renderer.Texture]

	width  atomic.Uint32
	height atomic.Uint32

	surfaceCount  int
	frameInterval time.Duration
	encoder       FrameEncoder

	clear renderer.ClearColor
	err   error

	state        atomic.Int32
	quitChannel  chan struct{}
	quitOnce     sync.Once
	frameRequest chan struct{}
	wg           sync.WaitGroup

	free chan surface.Surface

	published atomic.Uint64
	skipped   atomic.Uint64
}

var _ Worker = &workerImpl{}

// New creates a render worker publishing to the given handoff channel. The
// worker does not allocate graphics resources until Start.
//
// Parameters:
//   - backend: the shared device backend to allocate surfaces on
//   - channel: the handoff channel to publish frame handles to
//   - opts: optional builder options to apply
//
// Returns:
//   - Worker: the worker, in the created state
func New(backend renderer.Backend, channel *handoff.Channel[renderer.Texture], opts ...Option) Worker {
	w := &workerImpl{
		backend:       backend,
		channel:       channel,
		surfaceCount:  3,
		frameInterval: time.Second / 30,
		clear:         renderer.ClearColor{A: 1},
		quitChannel:   make(chan struct{}),
		frameRequest:  make(chan struct{}, 1),
	}
	w.width.Store(800)
	w.height.Store(600)
	for _, opt := range opts {
		opt(w)
	}
	w.free = make(chan surface.Surface, w.surfaceCount)
	return w
}

func (w *workerImpl) Start() error {
	if State(w.state.Load()) != StateCreated {
		return fmt.Errorf("start: worker already started")
	}

	startErr := make(chan error, 1)
	w.wg.Add(1)
	go w.run(startErr)

	if err := <-startErr; err != nil {
		w.wg.Wait()
		return err
	}
	return nil
}

func (w *workerImpl) Stop() {
	w.quitOnce.Do(func() {
		close(w.quitChannel)
	})
}

func (w *workerImpl) Join() {
	w.wg.Wait()
}

func (w *workerImpl) State() State {
	return State(w.state.Load())
}

func (w *workerImpl) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *workerImpl) SetClearColor(c renderer.ClearColor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clear = c
}

func (w *workerImpl) ClearColor() renderer.ClearColor {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clear
}

func (w *workerImpl) RequestFrame() {
	select {
	case w.frameRequest <- struct{}{}:
	default:
	}
}

func (w *workerImpl) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	w.width.Store(width)
	w.height.Store(height)
	w.RequestFrame()
}

func (w *workerImpl) Channel() *handoff.Channel[renderer.Texture] {
	return w.channel
}

func (w *workerImpl) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// run is the render goroutine. It owns every surface bind and every pass
// submission; no other goroutine touches the worker's surfaces while they are
// outside the handoff channel.
func (w *workerImpl) run(startErr chan<- error) {
	runtime.LockOSThread()
	defer w.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the
	// whole process. Before the loop is entered the panic becomes Start's
	// synchronous error; after that, teardown still runs so surfaces are
	// collected and the stale frame is unpublished.
	started := false
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render worker recovered from panic: %v", r)
			w.setErr(fmt.Errorf("render worker panic: %v", r))
			if !started {
				w.state.Store(int32(StateTerminated))
				startErr <- fmt.Errorf("%w: render worker panic: %v", renderer.ErrInitializationFailed, r)
				return
			}
			w.teardown()
		}
	}()

	if err := w.initSurfaces(); err != nil {
		w.setErr(err)
		w.state.Store(int32(StateTerminated))
		startErr <- err
		return
	}

	w.state.Store(int32(StateContextInitialized))
	w.state.Store(int32(StateRunning))
	started = true
	startErr <- nil

	begin := time.Now()

	var tick <-chan time.Time
	if w.frameInterval > 0 {
		ticker := time.NewTicker(w.frameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-w.quitChannel:
			w.teardown()
			return
		case <-tick:
			w.renderFrame(time.Since(begin))
		case <-w.frameRequest:
			w.renderFrame(time.Since(begin))
		}
	}
}

// initSurfaces allocates the worker's surface pool. Any failure releases what
// was already allocated and maps to an initialization error, since the worker
// has not produced a frame yet.
func (w *workerImpl) initSurfaces() error {
	width := w.width.Load()
	height := w.height.Load()

	for i := 0; i < w.surfaceCount; i++ {
		s, err := surface.New(w.backend, width, height,
			surface.WithLabel(fmt.Sprintf("Scope Surface %d", i)))
		if err != nil {
			for len(w.free) > 0 {
				(<-w.free).Destroy()
			}
			return fmt.Errorf("%w: allocating surface %d: %v", renderer.ErrInitializationFailed, i, err)
		}
		w.free <- s
	}
	return nil
}

// renderFrame produces and publishes one frame. Failures skip the frame and
// leave the previously published frame current.
func (w *workerImpl) renderFrame(elapsed time.Duration) {
	var s surface.Surface
	select {
	case s = <-w.free:
	default:
		// Every surface is either published or retained by the presentation
		// side. Skip rather than stall; the consumer will catch up.
		w.skipped.Add(1)
		return
	}

	if replaced, ok := w.resizeSurface(s); ok {
		s = replaced
	}

	pass, err := s.BindAsTarget(w.ClearColor())
	if err != nil {
		log.Printf("render worker: bind failed, skipping frame: %v", err)
		w.skipped.Add(1)
		w.free <- s
		return
	}

	if w.encoder != nil {
		if encodeErr := w.encodeFrame(pass, elapsed); encodeErr != nil {
			log.Printf("render worker: frame encoder failed, skipping frame: %v", encodeErr)
			if endErr := pass.End(); endErr != nil {
				log.Printf("render worker: ending abandoned pass: %v", endErr)
			}
			w.skipped.Add(1)
			w.free <- s
			return
		}
	}

	// End waits for GPU completion. Publishing before this wait would hand
	// the presentation side a frame whose commands are still executing.
	if err := pass.End(); err != nil {
		log.Printf("render worker: frame submission failed, skipping frame: %v", err)
		w.skipped.Add(1)
		w.free <- s
		return
	}

	w.published.Add(1)
	w.channel.Publish(s.ColorHandle(), func() {
		w.free <- s
	})
}

// encodeFrame runs the host-supplied encoder, converting a panic into an
// error so a faulty encoder skips the frame instead of killing the worker
// with its surface checked out of the free ring.
func (w *workerImpl) encodeFrame(pass *surface.Pass, elapsed time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame encoder panic: %v", r)
		}
	}()
	return w.encoder(pass, elapsed)
}

// resizeSurface swaps the acquired surface for one matching the requested
// frame size. On reallocation failure the old surface is kept so the worker
// still produces frames at the stale size.
func (w *workerImpl) resizeSurface(s surface.Surface) (surface.Surface, bool) {
	width := w.width.Load()
	height := w.height.Load()
	if s.Width() == width && s.Height() == height {
		return nil, false
	}

	replacement, err := surface.New(w.backend, width, height,
		surface.WithLabel(fmt.Sprintf("Scope Surface %dx%d", width, height)))
	if err != nil {
		log.Printf("render worker: surface reallocation failed, keeping %dx%d: %v", s.Width(), s.Height(), err)
		return nil, false
	}

	s.Destroy()
	return replacement, true
}

// teardown unpublishes the current frame and destroys the surface pool once
// the presentation side has released every retained handle.
func (w *workerImpl) teardown() {
	w.state.Store(int32(StateStopping))

	w.channel.Clear()

	deadline := time.After(collectTimeout)
	collected := 0
	for collected < w.surfaceCount {
		select {
		case s := <-w.free:
			s.Destroy()
			collected++
		case <-deadline:
			leak := w.surfaceCount - collected
			log.Printf("render worker: %d surface(s) still retained at shutdown", leak)
			w.setErr(fmt.Errorf("shutdown: %d surface(s) not returned", leak))
			w.state.Store(int32(StateTerminated))
			return
		}
	}

	w.state.Store(int32(StateTerminated))
}

// Published returns the number of frames published since Start.
func (w *workerImpl) Published() uint64 {
	return w.published.Load()
}

// Skipped returns the number of frames dropped since Start.
func (w *workerImpl) Skipped() uint64 {
	return w.skipped.Load()
}
