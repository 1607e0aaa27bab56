package engine

import (
	"log"
	"sync"

	"scopeview/engine/camera"
	"scopeview/engine/geometry"
	"scopeview/engine/profiler"
	"scopeview/engine/renderer"
	"scopeview/engine/renderer/consumer"
	"scopeview/engine/renderer/handoff"
	"scopeview/engine/renderer/worker"
	"scopeview/engine/scope"
	"scopeview/engine/window"
)

// engine implements the Engine interface. It owns the window and the shared
// device backend, and coordinates the two execution contexts: the render
// worker on its own thread and the presentation consumer on the display
// thread. Shutdown ordering is strict: stop and join the worker first, then
// release the backend, then close the window.
type engine struct {
	window   window.Window
	backend  renderer.Backend
	channel  *handoff.Channel[renderer.Texture]
	worker   worker.Worker
	consumer consumer.Consumer
	camera   camera.Camera
	resolver geometry.Resolver
	content  scope.Scope

	profiler         *profiler.Profiler
	profilingEnabled bool

	quitChannel chan struct{}
	quitOnce    sync.Once
	closeOnce   sync.Once

	onMeasurement func(geometry.Measurement)
}

// Engine is the main entry point for the scope display. It wires the render
// worker, handoff channel, presentation consumer, camera, and geometry
// resolver together over one window.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Camera returns the engine's camera.
	//
	// Returns:
	//   - camera.Camera: the camera instance
	Camera() camera.Camera

	// Worker returns the background render worker.
	//
	// Returns:
	//   - worker.Worker: the render worker
	Worker() worker.Worker

	// Consumer returns the presentation consumer.
	//
	// Returns:
	//   - consumer.Consumer: the presentation consumer
	Consumer() consumer.Consumer

	// Resolver returns the geometry resolver used for cursor measurements.
	//
	// Returns:
	//   - geometry.Resolver: the resolver
	Resolver() geometry.Resolver

	// SetMeasurementCallback registers the function called with each resolved
	// cursor measurement. When nil, measurements are logged instead.
	//
	// Parameters:
	//   - callback: function receiving the resolved measurement
	SetMeasurementCallback(callback func(geometry.Measurement))

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Run starts the render worker, wires the display callbacks, and blocks
	// in the window message loop until the window closes or Quit is called.
	// The worker's initialization failure is returned synchronously before
	// any frame is presented.
	//
	// Returns:
	//   - error: renderer.ErrInitializationFailed wrapping the cause, or nil
	Run() error

	// Quit requests shutdown. Safe to call from any goroutine and more than
	// once; the display loop observes the request and tears down in order.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates the full scope display over a window. The window, camera,
// scope content, and worker settings are all overridable through options.
//
// Parameters:
//   - options: functional options to configure the engine
//
// Returns:
//   - Engine: the configured engine, not yet running
//   - error: when the window or the shared device could not be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		channel:     handoff.NewChannel[renderer.Texture](),
		profiler:    profiler.NewProfiler(),
		quitChannel: make(chan struct{}),
	}
	cfg := &engineConfig{}
	for _, opt := range options {
		opt(e, cfg)
	}

	if e.window == nil {
		w, err := window.NewWindow(cfg.windowOptions...)
		if err != nil {
			return nil, err
		}
		e.window = w
	}

	if e.backend == nil {
		backend, err := renderer.NewBackend(e.window.SurfaceDescriptor(), cfg.backendOptions...)
		if err != nil {
			return nil, err
		}
		e.backend = backend
	}

	width := e.window.Width()
	height := e.window.Height()
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}

	if e.camera == nil {
		e.camera = camera.NewCamera(camera.WithAspect(aspect))
	} else {
		e.camera.SetAspect(aspect)
	}

	if e.resolver == nil {
		resolverOpts := append([]geometry.Option{
			geometry.WithViewport(float32(width), float32(height)),
		}, cfg.resolverOptions...)
		e.resolver = geometry.NewResolver(resolverOpts...)
	}

	if e.content == nil {
		e.content = scope.New(cfg.scopeOptions...)
	}

	workerOpts := append([]worker.Option{
		worker.WithSize(uint32(width), uint32(height)),
		worker.WithFrameEncoder(e.content.Encode),
	}, cfg.workerOptions...)
	e.worker = worker.New(e.backend, e.channel, workerOpts...)

	e.consumer = consumer.New(e.backend, e.channel, cfg.consumerOptions...)

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Worker() worker.Worker {
	return e.worker
}

func (e *engine) Consumer() consumer.Consumer {
	return e.consumer
}

func (e *engine) Resolver() geometry.Resolver {
	return e.resolver
}

func (e *engine) SetMeasurementCallback(callback func(geometry.Measurement)) {
	e.onMeasurement = callback
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) Run() error {
	e.consumer.Resize(e.window.Width(), e.window.Height())

	if err := e.worker.Start(); err != nil {
		return err
	}

	e.wireCallbacks()
	e.window.ProcessMessages()

	// Shutdown ordering: the display loop has exited, so no more composites
	// are issued. Stop and join the worker before releasing anything its
	// context still references, then tear down the shared device.
	e.worker.Stop()
	e.worker.Join()
	e.backend.Release()
	e.closeWindow()

	return nil
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// closeWindow destroys the platform window exactly once.
func (e *engine) closeWindow() {
	e.closeOnce.Do(func() {
		if err := e.window.Close(); err != nil {
			log.Printf("engine: closing window: %v", err)
		}
	})
}

// wireCallbacks attaches the display-thread handlers. All of them run on the
// thread executing ProcessMessages.
func (e *engine) wireCallbacks() {
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.closeWindow()
			return
		default:
		}

		if err := e.consumer.OnRedraw(); err != nil {
			log.Printf("engine: redraw failed: %v", err)
		}
		if e.profilingEnabled {
			e.profiler.Tick(e.worker.Published(), e.worker.Skipped())
		}
	})

	e.window.SetResizeCallback(func(width, height int) {
		e.consumer.Resize(width, height)
		e.worker.Resize(uint32(width), uint32(height))
		e.resolver.SetViewport(float32(width), float32(height))
		if height > 0 {
			e.camera.SetAspect(float32(width) / float32(height))
		}
	})

	e.window.SetLeftMouseDownCallback(func(x, y int32) {
		e.measure(float32(x), float32(y))
	})

	e.window.SetScrollCallback(func(delta float32) {
		factor := 1 - delta*0.1
		if factor < 0.1 {
			factor = 0.1
		}
		pos := e.camera.Position()
		e.camera.SetPosition(pos[0]*factor, pos[1]*factor, pos[2]*factor)
	})
}

// measure resolves a cursor position against the current camera snapshot and
// reports the reading. A degenerate transform drops the reading; it never
// stops the display loop.
func (e *engine) measure(x, y float32) {
	snap := e.camera.Snapshot()
	m, err := e.resolver.Measure(x, y, snap.Projection[:], snap.View[:], snap.Position)
	if err != nil {
		log.Printf("engine: measurement dropped: %v", err)
		return
	}

	if e.onMeasurement != nil {
		e.onMeasurement(m)
		return
	}
	log.Printf("engine: range %.3f bearing %.1f at (%.2f, %.2f, %.2f)",
		m.Range, m.Azimuth, m.World[0], m.World[1], m.World[2])
}
