package engine

import (
	"scopeview/engine/camera"
	"scopeview/engine/geometry"
	"scopeview/engine/renderer"
	"scopeview/engine/renderer/consumer"
	"scopeview/engine/renderer/worker"
	"scopeview/engine/scope"
	"scopeview/engine/window"
)

// engineConfig collects option sets forwarded to the engine's sub-components
// during construction.
type engineConfig struct {
	windowOptions   []window.WindowBuilderOption
	backendOptions  []renderer.BackendOption
	workerOptions   []worker.Option
	consumerOptions []consumer.Option
	resolverOptions []geometry.Option
	scopeOptions    []scope.Option
}

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options.
type EngineBuilderOption func(*engine, *engineConfig)

// WithWindow sets a custom configured window for the engine to use rather
// than allowing the engine to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.window = w
	}
}

// WithWindowOptions forwards options to the internally created window.
// Ignored when WithWindow supplies one.
//
// Parameters:
//   - options: window builder options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindowOptions(options ...window.WindowBuilderOption) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.windowOptions = append(cfg.windowOptions, options...)
	}
}

// WithBackend sets a custom device backend, primarily for tests that inject
// an instrumented one.
//
// Parameters:
//   - b: a pre-configured Backend instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(b renderer.Backend) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.backend = b
	}
}

// WithBackendOptions forwards options to the internally created backend.
// Ignored when WithBackend supplies one.
//
// Parameters:
//   - options: backend options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackendOptions(options ...renderer.BackendOption) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.backendOptions = append(cfg.backendOptions, options...)
	}
}

// WithCamera sets a pre-configured camera. The engine still adjusts its
// aspect ratio to the window on construction and resize.
//
// Parameters:
//   - c: a pre-configured Camera instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.camera = c
	}
}

// WithResolverOptions forwards options to the internally created geometry
// resolver, such as the range unit scale.
//
// Parameters:
//   - options: resolver options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithResolverOptions(options ...geometry.Option) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.resolverOptions = append(cfg.resolverOptions, options...)
	}
}

// WithScope sets a pre-configured scope content builder.
//
// Parameters:
//   - s: a pre-configured Scope instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScope(s scope.Scope) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.content = s
	}
}

// WithScopeOptions forwards options to the internally created scope content
// builder. Ignored when WithScope supplies one.
//
// Parameters:
//   - options: scope options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScopeOptions(options ...scope.Option) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.scopeOptions = append(cfg.scopeOptions, options...)
	}
}

// WithWorkerOptions forwards options to the render worker, such as the frame
// interval or surface count.
//
// Parameters:
//   - options: worker options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkerOptions(options ...worker.Option) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.workerOptions = append(cfg.workerOptions, options...)
	}
}

// WithConsumerOptions forwards options to the presentation consumer.
//
// Parameters:
//   - options: consumer options to forward
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConsumerOptions(options ...consumer.Option) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.consumerOptions = append(cfg.consumerOptions, options...)
	}
}

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.profilingEnabled = enabled
	}
}

// WithMeasurementCallback registers the function called with each resolved
// cursor measurement.
//
// Parameters:
//   - callback: function receiving the resolved measurement
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMeasurementCallback(callback func(geometry.Measurement)) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.onMeasurement = callback
	}
}
