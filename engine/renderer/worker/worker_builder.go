package worker

import (
	"time"

	"scopeview/engine/renderer"
)

// Option is a functional option applied to a worker during construction via New.
type Option func(*workerImpl)

// WithSize sets the initial frame size in texels. The default is 800x600.
//
// Parameters:
//   - width: initial frame width
//   - height: initial frame height
//
// Returns:
//   - Option: a function that applies the size option to a worker
func WithSize(width, height uint32) Option {
	return func(w *workerImpl) {
		if width > 0 && height > 0 {
			w.width.Store(width)
			w.height.Store(height)
		}
	}
}

// WithClearColor sets the initial frame background color. The default is
// opaque black.
//
// Parameters:
//   - c: the initial clear color
//
// Returns:
//   - Option: a function that applies the clear color option to a worker
func WithClearColor(c renderer.ClearColor) Option {
	return func(w *workerImpl) {
		w.clear = c
	}
}

// WithFrameInterval sets the period between continuously rendered frames.
// A non-positive interval disables the internal ticker entirely: frames are
// then produced only in response to RequestFrame. The default is one frame
// every 1/30th of a second.
//
// Parameters:
//   - interval: the frame period, or <= 0 for on-demand rendering
//
// Returns:
//   - Option: a function that applies the frame interval option to a worker
func WithFrameInterval(interval time.Duration) Option {
	return func(w *workerImpl) {
		w.frameInterval = interval
	}
}

// WithFrameEncoder sets the callback that draws each frame's content. Without
// an encoder the worker publishes clear-only frames.
//
// Parameters:
//   - encoder: the per-frame draw callback
//
// Returns:
//   - Option: a function that applies the encoder option to a worker
func WithFrameEncoder(encoder FrameEncoder) Option {
	return func(w *workerImpl) {
		w.encoder = encoder
	}
}

// WithSurfaceCount sets how many offscreen surfaces the worker rotates
// through. Three covers the steady state: one being rendered, one published,
// one retained by the presentation side. The minimum is two. The default is
// three.
//
// Parameters:
//   - count: the surface pool size
//
// Returns:
//   - Option: a function that applies the surface count option to a worker
func WithSurfaceCount(count int) Option {
	return func(w *workerImpl) {
		if count >= 2 {
			w.surfaceCount = count
		}
	}
}
