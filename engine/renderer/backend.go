package renderer

import "errors"

// Sentinel errors for the production/presentation pipeline. Resource errors are
// handled at the component boundary that owns the resource and never cross a
// goroutine boundary as panics.
var (
	// ErrInitializationFailed indicates a graphics context or its first
	// offscreen surface could not be created. Fatal; surfaced to the owner
	// before the worker enters its running state.
	ErrInitializationFailed = errors.New("renderer: initialization failed")

	// ErrAllocationFailed indicates an offscreen surface could not be
	// (re)created. Recoverable mid-run; the worker keeps its previous surface
	// and retries on the next iteration.
	ErrAllocationFailed = errors.New("renderer: surface allocation failed")

	// ErrSyncViolation indicates a published frame was read before its GPU
	// work completed. This is a programming-invariant violation prevented by
	// the publish fence; only instrumented test backends ever return it.
	ErrSyncViolation = errors.New("renderer: frame read before GPU completion")

	// ErrNoPresentTarget indicates the backend was built without a window
	// surface and cannot composite to a display.
	ErrNoPresentTarget = errors.New("renderer: backend has no presentation surface")
)

// ClearColor is an RGBA clear value with components in [0, 1].
type ClearColor struct {
	R, G, B, A float64
}

// OverlayVertex is the CPU-side layout of one scope overlay vertex:
// position in normalized device coordinates plus an RGBA color.
// Must match the vertex buffer layout of the overlay line pipeline.
type OverlayVertex struct {
	X, Y       float32
	R, G, B, A float32
}

// Texture is an opaque handle to a GPU texture created by a Backend.
// Handles created against the same Backend are valid in both the production
// and presentation contexts (they share one GPU device).
type Texture interface {
	// Label returns the debug label the texture was created with.
	Label() string

	// Width returns the texture width in texels.
	Width() uint32

	// Height returns the texture height in texels.
	Height() uint32

	// Release destroys the underlying GPU texture. Idempotent. Must be called
	// from the thread owning the context that created the texture.
	Release()
}

// Pass is an open render pass targeting an offscreen color attachment.
// All drawing into a surface happens through a Pass; a Pass is obtained from
// Backend.BeginPass and must be closed exactly once with End.
type Pass interface {
	// DrawLines queues a line-list draw of vertexCount vertices laid out as
	// OverlayVertex. vertexData is the raw byte view of the vertex slice
	// (see common.SliceToBytes). Must be called before End.
	DrawLines(vertexData []byte, vertexCount uint32) error

	// Encoder returns the backend-specific pass encoder (for the WebGPU
	// backend, a *wgpu.RenderPassEncoder). Callers that draw through it must
	// type-assert; test backends may return nil.
	Encoder() any

	// End closes the pass, submits the recorded commands to the GPU queue,
	// and blocks until the device signals completion of the submitted work.
	// The completion wait is the publish barrier: a surface handle may only
	// be published after End returns nil. Calling End more than once is a
	// no-op after the first call.
	End() error
}

// Backend abstracts the GPU device shared by the render worker and the
// presentation consumer. There is one Backend per GPU device (the sharing
// group); texture handles it creates are valid in both execution contexts.
// Implementations must be safe for concurrent use from both contexts, but
// each context submits only its own passes.
type Backend interface {
	// CreateColorTarget creates a sampleable color render target.
	CreateColorTarget(label string, width, height uint32) (Texture, error)

	// CreateDepthTarget creates a depth/stencil render target.
	CreateDepthTarget(label string, width, height uint32) (Texture, error)

	// BeginPass starts an offscreen render pass that clears color (and depth,
	// when non-nil) and returns the open Pass. The caller owns the Pass and
	// must End it on the same thread.
	BeginPass(color, depth Texture, clear ClearColor) (Pass, error)

	// ConfigurePresent (re)configures the window presentation surface to the
	// given pixel size. Called from the display thread on startup and resize.
	ConfigurePresent(width, height int)

	// Composite draws one full-viewport textured-quad pass sampling frame
	// into the window surface and presents it. A nil frame presents a
	// clear-only pass. The frame is sampled read-only; it is never bound as
	// a render target. Called only from the display thread.
	Composite(frame Texture, clear ClearColor) error

	// Release destroys the device and all cached pipeline state. Must be
	// called only after both contexts have stopped submitting work and all
	// textures created by this backend have been released.
	Release()
}
