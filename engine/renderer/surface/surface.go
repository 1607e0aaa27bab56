package surface

import (
	"fmt"
	"sync"

	"scopeview/engine/renderer"
)

// Surface is an offscreen render target owned by the production context. It
// pairs a sampleable color texture with an optional depth texture and guards
// the bind-draw-unbind cycle: drawing only happens through the Pass returned
// by BindAsTarget, and a surface cannot be bound twice concurrently.
type Surface interface {
	// BindAsTarget opens a render pass targeting this surface's color texture,
	// clearing it to the given color. The returned Pass must be ended exactly
	// once; End restores the surface to its unbound state.
	//
	// Parameters:
	//   - clear: the color the pass clears the target to before drawing
	//
	// Returns:
	//   - *Pass: the open pass scope
	//   - error: when the surface is destroyed or already bound
	BindAsTarget(clear renderer.ClearColor) (*Pass, error)

	// ColorHandle returns the sampleable color texture backing this surface.
	// The handle is what gets published to the presentation context; it stays
	// valid until Destroy.
	ColorHandle() renderer.Texture

	// Width returns the surface width in texels.
	Width() uint32

	// Height returns the surface height in texels.
	Height() uint32

	// Destroy releases the GPU textures. Idempotent. Must only be called once
	// no published handle to this surface remains retained.
	Destroy()
}

type surfaceImpl struct {
	mu sync.Mutex

	backend renderer.Backend
	label   string
	width   uint32
	height  uint32

	color renderer.Texture
	depth renderer.Texture

	bound     bool
	destroyed bool
}

var _ Surface = &surfaceImpl{}

// New allocates an offscreen surface on the given backend.
//
// Parameters:
//   - backend: the shared device backend to allocate on
//   - width: surface width in texels
//   - height: surface height in texels
//   - opts: optional builder options to apply
//
// Returns:
//   - Surface: the allocated surface
//   - error: renderer.ErrAllocationFailed wrapping the cause when the backing
//     textures could not be created
func New(backend renderer.Backend, width, height uint32, opts ...Option) (Surface, error) {
	s := &surfaceImpl{
		backend: backend,
		label:   "Offscreen Surface",
		width:   width,
		height:  height,
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.label != "" {
		s.label = cfg.label
	}

	color, err := backend.CreateColorTarget(s.label+" Color", width, height)
	if err != nil {
		return nil, err
	}
	s.color = color

	if cfg.withDepth {
		depth, err := backend.CreateDepthTarget(s.label+" Depth", width, height)
		if err != nil {
			color.Release()
			return nil, err
		}
		s.depth = depth
	}

	return s, nil
}

func (s *surfaceImpl) BindAsTarget(clear renderer.ClearColor) (*Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, fmt.Errorf("%s: bind on destroyed surface", s.label)
	}
	if s.bound {
		return nil, fmt.Errorf("%s: already bound as target", s.label)
	}

	pass, err := s.backend.BeginPass(s.color, s.depth, clear)
	if err != nil {
		return nil, err
	}

	s.bound = true
	return &Pass{surface: s, pass: pass}, nil
}

func (s *surfaceImpl) ColorHandle() renderer.Texture {
	return s.color
}

func (s *surfaceImpl) Width() uint32 {
	return s.width
}

func (s *surfaceImpl) Height() uint32 {
	return s.height
}

func (s *surfaceImpl) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.destroyed = true

	if s.color != nil {
		s.color.Release()
	}
	if s.depth != nil {
		s.depth.Release()
	}
}

// unbind is called by Pass.End to restore the surface to its unbound state.
func (s *surfaceImpl) unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = false
}

// Pass is the scope of one bind-draw-unbind cycle on a Surface. It wraps the
// backend pass and guarantees the surface is unbound exactly once.
type Pass struct {
	surface *surfaceImpl
	pass    renderer.Pass
	ended   bool
}

// DrawLines queues a line-list draw of overlay vertices into the bound surface.
//
// Parameters:
//   - vertexData: raw bytes of a []renderer.OverlayVertex slice
//   - vertexCount: number of vertices to draw
//
// Returns:
//   - error: when the pass has already ended or the draw could not be encoded
func (p *Pass) DrawLines(vertexData []byte, vertexCount uint32) error {
	if p.ended {
		return fmt.Errorf("%s: draw after pass end", p.surface.label)
	}
	return p.pass.DrawLines(vertexData, vertexCount)
}

// Encoder returns the backend-specific pass encoder for callers that draw
// directly. May be nil for test backends.
func (p *Pass) Encoder() any {
	return p.pass.Encoder()
}

// End submits the pass, waits for the GPU to complete the work, and unbinds
// the surface. Idempotent after the first call. A surface handle is safe to
// publish only after End returns nil.
func (p *Pass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true

	err := p.pass.End()
	p.surface.unbind()
	return err
}
