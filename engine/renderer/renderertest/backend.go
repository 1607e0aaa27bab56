// Package renderertest provides an instrumented in-memory Backend for
// exercising the render pipeline without a GPU. The fake tracks texture
// lifetimes, pass completion fences, and composite calls so tests can assert
// the synchronization and ownership invariants of the real pipeline.
package renderertest

import (
	"fmt"
	"sync"

	"scopeview/engine/renderer"
)

// CompositeRecord captures one Composite call observed by the fake backend.
type CompositeRecord struct {
	// FrameLabel is the label of the composited frame texture, or "" when the
	// call presented a clear-only pass.
	FrameLabel string

	// FrameClear is the clear color the composited frame was last rendered
	// with. Meaningful only when FrameLabel is non-empty. It stands in for
	// the frame's pixel content.
	FrameClear renderer.ClearColor

	// Clear is the presentation clear color passed to Composite.
	Clear renderer.ClearColor
}

// Backend is an in-memory renderer.Backend. Safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	allocErr     error
	allocErrOnce bool
	compositeErr error

	created  int
	released int

	composites []CompositeRecord

	presentWidth  int
	presentHeight int
	releasedAll   bool
}

var _ renderer.Backend = &Backend{}

// NewBackend creates an instrumented fake backend.
//
// Returns:
//   - *Backend: the fake backend
func NewBackend() *Backend {
	return &Backend{}
}

// FailNextAllocation makes the next texture creation fail with
// renderer.ErrAllocationFailed, then restores normal behavior.
func (b *Backend) FailNextAllocation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocErr = renderer.ErrAllocationFailed
	b.allocErrOnce = true
}

// FailAllocationsWith makes every texture creation fail with the given error
// until called again with nil.
//
// Parameters:
//   - err: the error to return from texture creation, or nil to restore
func (b *Backend) FailAllocationsWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocErr = err
	b.allocErrOnce = false
}

// FailCompositesWith makes every Composite call fail with the given error
// until called again with nil.
//
// Parameters:
//   - err: the error to return from Composite, or nil to restore
func (b *Backend) FailCompositesWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compositeErr = err
}

// LiveTextures returns the number of textures created and not yet released.
func (b *Backend) LiveTextures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created - b.released
}

// Composites returns a copy of all Composite calls observed so far.
func (b *Backend) Composites() []CompositeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CompositeRecord, len(b.composites))
	copy(out, b.composites)
	return out
}

// LastComposite returns the most recent Composite call.
//
// Returns:
//   - CompositeRecord: the most recent record
//   - bool: false when Composite has not been called
func (b *Backend) LastComposite() (CompositeRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.composites) == 0 {
		return CompositeRecord{}, false
	}
	return b.composites[len(b.composites)-1], true
}

// PresentSize returns the size last passed to ConfigurePresent.
func (b *Backend) PresentSize() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presentWidth, b.presentHeight
}

// ReleasedAll reports whether Release was called on the backend.
func (b *Backend) ReleasedAll() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releasedAll
}

func (b *Backend) CreateColorTarget(label string, width, height uint32) (renderer.Texture, error) {
	return b.createTexture(label, width, height)
}

func (b *Backend) CreateDepthTarget(label string, width, height uint32) (renderer.Texture, error) {
	return b.createTexture(label, width, height)
}

func (b *Backend) createTexture(label string, width, height uint32) (renderer.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocErr != nil {
		err := b.allocErr
		if b.allocErrOnce {
			b.allocErr = nil
			b.allocErrOnce = false
		}
		return nil, fmt.Errorf("%w: %s", err, label)
	}

	b.created++
	return &Texture{backend: b, label: label, width: width, height: height, fenced: true}, nil
}

func (b *Backend) BeginPass(color, depth renderer.Texture, clear renderer.ClearColor) (renderer.Pass, error) {
	tex, ok := color.(*Texture)
	if !ok {
		return nil, fmt.Errorf("begin pass: color target is not a fake texture")
	}

	tex.mu.Lock()
	defer tex.mu.Unlock()
	if tex.released {
		return nil, fmt.Errorf("begin pass: %s already released", tex.label)
	}
	// Work is now in flight; the texture must not be sampled until the pass
	// fence completes.
	tex.fenced = false
	tex.pendingClear = clear

	return &Pass{target: tex}, nil
}

func (b *Backend) ConfigurePresent(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentWidth = width
	b.presentHeight = height
}

func (b *Backend) Composite(frame renderer.Texture, clear renderer.ClearColor) error {
	b.mu.Lock()
	if b.compositeErr != nil {
		err := b.compositeErr
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	record := CompositeRecord{Clear: clear}
	if frame != nil {
		tex, ok := frame.(*Texture)
		if !ok {
			return fmt.Errorf("composite: frame is not a fake texture")
		}
		tex.mu.Lock()
		released := tex.released
		fenced := tex.fenced
		record.FrameLabel = tex.label
		record.FrameClear = tex.content
		tex.mu.Unlock()

		if released {
			return fmt.Errorf("composite: %s already released", record.FrameLabel)
		}
		if !fenced {
			return fmt.Errorf("%w: %s", renderer.ErrSyncViolation, record.FrameLabel)
		}
	}

	b.mu.Lock()
	b.composites = append(b.composites, record)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releasedAll = true
}

// Texture is a fake GPU texture. Its content is modeled as the clear color of
// the last completed pass that targeted it.
type Texture struct {
	backend *Backend
	label   string
	width   uint32
	height  uint32

	mu           sync.Mutex
	released     bool
	fenced       bool
	pendingClear renderer.ClearColor
	content      renderer.ClearColor
}

var _ renderer.Texture = &Texture{}

func (t *Texture) Label() string  { return t.label }
func (t *Texture) Width() uint32  { return t.width }
func (t *Texture) Height() uint32 { return t.height }

func (t *Texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true

	t.backend.mu.Lock()
	t.backend.released++
	t.backend.mu.Unlock()
}

// Content returns the texture's modeled pixel content.
func (t *Texture) Content() renderer.ClearColor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content
}

// Fenced reports whether all GPU work targeting this texture has completed.
func (t *Texture) Fenced() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fenced
}

// Pass is a fake render pass. End commits the pending clear color as the
// target's content and marks the fence complete.
type Pass struct {
	target *Texture

	mu        sync.Mutex
	drawCalls int
	vertices  uint32
	ended     bool
}

var _ renderer.Pass = &Pass{}

func (p *Pass) DrawLines(vertexData []byte, vertexCount uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended {
		return fmt.Errorf("draw lines: pass already ended")
	}
	p.drawCalls++
	p.vertices += vertexCount
	return nil
}

func (p *Pass) Encoder() any {
	return nil
}

func (p *Pass) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended {
		return nil
	}
	p.ended = true

	p.target.mu.Lock()
	p.target.content = p.target.pendingClear
	p.target.fenced = true
	p.target.mu.Unlock()
	return nil
}

// DrawCalls returns the number of DrawLines calls recorded on this pass.
func (p *Pass) DrawCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawCalls
}

// Vertices returns the total vertex count recorded on this pass.
func (p *Pass) Vertices() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vertices
}
