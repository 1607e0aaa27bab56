// Package consumer implements the presentation side of the render pipeline.
// The consumer runs on the display thread: on every redraw it takes the most
// recently published frame from the handoff channel, composites it into the
// window surface, and releases it. It never renders into a published frame
// and never blocks waiting for the worker to produce one.
package consumer

import (
	"sync"
	"sync/atomic"

	"scopeview/engine/renderer"
	"scopeview/engine/renderer/handoff"
)

// Consumer composites published frames into the window surface.
type Consumer interface {
	// OnRedraw composites the latest published frame into the window surface
	// and presents it. When no frame has ever been published, or the channel
	// was cleared, it presents a clear-only pass instead. Must be called from
	// the display thread.
	//
	// Returns:
	//   - error: when the composite pass failed
	OnRedraw() error

	// Resize reconfigures the presentation surface to the new pixel size.
	// Must be called from the display thread.
	//
	// Parameters:
	//   - width: new surface width in pixels
	//   - height: new surface height in pixels
	Resize(width, height int)

	// SetClearColor replaces the letterbox/background color used when
	// compositing. Safe to call from any goroutine.
	//
	// Parameters:
	//   - c: the new clear color
	SetClearColor(c renderer.ClearColor)

	// ClearColor returns the clear color in effect for the next composite.
	ClearColor() renderer.ClearColor

	// Composited returns the number of successful composites since creation.
	Composited() uint64

	// LastGeneration returns the publish sequence number of the most recently
	// composited frame, or zero when only clear passes have been presented.
	LastGeneration() uint64
}

type consumerImpl struct {
	mu sync.Mutex

	backend renderer.Backend
	channel *handoff.Channel[renderer.Texture]

	clear renderer.ClearColor

	composited     atomic.Uint64
	lastGeneration atomic.Uint64
}

var _ Consumer = &consumerImpl{}

// New creates a presentation consumer reading from the given handoff channel.
//
// Parameters:
//   - backend: the shared device backend owning the window surface
//   - channel: the handoff channel the render worker publishes to
//   - opts: optional builder options to apply
//
// Returns:
//   - Consumer: the consumer
func New(backend renderer.Backend, channel *handoff.Channel[renderer.Texture], opts ...Option) Consumer {
	c := &consumerImpl{
		backend: backend,
		channel: channel,
		clear:   renderer.ClearColor{A: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *consumerImpl) OnRedraw() error {
	clear := c.ClearColor()

	frame, ok := c.channel.Latest()
	if !ok {
		if err := c.backend.Composite(nil, clear); err != nil {
			return err
		}
		c.composited.Add(1)
		return nil
	}
	defer frame.Release()

	if err := c.backend.Composite(frame.Handle(), clear); err != nil {
		return err
	}
	c.composited.Add(1)
	c.lastGeneration.Store(frame.Generation())
	return nil
}

func (c *consumerImpl) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.backend.ConfigurePresent(width, height)
}

func (c *consumerImpl) SetClearColor(clear renderer.ClearColor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear = clear
}

func (c *consumerImpl) ClearColor() renderer.ClearColor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear
}

func (c *consumerImpl) Composited() uint64 {
	return c.composited.Load()
}

func (c *consumerImpl) LastGeneration() uint64 {
	return c.lastGeneration.Load()
}
