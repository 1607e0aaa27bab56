package consumer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeview/engine/renderer"
	"scopeview/engine/renderer/handoff"
	"scopeview/engine/renderer/renderertest"
)

func publishFrame(t *testing.T, backend *renderertest.Backend, channel *handoff.Channel[renderer.Texture], clear renderer.ClearColor) renderer.Texture {
	t.Helper()
	tex, err := backend.CreateColorTarget("published frame", 256, 256)
	require.NoError(t, err)

	pass, err := backend.BeginPass(tex, nil, clear)
	require.NoError(t, err)
	require.NoError(t, pass.End())

	channel.Publish(tex, func() { tex.Release() })
	return tex
}

func TestRedrawWithoutFramePresentsClearOnly(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	grey := renderer.ClearColor{R: 0.2, G: 0.2, B: 0.2, A: 1}
	c := New(backend, channel, WithClearColor(grey))

	require.NoError(t, c.OnRedraw())

	record, ok := backend.LastComposite()
	require.True(t, ok)
	assert.Empty(t, record.FrameLabel, "no frame to composite")
	assert.Equal(t, grey, record.Clear)
	assert.Equal(t, uint64(1), c.Composited())
	assert.Zero(t, c.LastGeneration())
}

func TestRedrawCompositesLatestFrame(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	c := New(backend, channel)

	red := renderer.ClearColor{R: 1, A: 1}
	publishFrame(t, backend, channel, red)

	require.NoError(t, c.OnRedraw())

	record, ok := backend.LastComposite()
	require.True(t, ok)
	assert.Equal(t, "published frame", record.FrameLabel)
	assert.Equal(t, red, record.FrameClear, "composited content matches the rendered frame")
	assert.Equal(t, uint64(1), c.LastGeneration())
}

func TestRedrawRepeatsLatestFrame(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	c := New(backend, channel)

	publishFrame(t, backend, channel, renderer.ClearColor{B: 1, A: 1})

	require.NoError(t, c.OnRedraw())
	require.NoError(t, c.OnRedraw())

	assert.Equal(t, uint64(2), c.Composited())
	assert.Equal(t, uint64(1), c.LastGeneration(), "same frame composited twice")
	assert.Len(t, backend.Composites(), 2)
}

func TestRedrawPicksUpReplacementFrame(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	c := New(backend, channel)

	publishFrame(t, backend, channel, renderer.ClearColor{A: 1})
	require.NoError(t, c.OnRedraw())

	red := renderer.ClearColor{R: 1, A: 1}
	publishFrame(t, backend, channel, red)
	require.NoError(t, c.OnRedraw())

	record, _ := backend.LastComposite()
	assert.Equal(t, red, record.FrameClear)
	assert.Equal(t, uint64(2), c.LastGeneration())
}

func TestRedrawFailurePropagates(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	c := New(backend, channel)

	boom := errors.New("device lost")
	backend.FailCompositesWith(boom)

	err := c.OnRedraw()
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Composited())
}

func TestRedrawReleasesFrameOnFailure(t *testing.T) {
	backend := renderertest.NewBackend()
	channel := handoff.NewChannel[renderer.Texture]()
	c := New(backend, channel)

	publishFrame(t, backend, channel, renderer.ClearColor{A: 1})
	backend.FailCompositesWith(errors.New("device lost"))
	require.Error(t, c.OnRedraw())
	backend.FailCompositesWith(nil)

	// The failed redraw released its retain; clearing the channel retires the
	// frame and releases its texture.
	channel.Clear()
	assert.Zero(t, backend.LiveTextures())
}

func TestResizeConfiguresPresentSurface(t *testing.T) {
	backend := renderertest.NewBackend()
	c := New(backend, handoff.NewChannel[renderer.Texture]())

	c.Resize(1024, 768)
	width, height := backend.PresentSize()
	assert.Equal(t, 1024, width)
	assert.Equal(t, 768, height)

	c.Resize(0, 768)
	c.Resize(1024, -1)
	width, height = backend.PresentSize()
	assert.Equal(t, 1024, width, "degenerate sizes ignored")
	assert.Equal(t, 768, height)
}

func TestSetClearColor(t *testing.T) {
	backend := renderertest.NewBackend()
	c := New(backend, handoff.NewChannel[renderer.Texture]())

	assert.Equal(t, renderer.ClearColor{A: 1}, c.ClearColor())

	blue := renderer.ClearColor{B: 1, A: 1}
	c.SetClearColor(blue)
	assert.Equal(t, blue, c.ClearColor())

	require.NoError(t, c.OnRedraw())
	record, _ := backend.LastComposite()
	assert.Equal(t, blue, record.Clear)
}
