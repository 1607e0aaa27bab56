package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeview/common"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()

	assert.Equal(t, [3]float32{0, 0, 5}, c.Position())

	snap := c.Snapshot()
	// The default view transforms the eye to the origin of view space.
	eye := common.Mul4Vec4(snap.View[:], [4]float32{0, 0, 5, 1})
	assert.InDelta(t, 0, eye[0], 1e-5)
	assert.InDelta(t, 0, eye[1], 1e-5)
	assert.InDelta(t, 0, eye[2], 1e-5)
}

func TestSnapshotIsImmutable(t *testing.T) {
	c := NewCamera()

	before := c.Snapshot()
	c.SetPosition(1, 2, 3)
	after := c.Snapshot()

	assert.Equal(t, [3]float32{0, 0, 5}, before.Position, "earlier snapshot unaffected by later updates")
	assert.Equal(t, [3]float32{1, 2, 3}, after.Position)
	assert.NotEqual(t, before.View, after.View)
}

func TestSetPositionRecomputesView(t *testing.T) {
	c := NewCamera()
	c.SetPosition(0, 0, 10)

	snap := c.Snapshot()
	eye := common.Mul4Vec4(snap.View[:], [4]float32{0, 0, 10, 1})
	assert.InDelta(t, 0, eye[0], 1e-5)
	assert.InDelta(t, 0, eye[1], 1e-5)
	assert.InDelta(t, 0, eye[2], 1e-5)
}

func TestSetTargetRecomputesView(t *testing.T) {
	c := NewCamera()
	before := c.Snapshot()

	c.SetTarget(1, 0, 0)
	after := c.Snapshot()
	assert.NotEqual(t, before.View, after.View)
}

func TestSetAspectRecomputesProjection(t *testing.T) {
	c := NewCamera()
	before := c.Snapshot()

	c.SetAspect(16.0 / 9.0)
	after := c.Snapshot()
	assert.NotEqual(t, before.Projection, after.Projection)
	assert.Equal(t, before.View, after.View, "aspect only affects projection")

	c.SetAspect(0)
	assert.Equal(t, after.Projection, c.Snapshot().Projection, "non-positive aspect ignored")
}

func TestSetFovRecomputesProjection(t *testing.T) {
	c := NewCamera()
	before := c.Snapshot()

	c.SetFov(float32(60.0 * (math.Pi / 180.0)))
	after := c.Snapshot()
	assert.NotEqual(t, before.Projection, after.Projection)

	c.SetFov(-1)
	assert.Equal(t, after.Projection, c.Snapshot().Projection, "non-positive fov ignored")
}

func TestBuilderOptions(t *testing.T) {
	c := NewCamera(
		WithPosition(0, 5, 5),
		WithTarget(0, 0, 0),
		WithUp(0, 1, 0),
		WithFov(float32(30.0*(math.Pi/180.0))),
		WithAspect(2),
		WithClipPlanes(1, 50),
	)

	require.Equal(t, [3]float32{0, 5, 5}, c.Position())

	snap := c.Snapshot()
	eye := common.Mul4Vec4(snap.View[:], [4]float32{0, 5, 5, 1})
	assert.InDelta(t, 0, eye[0], 1e-5)
	assert.InDelta(t, 0, eye[1], 1e-5)
	assert.InDelta(t, 0, eye[2], 1e-5)

	// Near plane maps to depth 0, far plane to depth 1.
	near := common.Mul4Vec4(snap.Projection[:], [4]float32{0, 0, -1, 1})
	far := common.Mul4Vec4(snap.Projection[:], [4]float32{0, 0, -50, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-5)
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)
}
