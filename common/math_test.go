package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const tol = 1e-5

func assertVec4Near(t *testing.T, want, got [4]float32) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol, "component %d", i)
	}
}

func TestIdentity(t *testing.T) {
	m := make([]float32, 16)
	for i := range m {
		m[i] = float32(i)
	}
	Identity(m)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := float32(0)
			if i == j {
				want = 1
			}
			assert.Equal(t, want, m[i*4+j])
		}
	}
}

func TestMul4Identity(t *testing.T) {
	id := make([]float32, 16)
	Identity(id)

	m := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	out := make([]float32, 16)

	Mul4(out, id, m)
	assert.Equal(t, m, out)

	Mul4(out, m, id)
	assert.Equal(t, m, out)
}

func TestMul4Vec4(t *testing.T) {
	id := make([]float32, 16)
	Identity(id)
	v := [4]float32{1, 2, 3, 1}
	assert.Equal(t, v, Mul4Vec4(id, v))

	// Column-major translation by (10, 20, 30).
	translate := make([]float32, 16)
	Identity(translate)
	translate[12], translate[13], translate[14] = 10, 20, 30

	got := Mul4Vec4(translate, v)
	assertVec4Near(t, [4]float32{11, 22, 33, 1}, got)
}

func TestInvert4RoundTrip(t *testing.T) {
	proj := make([]float32, 16)
	view := make([]float32, 16)
	combined := make([]float32, 16)
	inverse := make([]float32, 16)
	product := make([]float32, 16)

	Perspective(proj, math32.Pi/4, 1.5, 0.1, 100)
	LookAt(view, 3, 4, 5, 0, 0, 0, 0, 1, 0)
	Mul4(combined, proj, view)

	assert.True(t, Invert4(inverse, combined))
	Mul4(product, combined, inverse)

	id := make([]float32, 16)
	Identity(id)
	for i := range id {
		assert.InDelta(t, id[i], product[i], 1e-4, "element %d", i)
	}
}

func TestInvert4Singular(t *testing.T) {
	singular := make([]float32, 16) // all zeros
	out := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	before := make([]float32, 16)
	copy(before, out)

	assert.False(t, Invert4(out, singular))
	assert.Equal(t, before, out, "output must be untouched on failure")
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := make([]float32, 16)
	Perspective(proj, math32.Pi/4, 1, 1, 10)

	// A point on the near plane maps to NDC depth 0, far plane to 1.
	near := Mul4Vec4(proj, [4]float32{0, 0, -1, 1})
	assert.InDelta(t, 0, near[2]/near[3], tol)

	far := Mul4Vec4(proj, [4]float32{0, 0, -10, 1})
	assert.InDelta(t, 1, far[2]/far[3], tol)
}

func TestLookAtTransformsEyeToOrigin(t *testing.T) {
	view := make([]float32, 16)
	LookAt(view, 0, 0, 5, 0, 0, 0, 0, 1, 0)

	eye := Mul4Vec4(view, [4]float32{0, 0, 5, 1})
	assertVec4Near(t, [4]float32{0, 0, 0, 1}, eye)

	// The target sits straight ahead on the -Z axis at distance 5.
	target := Mul4Vec4(view, [4]float32{0, 0, 0, 1})
	assertVec4Near(t, [4]float32{0, 0, -5, 1}, target)
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes[float32](nil))

	data := []float32{1, 2}
	b := SliceToBytes(data)
	assert.Len(t, b, 8)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, "a", Coalesce("", "a", "b"))
}
