// Package geometry maps display cursor positions to world-space scope
// measurements. Everything here is pure computation over camera matrices; no
// GPU state, no shared mutable state, safe from any goroutine.
package geometry

import (
	"errors"
	"fmt"
	"sync"

	"scopeview/common"

	"github.com/chewxy/math32"
)

// ErrDegenerateTransform indicates the combined projection/view transform was
// singular, or the cursor ray never crosses the scope plane. The caller gets
// no measurement for that input; nothing NaN-laden is ever returned.
var ErrDegenerateTransform = errors.New("geometry: degenerate transform")

// Measurement is one resolved cursor reading: the world point where the
// cursor ray crosses the scope plane, its distance from the reference
// position in the configured unit, and its bearing from the reference.
type Measurement struct {
	World   [3]float32
	Range   float32
	Azimuth float32
}

// Resolve maps a screen coordinate to the world point where the cursor ray
// crosses the scope plane (z = 0).
//
// The screen coordinate is converted to normalized device coordinates with
// the Y axis flipped to match the graphics API convention, unprojected at the
// near and far planes through the inverse of projection*view, and the
// resulting ray is intersected with the plane.
//
// Parameters:
//   - screenX, screenY: cursor position in pixels, origin top-left
//   - viewportWidth, viewportHeight: viewport size in pixels
//   - projection: column-major projection matrix (16 elements)
//   - view: column-major view matrix (16 elements)
//
// Returns:
//   - [3]float32: the resolved world point
//   - error: ErrDegenerateTransform when projection*view is singular or the
//     ray is parallel to the scope plane
func Resolve(screenX, screenY, viewportWidth, viewportHeight float32, projection, view []float32) ([3]float32, error) {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return [3]float32{}, fmt.Errorf("%w: viewport %gx%g", ErrDegenerateTransform, viewportWidth, viewportHeight)
	}

	ndcX := screenX/viewportWidth*2 - 1
	ndcY := 1 - screenY/viewportHeight*2

	var combined, inverse [16]float32
	common.Mul4(combined[:], projection, view)
	if !common.Invert4(inverse[:], combined[:]) {
		return [3]float32{}, fmt.Errorf("%w: projection*view is singular", ErrDegenerateTransform)
	}

	near, ok := unproject(inverse[:], ndcX, ndcY, 0)
	if !ok {
		return [3]float32{}, fmt.Errorf("%w: near plane at infinity", ErrDegenerateTransform)
	}
	far, ok := unproject(inverse[:], ndcX, ndcY, 1)
	if !ok {
		return [3]float32{}, fmt.Errorf("%w: far plane at infinity", ErrDegenerateTransform)
	}

	// Intersect the near→far ray with the z = 0 plane.
	dz := far[2] - near[2]
	if dz == 0 {
		return [3]float32{}, fmt.Errorf("%w: cursor ray parallel to scope plane", ErrDegenerateTransform)
	}
	t := -near[2] / dz

	return [3]float32{
		near[0] + t*(far[0]-near[0]),
		near[1] + t*(far[1]-near[1]),
		0,
	}, nil
}

// unproject maps one NDC point through the inverse transform and performs the
// perspective divide. Returns false when the homogeneous w is zero.
func unproject(inverse []float32, ndcX, ndcY, ndcZ float32) ([3]float32, bool) {
	h := common.Mul4Vec4(inverse, [4]float32{ndcX, ndcY, ndcZ, 1})
	if h[3] == 0 {
		return [3]float32{}, false
	}
	inv := 1 / h[3]
	return [3]float32{h[0] * inv, h[1] * inv, h[2] * inv}, true
}

// Range returns the Euclidean distance between the reference position and the
// world point, scaled by unitScale (1 for meters, 0.001 for kilometers).
//
// Parameters:
//   - reference: the reference position, usually the camera position
//   - world: the resolved world point
//   - unitScale: multiplier applied to the raw distance
//
// Returns:
//   - float32: the scaled distance
func Range(reference, world [3]float32, unitScale float32) float32 {
	dx := world[0] - reference[0]
	dy := world[1] - reference[1]
	dz := world[2] - reference[2]
	return math32.Sqrt(dx*dx+dy*dy+dz*dz) * unitScale
}

// Azimuth returns the bearing from the reference position to the world point
// in the horizontal plane, in degrees normalized to [0, 360). Zero points
// along +Y and the angle increases clockwise.
//
// Parameters:
//   - reference: the reference position
//   - world: the resolved world point
//
// Returns:
//   - float32: the bearing in degrees
func Azimuth(reference, world [3]float32) float32 {
	dx := world[0] - reference[0]
	dy := world[1] - reference[1]

	deg := math32.Atan2(dx, dy) * 180 / math32.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Resolver bundles viewport and unit configuration so interactive callers can
// turn a cursor position straight into a Measurement.
type Resolver interface {
	// Measure resolves a cursor position against the given camera matrices.
	//
	// Parameters:
	//   - screenX, screenY: cursor position in pixels, origin top-left
	//   - projection: column-major projection matrix (16 elements)
	//   - view: column-major view matrix (16 elements)
	//   - reference: the position ranges and bearings are measured from
	//
	// Returns:
	//   - Measurement: the resolved reading
	//   - error: ErrDegenerateTransform when the input cannot be resolved
	Measure(screenX, screenY float32, projection, view []float32, reference [3]float32) (Measurement, error)

	// SetViewport updates the viewport size used to normalize cursor
	// positions. Called by the host on window resize.
	//
	// Parameters:
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	SetViewport(width, height float32)
}

type resolverImpl struct {
	mu sync.Mutex

	viewportWidth  float32
	viewportHeight float32
	unitScale      float32
}

var _ Resolver = &resolverImpl{}

// NewResolver creates a resolver with a 800x600 viewport and distances
// reported in meters.
//
// Parameters:
//   - opts: optional builder options to apply
//
// Returns:
//   - Resolver: the resolver
func NewResolver(opts ...Option) Resolver {
	r := &resolverImpl{
		viewportWidth:  800,
		viewportHeight: 600,
		unitScale:      1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *resolverImpl) Measure(screenX, screenY float32, projection, view []float32, reference [3]float32) (Measurement, error) {
	r.mu.Lock()
	width := r.viewportWidth
	height := r.viewportHeight
	scale := r.unitScale
	r.mu.Unlock()

	world, err := Resolve(screenX, screenY, width, height, projection, view)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{
		World:   world,
		Range:   Range(reference, world, scale),
		Azimuth: Azimuth(reference, world),
	}, nil
}

func (r *resolverImpl) SetViewport(width, height float32) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewportWidth = width
	r.viewportHeight = height
}
