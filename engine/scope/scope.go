// Package scope builds the frame content of the radar scope display: range
// rings, bearing ticks, and a rotating sweep line, all emitted as line-list
// vertices in normalized device coordinates. The per-ring vertex work is
// fanned out across a reusable worker pool each frame.
package scope

import (
	"runtime"
	"sync"
	"time"

	"scopeview/common"
	"scopeview/engine/renderer"
	"scopeview/engine/renderer/surface"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"
)

// tickCount is the number of bearing ticks drawn around the outer ring, one
// every 10 degrees.
const tickCount = 36

// Scope produces one frame of scope content into an open surface pass.
type Scope interface {
	// Encode draws the scope content for the given elapsed time into the
	// pass. Implements the render worker's frame encoder contract.
	//
	// Parameters:
	//   - pass: the open offscreen pass to draw into
	//   - elapsed: time since the render worker started, drives the sweep angle
	//
	// Returns:
	//   - error: when the draw could not be encoded
	Encode(pass *surface.Pass, elapsed time.Duration) error

	// SweepAngle returns the sweep bearing in degrees for the given elapsed
	// time, normalized to [0, 360).
	//
	// Parameters:
	//   - elapsed: time since the render worker started
	//
	// Returns:
	//   - float32: the sweep bearing in degrees
	SweepAngle(elapsed time.Duration) float32
}

type scopeImpl struct {
	rings        int
	ringSegments int
	radius       float32
	sweepPeriod  time.Duration

	ringColor  [4]float32
	tickColor  [4]float32
	sweepColor [4]float32

	// vertexPool manages a bounded set of reusable goroutines for the
	// parallel per-ring vertex build each frame. Workers persist across
	// frames, avoiding per-frame goroutine spawn/teardown overhead.
	vertexPool worker.DynamicWorkerPool
}

var _ Scope = &scopeImpl{}

// New creates a scope with five range rings and a four second sweep period.
//
// Parameters:
//   - opts: optional builder options to apply
//
// Returns:
//   - Scope: the scope content builder
func New(opts ...Option) Scope {
	s := &scopeImpl{
		rings:        5,
		ringSegments: 128,
		radius:       0.9,
		sweepPeriod:  4 * time.Second,
		ringColor:    [4]float32{0, 0.5, 0, 1},
		tickColor:    [4]float32{0, 0.35, 0, 1},
		sweepColor:   [4]float32{0.2, 1, 0.2, 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.vertexPool = worker.NewDynamicWorkerPool(runtime.NumCPU(), 64, 1*time.Second)
	return s
}

func (s *scopeImpl) Encode(pass *surface.Pass, elapsed time.Duration) error {
	vertices := s.buildVertices(elapsed)
	return pass.DrawLines(common.SliceToBytes(vertices), uint32(len(vertices)))
}

func (s *scopeImpl) SweepAngle(elapsed time.Duration) float32 {
	turns := float32(elapsed.Seconds() / s.sweepPeriod.Seconds())
	deg := (turns - math32.Floor(turns)) * 360
	return deg
}

// buildVertices assembles the full line list for one frame. Rings are built
// in parallel on the vertex pool with a WaitGroup as the per-frame barrier,
// since pool.Wait-style draining is unsuitable for frame-rate workloads.
// Ticks and the sweep line are cheap and appended serially.
func (s *scopeImpl) buildVertices(elapsed time.Duration) []renderer.OverlayVertex {
	perRing := make([][]renderer.OverlayVertex, s.rings)

	var wg sync.WaitGroup
	for i := 0; i < s.rings; i++ {
		wg.Add(1)
		ring := i // capture for closure
		s.vertexPool.SubmitTask(worker.Task{
			ID: ring,
			Do: func() (any, error) {
				defer wg.Done()
				perRing[ring] = s.buildRing(ring)
				return nil, nil
			},
		})
	}
	wg.Wait()

	total := 0
	for _, ring := range perRing {
		total += len(ring)
	}
	vertices := make([]renderer.OverlayVertex, 0, total+tickCount*2+2)
	for _, ring := range perRing {
		vertices = append(vertices, ring...)
	}

	vertices = append(vertices, s.buildTicks()...)
	vertices = append(vertices, s.buildSweep(elapsed)...)
	return vertices
}

// buildRing emits one range ring as a closed loop of line segments.
func (s *scopeImpl) buildRing(index int) []renderer.OverlayVertex {
	r := s.radius * float32(index+1) / float32(s.rings)
	out := make([]renderer.OverlayVertex, 0, s.ringSegments*2)

	step := 2 * math32.Pi / float32(s.ringSegments)
	for seg := 0; seg < s.ringSegments; seg++ {
		a0 := float32(seg) * step
		a1 := float32(seg+1) * step
		out = append(out,
			s.vertex(r*math32.Cos(a0), r*math32.Sin(a0), s.ringColor),
			s.vertex(r*math32.Cos(a1), r*math32.Sin(a1), s.ringColor),
		)
	}
	return out
}

// buildTicks emits short bearing ticks just outside the outer ring.
func (s *scopeImpl) buildTicks() []renderer.OverlayVertex {
	out := make([]renderer.OverlayVertex, 0, tickCount*2)
	inner := s.radius
	outer := s.radius * 1.05

	for i := 0; i < tickCount; i++ {
		a := 2 * math32.Pi * float32(i) / float32(tickCount)
		cos, sin := math32.Cos(a), math32.Sin(a)
		out = append(out,
			s.vertex(inner*cos, inner*sin, s.tickColor),
			s.vertex(outer*cos, outer*sin, s.tickColor),
		)
	}
	return out
}

// buildSweep emits the rotating sweep line from center to the outer ring.
// Bearing zero points up and the sweep rotates clockwise.
func (s *scopeImpl) buildSweep(elapsed time.Duration) []renderer.OverlayVertex {
	deg := s.SweepAngle(elapsed)
	rad := deg * math32.Pi / 180

	x := s.radius * math32.Sin(rad)
	y := s.radius * math32.Cos(rad)
	return []renderer.OverlayVertex{
		s.vertex(0, 0, s.sweepColor),
		s.vertex(x, y, s.sweepColor),
	}
}

func (s *scopeImpl) vertex(x, y float32, color [4]float32) renderer.OverlayVertex {
	return renderer.OverlayVertex{
		X: x, Y: y,
		R: color[0], G: color[1], B: color[2], A: color[3],
	}
}
