package scope

import "time"

// Option is a functional option applied to a scope during construction via New.
type Option func(*scopeImpl)

// WithRings sets the number of concentric range rings. The default is five.
//
// Parameters:
//   - rings: the ring count, minimum one
//
// Returns:
//   - Option: a function that applies the ring count option to a scope
func WithRings(rings int) Option {
	return func(s *scopeImpl) {
		if rings >= 1 {
			s.rings = rings
		}
	}
}

// WithRingSegments sets how many line segments approximate each ring. The
// default is 128.
//
// Parameters:
//   - segments: segments per ring, minimum eight
//
// Returns:
//   - Option: a function that applies the segment count option to a scope
func WithRingSegments(segments int) Option {
	return func(s *scopeImpl) {
		if segments >= 8 {
			s.ringSegments = segments
		}
	}
}

// WithRadius sets the outer ring radius in normalized device coordinates.
// The default of 0.9 leaves a margin inside the viewport.
//
// Parameters:
//   - radius: the outer radius, in (0, 1]
//
// Returns:
//   - Option: a function that applies the radius option to a scope
func WithRadius(radius float32) Option {
	return func(s *scopeImpl) {
		if radius > 0 && radius <= 1 {
			s.radius = radius
		}
	}
}

// WithSweepPeriod sets how long one full sweep rotation takes. The default is
// four seconds.
//
// Parameters:
//   - period: the rotation period, must be positive
//
// Returns:
//   - Option: a function that applies the sweep period option to a scope
func WithSweepPeriod(period time.Duration) Option {
	return func(s *scopeImpl) {
		if period > 0 {
			s.sweepPeriod = period
		}
	}
}
