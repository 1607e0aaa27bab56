package consumer

import (
	"scopeview/engine/renderer"
)

// Option is a functional option applied to a consumer during construction via New.
type Option func(*consumerImpl)

// WithClearColor sets the initial letterbox/background color used when
// compositing. The default is opaque black.
//
// Parameters:
//   - c: the initial clear color
//
// Returns:
//   - Option: a function that applies the clear color option to a consumer
func WithClearColor(c renderer.ClearColor) Option {
	return func(cons *consumerImpl) {
		cons.clear = c
	}
}
