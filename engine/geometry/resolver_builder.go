package geometry

// Option is a functional option applied to a resolver during construction via NewResolver.
type Option func(*resolverImpl)

// WithViewport sets the initial viewport size in pixels. The default is 800x600.
//
// Parameters:
//   - width: viewport width in pixels
//   - height: viewport height in pixels
//
// Returns:
//   - Option: a function that applies the viewport option to a resolver
func WithViewport(width, height float32) Option {
	return func(r *resolverImpl) {
		if width > 0 && height > 0 {
			r.viewportWidth = width
			r.viewportHeight = height
		}
	}
}

// WithUnitScale sets the multiplier applied to raw world-space distances when
// reporting ranges. The default of 1 reports meters; 0.001 reports kilometers.
//
// Parameters:
//   - scale: the distance multiplier
//
// Returns:
//   - Option: a function that applies the unit scale option to a resolver
func WithUnitScale(scale float32) Option {
	return func(r *resolverImpl) {
		if scale > 0 {
			r.unitScale = scale
		}
	}
}
