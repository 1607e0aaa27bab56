package surface

// config collects construction-time settings applied by Option functions.
type config struct {
	label     string
	withDepth bool
}

// Option is a functional option applied to a surface during construction via New.
type Option func(*config)

// WithLabel sets the debug label used for the surface's GPU resources.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - Option: a function that applies the label option to a surface
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}

// WithDepth attaches a depth target to the surface. Scope overlay geometry is
// drawn without depth testing, so the default is no depth attachment.
//
// Parameters:
//   - enabled: true to allocate a depth texture alongside the color texture
//
// Returns:
//   - Option: a function that applies the depth option to a surface
func WithDepth(enabled bool) Option {
	return func(c *config) {
		c.withDepth = enabled
	}
}
