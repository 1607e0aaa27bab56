package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// backendConfig collects construction-time settings applied by BackendOption
// functions before the device is requested.
type backendConfig struct {
	forceFallbackAdapter bool
	presentMode          *wgpu.PresentMode
}

// BackendOption is a functional option applied to a backend during construction via NewBackend.
type BackendOption func(*backendConfig)

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the
// system (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - BackendOption: a function that applies the force fallback option to a backend
func WithForceFallbackAdapter(force bool) BackendOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithPresentMode sets the surface present mode which controls how composited
// frames are delivered to the display. The default is immediate presentation.
//
// Parameters:
//   - mode: the wgpu.PresentMode to use
//
// Returns:
//   - BackendOption: a function that applies the present mode option to a backend
func WithPresentMode(mode wgpu.PresentMode) BackendOption {
	return func(c *backendConfig) {
		c.presentMode = &mode
	}
}
