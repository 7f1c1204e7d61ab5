// Package renderer defines the narrow capability surface the compositor
// core consumes from a rendering backend (GL/EGL or Vulkan).
//
// The backends themselves are out of scope for this module (see §1 of the
// design spec): context/device bring-up, shader compilation and the
// engine's single global drawing surface all live elsewhere. This package
// only names the handful of operations the compositor needs in order to
// turn an engine-owned backing store into something it can scan out.
package renderer

import "errors"

// ErrNotSupported is returned by a Renderer method that the concrete
// backend does not implement (e.g. a GL-only renderer asked to allocate a
// Vulkan image).
var ErrNotSupported = errors.New("renderer: operation not supported by this backend")

// Renderer is the capability interface a backend implements so the
// compositor can allocate and present render targets without depending on
// GL/EGL or Vulkan directly.
type Renderer interface {
	// Name identifies the backend, e.g. "gl", "vulkan".
	Name() string

	// NewOffscreenTarget allocates a scanout-capable framebuffer object
	// sized to width x height, for use as an overlay RenderTarget.
	NewOffscreenTarget(width, height int) (Target, error)

	// SwapBuffers presents the engine's single global drawing surface
	// and returns the buffer that is now the front buffer, for locking
	// into the WindowSurface render target.
	SwapBuffers() (Target, error)
}

// Target is a backend-owned render target: either the shared window
// surface's front buffer after SwapBuffers, or a dedicated offscreen
// framebuffer object allocated by NewOffscreenTarget.
type Target interface {
	// Destroy releases the backend resources for this target. It must
	// run after the target's KMS framebuffer (if any) has been torn
	// down, per the collect-then-destroy ordering the engine documents.
	Destroy()

	// Width and Height report the target's pixel dimensions.
	Width() int
	Height() int
}

// Registry tracks the set of backends an application has linked in,
// mirroring the registration pattern used for driver selection elsewhere
// in this module (see kms.Device construction): a backend calls Register
// from its own init function, and the compositor core picks one by name
// or takes whichever was registered first.
type Registry struct {
	renderers []Renderer
}

// DefaultRegistry is the process-wide registry backends register
// themselves into.
var DefaultRegistry Registry

// Register adds r to the registry, replacing any previously registered
// renderer with the same name.
func (reg *Registry) Register(r Renderer) {
	for i := range reg.renderers {
		if reg.renderers[i].Name() == r.Name() {
			reg.renderers[i] = r
			return
		}
	}
	reg.renderers = append(reg.renderers, r)
}

// Renderers returns the registered renderers, in registration order.
func (reg *Registry) Renderers() []Renderer {
	out := make([]Renderer, len(reg.renderers))
	copy(out, reg.renderers)
	return out
}

// Lookup returns the renderer with the given name, if any.
func (reg *Registry) Lookup(name string) (Renderer, bool) {
	for _, r := range reg.renderers {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}
