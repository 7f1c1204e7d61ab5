// Package rtarget caches render targets the engine draws into: the
// single shared window surface, reused for every frame, and a pool of
// offscreen targets for overlay backing stores.
package rtarget

import (
	"sync"

	"github.com/pixeldrift/compositor/renderer"
)

// Target is the common capability a WindowSurface or Offscreen
// provides to the compositor core: a backend render target plus the
// bookkeeping the atomic builder's release callback needs.
type Target interface {
	// Backend returns the underlying renderer.Target.
	Backend() renderer.Target

	// ReleasePlane is called by the atomic builder's release callback
	// once the commit that used this target's plane completes (success
	// or failure). For an Offscreen it undoes one MarkReservedForCommit;
	// Drain does not consult that count.
	ReleasePlane()
}

// WindowSurface references the single shared GBM surface the engine's
// global drawing surface presents into.
type WindowSurface struct {
	backend renderer.Target
}

func (w *WindowSurface) Backend() renderer.Target { return w.backend }
func (w *WindowSurface) ReleasePlane()             {}

// Offscreen is a dedicated scanout framebuffer object for an overlay
// layer, created through the renderer.
type Offscreen struct {
	backend renderer.Target

	// shouldFreeOnNextDestroy is the BackingStoreHandle latch that
	// tolerates the engine's documented collect-then-destroy call
	// order without double-freeing.
	shouldFreeOnNextDestroy bool

	reserved int
}

func (o *Offscreen) Backend() renderer.Target { return o.backend }

// ReleasePlane is the atomic builder's release callback for the plane
// this offscreen's layer occupied. It always runs before the next
// frame's Drain, per the documented commit-then-next-frame ordering, so
// Drain never has to wait on it.
func (o *Offscreen) ReleasePlane() {
	if o.reserved > 0 {
		o.reserved--
	}
}

// markReserved records that this frame's commit reserved a plane for o.
func (o *Offscreen) markReserved() { o.reserved++ }

// Cache implements the render-target cache (spec.md §4.5): exactly one
// WindowSurface, created lazily; every other on_create_backing_store
// call returns a new or pooled Offscreen sized to the request.
type Cache struct {
	mu sync.Mutex

	renderer renderer.Renderer

	window *WindowSurface

	stale []*Offscreen
	live  map[*Offscreen]bool
}

// New constructs a Cache that allocates offscreen targets through r.
func New(r renderer.Renderer) *Cache {
	return &Cache{renderer: r, live: make(map[*Offscreen]bool)}
}

// WindowSurface returns the single shared window surface, allocating it
// on first call by swapping the engine's global drawing surface.
func (c *Cache) WindowSurface() (*WindowSurface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window != nil {
		return c.window, nil
	}
	backend, err := c.renderer.SwapBuffers()
	if err != nil {
		return nil, err
	}
	c.window = &WindowSurface{backend: backend}
	return c.window, nil
}

// CreateOffscreen allocates a new offscreen target sized to width x
// height, reusing one from the stale pool if one of the exact size is
// available.
func (c *Cache) CreateOffscreen(width, height int) (*Offscreen, error) {
	c.mu.Lock()
	for i, o := range c.stale {
		if o.backend.Width() == width && o.backend.Height() == height {
			c.stale = append(c.stale[:i], c.stale[i+1:]...)
			c.live[o] = true
			c.mu.Unlock()
			return o, nil
		}
	}
	c.mu.Unlock()

	backend, err := c.renderer.NewOffscreenTarget(width, height)
	if err != nil {
		return nil, err
	}
	o := &Offscreen{backend: backend}
	c.mu.Lock()
	c.live[o] = true
	c.mu.Unlock()
	return o, nil
}

// Collect moves o into the stale set, per on_collect_backing_store.
func (c *Cache) Collect(o *Offscreen) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live[o] {
		return
	}
	delete(c.live, o)
	c.stale = append(c.stale, o)
}

// MarkReservedForCommit records that a commit in progress has pushed a
// plane layer for o; o.ReleasePlane undoes it. Drain does not check this
// count: it relies on every plane release running before the next
// frame's Drain (see Offscreen.ReleasePlane).
func (c *Cache) MarkReservedForCommit(o *Offscreen) {
	o.markReserved()
}

// Drain tears down every target currently in the stale set, releasing
// the planes they may have held. It must run before every commit, per
// spec.md §4.5.
func (c *Cache) Drain() {
	c.mu.Lock()
	stale := c.stale
	c.stale = nil
	c.mu.Unlock()

	for _, o := range stale {
		if o.shouldFreeOnNextDestroy {
			continue
		}
		o.shouldFreeOnNextDestroy = true
		o.backend.Destroy()
	}
}
