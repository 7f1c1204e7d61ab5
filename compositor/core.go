// Package compositor implements the engine-facing composition surface:
// it owns the render-target cache, the buffer registry, the
// platform-view registry and the set of windows, and turns each
// present_layers call into a KMS commit.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/pixeldrift/compositor/atomicreq"
	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/internal/logx"
	"github.com/pixeldrift/compositor/platformview"
	"github.com/pixeldrift/compositor/renderer"
	"github.com/pixeldrift/compositor/rtarget"
	"github.com/pixeldrift/compositor/window"
)

// ErrUnknownHandle reports that CollectBackingStore was called with a
// handle this Core never created.
var ErrUnknownHandle = errors.New("compositor: unknown backing store handle")

// FBSource is the capability a renderer.Target must additionally
// implement (beyond renderer.Target itself) for the buffer registry to
// import it as a scanout framebuffer. renderer.Target deliberately
// omits these fields (see package renderer's doc comment): they are
// backend-specific, so a concrete GL/Vulkan Target implementation
// provides them directly.
type FBSource interface {
	Format() uint32
	Modifier() (mod uint64, ok bool)
	Handles() [4]uint32
	Pitches() [4]uint32
	Offsets() [4]uint32
}

// BackingStoreHandle is returned by CreateBackingStore and passed back
// to CollectBackingStore. The first handle ever created for a window
// names the shared window surface; every handle after that is a
// dedicated offscreen target.
type BackingStoreHandle struct {
	Target rtarget.Target

	isWindow bool
}

// targetBuffer adapts a renderer.Target (plus its FBSource facet) into
// a bufferreg.Buffer so the registry can import it without a concrete
// GBM/GEM type.
type targetBuffer struct {
	id  renderer.Target
	src FBSource
	w, h uint32
}

func (b *targetBuffer) Identity() any            { return b.id }
func (b *targetBuffer) Width() uint32            { return b.w }
func (b *targetBuffer) Height() uint32           { return b.h }
func (b *targetBuffer) Format() uint32           { return b.src.Format() }
func (b *targetBuffer) Modifier() (uint64, bool) { return b.src.Modifier() }
func (b *targetBuffer) Handles() [4]uint32       { return b.src.Handles() }
func (b *targetBuffer) Pitches() [4]uint32       { return b.src.Pitches() }
func (b *targetBuffer) Offsets() [4]uint32       { return b.src.Offsets() }

type frameBuilderKey struct{}

// BuilderFromContext retrieves the atomicreq.Builder a platform view's
// present callback should push its own layer onto. It is only valid
// during a platformview.Callbacks.Present call dispatched from within
// this Core's present.
func BuilderFromContext(ctx context.Context) (atomicreq.Builder, bool) {
	b, ok := ctx.Value(frameBuilderKey{}).(atomicreq.Builder)
	return b, ok
}

// Core owns every window's shared infrastructure: the render-target
// cache, the buffer registry, and the platform-view registry.
type Core struct {
	cache  *rtarget.Cache
	bufReg *bufferreg.Registry
	views  *platformview.Registry

	windows map[string]*window.Window

	haveWindowSurface bool
}

// New constructs a Core backed by r for render-target allocation and
// fd for KMS framebuffer import.
func New(r renderer.Renderer, fd int) *Core {
	return &Core{
		cache:   rtarget.New(r),
		bufReg:  bufferreg.New(fd),
		views:   platformview.New(),
		windows: make(map[string]*window.Window),
	}
}

// AddWindow registers a window under name so PresentLayers can target
// it.
func (c *Core) AddWindow(name string, w *window.Window) {
	c.windows[name] = w
}

// Views returns the platform-view registry, so the embedder can
// Register/Unregister its view callbacks.
func (c *Core) Views() *platformview.Registry { return c.views }

// Cache returns the render-target cache backing this Core. Every
// window.Window attached to this Core via AddWindow must be
// constructed with this same Cache, so CreateBackingStore's
// single-window-surface invariant holds across the whole Core.
func (c *Core) Cache() *rtarget.Cache { return c.cache }

// CreateBackingStore allocates a render target for a size x size
// layer, per spec.md §4.9: the first allocation this Core ever makes
// *is* the shared window surface; every later call returns a pooled or
// fresh offscreen target.
func (c *Core) CreateBackingStore(width, height int) (BackingStoreHandle, error) {
	if !c.haveWindowSurface {
		ws, err := c.cache.WindowSurface()
		if err != nil {
			return BackingStoreHandle{}, err
		}
		c.haveWindowSurface = true
		return BackingStoreHandle{Target: ws, isWindow: true}, nil
	}
	o, err := c.cache.CreateOffscreen(width, height)
	if err != nil {
		return BackingStoreHandle{}, err
	}
	return BackingStoreHandle{Target: o}, nil
}

// CollectBackingStore returns h's target to the stale pool, unless it
// is the shared window surface, which is never collected.
func (c *Core) CollectBackingStore(h BackingStoreHandle) error {
	if h.isWindow {
		return nil
	}
	o, ok := h.Target.(*rtarget.Offscreen)
	if !ok {
		return ErrUnknownHandle
	}
	c.cache.Collect(o)
	return nil
}

// LayerDesc is one layer of a present_layers call, before it has been
// resolved into a window.Layer (fb_id lookups happen lazily inside
// PresentLayers).
type LayerDesc struct {
	IsPlatformView bool

	Target  rtarget.Target
	SrcSize image.Point
	DstRect image.Rectangle

	ViewID   int64
	Geometry platformview.Geometry
}

// PresentLayers builds this frame's Composition for the named window
// and pushes it.
func (c *Core) PresentLayers(ctx context.Context, windowName string, layers []LayerDesc) error {
	w, ok := c.windows[windowName]
	if !ok {
		return fmt.Errorf("compositor: unknown window %q", windowName)
	}

	comp := window.Composition{Layers: make([]window.Layer, len(layers))}
	for i, l := range layers {
		comp.Layers[i] = window.Layer{
			IsPlatformView: l.IsPlatformView,
			Target:         l.Target,
			SrcSize:        l.SrcSize,
			DstRect:        l.DstRect,
			ViewID:         l.ViewID,
			Geometry:       l.Geometry,
		}
	}

	return w.PushComposition(ctx, comp)
}

// present is the window.PresentFunc every Window in this Core is
// constructed with. It pushes every backing-store layer's plane, in
// layer order, then runs the platform-view registry's mount/update/
// unmount/present dispatch, handing each present callback this
// builder through the context so it can push its own plane.
//
// Backing-store layers are pushed before any platform-view present
// callback runs: the registry's three lifecycle phases must complete
// before any present fires (spec.md §5 ordering rule c), which makes a
// single interleaved pass over mixed layer kinds impossible without
// restructuring platformview.Registry to expose per-layer hooks. This
// is a documented simplification, not an oversight.
func (c *Core) present(ctx context.Context, comp window.Composition, b atomicreq.Builder) error {
	var viewLayers []platformview.LayerRef

	for _, l := range comp.Layers {
		if l.IsPlatformView {
			viewLayers = append(viewLayers, platformview.LayerRef{ViewID: l.ViewID, Geometry: l.Geometry})
			continue
		}
		if l.Target == nil {
			continue
		}
		fbID, format, err := c.resolveFB(l.Target)
		if err != nil {
			return fmt.Errorf("compositor: resolve backing store: %w", err)
		}
		target := l.Target
		err = b.PushFBLayer(atomicreq.PushFBLayerSpec{
			FBID:   fbID,
			Format: format,
			Src:    atomicreq.Rect{W: l.SrcSize.X, H: l.SrcSize.Y},
			Dst: atomicreq.Rect{
				X: l.DstRect.Min.X, Y: l.DstRect.Min.Y,
				W: l.DstRect.Dx(), H: l.DstRect.Dy(),
			},
			ReleaseCallback: func(any) { target.ReleasePlane() },
		})
		if err != nil {
			return fmt.Errorf("compositor: push backing store layer: %w", err)
		}
	}

	ctx = context.WithValue(ctx, frameBuilderKey{}, b)
	for _, err := range c.views.Dispatch(ctx, viewLayers) {
		logx.From(ctx).Error("platform view callback failed", slog.Any("err", err))
	}
	return nil
}

// NewPresentFunc returns the PresentFunc to construct every Window
// with, bound to this Core.
func (c *Core) NewPresentFunc() window.PresentFunc { return c.present }

func (c *Core) resolveFB(t rtarget.Target) (fbID uint32, format uint32, err error) {
	backend := t.Backend()
	src, ok := backend.(FBSource)
	if !ok {
		return 0, 0, fmt.Errorf("render target %T does not implement compositor.FBSource", backend)
	}
	buf := &targetBuffer{id: backend, src: src, w: uint32(backend.Width()), h: uint32(backend.Height())}
	fbID, err = c.bufReg.FBID(buf)
	if err != nil {
		return 0, 0, err
	}
	return fbID, src.Format(), nil
}
