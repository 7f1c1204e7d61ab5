// Package window is the per-display facade the engine and input
// subsystems interact with: selected mode, derived view geometry,
// cursor state, and the composition most recently pushed to the CRTC.
package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pixeldrift/compositor/atomicreq"
	"github.com/pixeldrift/compositor/cursor"
	"github.com/pixeldrift/compositor/frameclock"
	"github.com/pixeldrift/compositor/platformview"
	"github.com/pixeldrift/compositor/rtarget"
)

// ErrBlocked reports that this window latched into blocking-commit
// mode after an EBUSY retry (spec.md §7 DriverBusy recovery); the
// commit that returned it still completed, blocking, before returning.
var ErrBlocked = errors.New("window: commit blocked")

// Orientation is a quarter-turn display rotation.
type Orientation int

const (
	Orientation0 Orientation = iota
	Orientation90
	Orientation180
	Orientation270
)

// Metrics reports a window's logical size and the scale factor between
// view (logical) pixels and display (physical) pixels.
type Metrics struct {
	Width, Height int
	PixelRatio    float64
}

// Affine is a 2D affine transform, (x', y') = (a*x + b*y + e, c*x + d*y + f).
type Affine struct {
	A, B, C, D, E, F float64
}

// Apply transforms a point.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.E, m.C*x + m.D*y + m.F
}

// ViewGeometry holds the two affine transforms between the engine's
// logical view space and display pixel space, derived from the
// window's orientation and pixel ratio. Rotation is applied before the
// device-pixel-ratio scale, so a 90°-rotated 2x-density display first
// rotates display coordinates into view orientation, then divides by
// the ratio.
type ViewGeometry struct {
	DisplayToView Affine
	ViewToDisplay Affine
}

func computeViewGeometry(displayW, displayH int, orientation Orientation, pixelRatio float64) ViewGeometry {
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	w, h := float64(displayW), float64(displayH)
	pr := pixelRatio

	switch orientation {
	case Orientation90:
		return ViewGeometry{
			DisplayToView: Affine{A: 0, B: 1 / pr, C: -1 / pr, D: 0, E: 0, F: w / pr},
			ViewToDisplay: Affine{A: 0, B: -pr, C: pr, D: 0, E: w, F: 0},
		}
	case Orientation180:
		return ViewGeometry{
			DisplayToView: Affine{A: -1 / pr, B: 0, C: 0, D: -1 / pr, E: w / pr, F: h / pr},
			ViewToDisplay: Affine{A: -pr, B: 0, C: 0, D: -pr, E: w, F: h},
		}
	case Orientation270:
		return ViewGeometry{
			DisplayToView: Affine{A: 0, B: -1 / pr, C: 1 / pr, D: 0, E: h / pr, F: 0},
			ViewToDisplay: Affine{A: 0, B: pr, C: -pr, D: 0, E: 0, F: h},
		}
	default:
		return ViewGeometry{
			DisplayToView: Affine{A: 1 / pr, B: 0, C: 0, D: 1 / pr, E: 0, F: 0},
			ViewToDisplay: Affine{A: pr, B: 0, C: 0, D: pr, E: 0, F: 0},
		}
	}
}

// Layer is one entry of a Composition, as handed to the window by the
// compositor core.
type Layer struct {
	IsPlatformView bool

	// BackingStore fields.
	Target  rtarget.Target
	SrcSize image.Point
	DstRect image.Rectangle

	// PlatformView fields.
	ViewID   int64
	Geometry platformview.Geometry
}

// Composition is the ordered set of layers the engine asked to present
// in a single present_layers call.
type Composition struct {
	Layers []Layer
}

// PresentFunc pushes every non-cursor layer of comp onto b (backing
// stores directly, platform views via their present callback, which
// may itself push a plane). The compositor core supplies this, since
// it owns the buffer registry and platform-view registry that Window
// does not depend on directly.
type PresentFunc func(ctx context.Context, comp Composition, b atomicreq.Builder) error

// Window owns one CRTC's selection, mode, derived geometry, render
// surface and cursor.
type Window struct {
	mu sync.Mutex

	newBuilder func() atomicreq.Builder
	present    PresentFunc

	cache     *rtarget.Cache
	cur       *cursor.Compositor
	scheduler *frameclock.Scheduler

	displayW, displayH int
	orientation        Orientation
	pixelRatio         float64
	geometry           ViewGeometry

	blocked bool
	last    Composition
}

// New constructs a Window. newBuilder must return a fresh
// atomicreq.Builder for the target CRTC on every call, since a builder
// accumulates state for exactly one commit.
func New(newBuilder func() atomicreq.Builder, present PresentFunc, cache *rtarget.Cache, cur *cursor.Compositor, scheduler *frameclock.Scheduler, displayW, displayH int, pixelRatio float64, orientation Orientation) *Window {
	w := &Window{
		newBuilder: newBuilder, present: present,
		cache: cache, cur: cur, scheduler: scheduler,
		displayW: displayW, displayH: displayH,
		pixelRatio: pixelRatio, orientation: orientation,
	}
	w.geometry = computeViewGeometry(displayW, displayH, orientation, pixelRatio)
	return w
}

// Metrics reports the window's logical size and pixel ratio: the
// display's pixel extent, rotated for orientation and divided by the
// device pixel ratio.
func (w *Window) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	dw, dh := w.displayW, w.displayH
	if w.orientation == Orientation90 || w.orientation == Orientation270 {
		dw, dh = dh, dw
	}
	return Metrics{
		Width:      int(float64(dw) / w.pixelRatio),
		Height:     int(float64(dh) / w.pixelRatio),
		PixelRatio: w.pixelRatio,
	}
}

// Geometry returns the window's display<->view affine transforms.
func (w *Window) Geometry() ViewGeometry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.geometry
}

// GetRenderSurface returns the shared window surface, allocating it on
// first use.
func (w *Window) GetRenderSurface() (*rtarget.WindowSurface, error) {
	return w.cache.WindowSurface()
}

// GetNextVblank registers cb with the window's frame scheduler; it is
// answered at scanout or commit time depending on present mode
// (spec.md §4.7).
func (w *Window) GetNextVblank(cb func(now, next time.Time)) {
	w.scheduler.RequestFrame(cb)
}

// SetCursor updates the cursor's enabled state and/or position.
// Mutations take the window's lock and re-present the last composition,
// so a cursor-only change is visible without waiting for the engine's
// next frame.
func (w *Window) SetCursor(ctx context.Context, enabled bool, pos image.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if enabled {
		if err := w.cur.Enable(); err != nil {
			return err
		}
		if err := w.cur.SetPosition(pos); err != nil {
			return err
		}
	} else {
		w.cur.Disable()
	}

	return w.presentLocked(ctx, w.last)
}

// PushComposition presents comp and remembers it as the last
// composition for cursor-only re-presentation.
func (w *Window) PushComposition(ctx context.Context, comp Composition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = comp
	return w.presentLocked(ctx, comp)
}

func (w *Window) presentLocked(ctx context.Context, comp Composition) error {
	w.cache.Drain()

	b := w.newBuilder()
	if w.present != nil {
		if err := w.present(ctx, comp, b); err != nil {
			return fmt.Errorf("window: present layers: %w", err)
		}
	}

	cursorPushed := false
	if spec, ok := w.cur.LayerSpec(); ok {
		if err := b.PushFBLayer(spec); err != nil {
			return fmt.Errorf("window: push cursor layer: %w", err)
		}
		cursorPushed = true
	}

	blocking := w.blocked
	err := b.Commit(ctx, blocking)
	if err != nil {
		if errors.Is(err, atomicreq.ErrDriverBusy) {
			w.blocked = true
			return ErrBlocked
		}
		if errors.Is(err, atomicreq.ErrDriverRejected) && cursorPushed {
			w.cur.OnCursorPlaneRejected()
		}
		return err
	}
	w.scheduler.OnCommit(time.Now())
	return nil
}
