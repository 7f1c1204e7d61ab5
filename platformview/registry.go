// Package platformview diffs the engine's per-frame composition against
// the previous frame to compute which platform views mount, update or
// unmount, then dispatches the three lifecycle callbacks plus present
// in the order the embedding UI toolkit requires.
package platformview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pixeldrift/compositor/internal/bitvec"
)

// ErrCallback wraps an error returned by a mount/unmount/update_view/
// present callback. It is logged, not propagated to abort the commit.
var ErrCallback = errors.New("platformview: callback error")

// Mutation is one opaque clip/transform entry the engine attaches to a
// platform view's layer.
type Mutation struct {
	Kind string
	Data [16]float64 // large enough for a 4x4 transform or clip rect
}

// Geometry is a platform view's per-frame placement.
type Geometry struct {
	Zpos      int64
	Offset    [2]int
	Size      [2]int
	Mutations []Mutation
}

func (g Geometry) equal(o Geometry) bool {
	if g.Zpos != o.Zpos || g.Offset != o.Offset || g.Size != o.Size {
		return false
	}
	if len(g.Mutations) != len(o.Mutations) {
		return false
	}
	for i := range g.Mutations {
		if g.Mutations[i] != o.Mutations[i] {
			return false
		}
	}
	return true
}

// MountRequest is passed to every platform-view lifecycle callback.
type MountRequest struct {
	ViewID   int64
	Geometry Geometry
	Userdata any
}

// Callbacks is one platform view's registered lifecycle handlers. Any
// nil callback is treated as a no-op that always succeeds.
type Callbacks struct {
	Mount      func(ctx context.Context, req *MountRequest) error
	Unmount    func(ctx context.Context, req *MountRequest) error
	UpdateView func(ctx context.Context, req *MountRequest) error
	Present    func(ctx context.Context, req *MountRequest) error
	Userdata   any
}

type entry struct {
	cb   Callbacks
	last Geometry
	slot int // index into the presence bitvec
}

// Registry holds the stable view_id -> entry mapping and the
// previous-frame presence bitvec used to compute mount/update/unmount
// sets in a single pass.
type Registry struct {
	mu sync.Mutex

	entries map[int64]*entry
	present bitvec.V[uint64]
	slots   map[int64]int
	freeSlots []int
	nextSlot  int
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[int64]*entry), slots: make(map[int64]int)}
}

// Register installs cb for viewID, replacing any previous registration.
func (r *Registry) Register(viewID int64, cb Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[viewID]; ok {
		e.cb = cb
		return
	}
	slot := r.allocSlot()
	r.entries[viewID] = &entry{cb: cb, slot: slot}
	r.slots[viewID] = slot
}

// Unregister removes viewID's registration entirely.
func (r *Registry) Unregister(viewID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[viewID]
	if !ok {
		return
	}
	r.present.Unset(e.slot)
	r.freeSlots = append(r.freeSlots, e.slot)
	delete(r.entries, viewID)
	delete(r.slots, viewID)
}

func (r *Registry) allocSlot() int {
	if n := len(r.freeSlots); n > 0 {
		s := r.freeSlots[n-1]
		r.freeSlots = r.freeSlots[:n-1]
		return s
	}
	if r.nextSlot >= r.present.Len() {
		r.present.Grow(1)
	}
	s := r.nextSlot
	r.nextSlot++
	return s
}

// LayerRef names one PlatformView-tagged composition layer.
type LayerRef struct {
	ViewID   int64
	Geometry Geometry
}

// Dispatch computes the mount/update/unmount sets for the views present
// in thisFrame (single pass, spec.md §4.6), then runs all unmounts, then
// all updates, then all mounts, then all presents in layer order. Each
// phase fans the callbacks for its set out concurrently via errgroup;
// a callback's error is logged by the caller via the returned per-view
// errors, never aborting the commit.
func (r *Registry) Dispatch(ctx context.Context, thisFrame []LayerRef) []error {
	r.mu.Lock()

	inFrame := make(map[int64]Geometry, len(thisFrame))
	for _, l := range thisFrame {
		inFrame[l.ViewID] = l.Geometry
	}

	var toMount, toUpdate, toUnmount []int64
	for viewID, e := range r.entries {
		wasPresent := r.present.IsSet(e.slot)
		geom, nowPresent := inFrame[viewID]
		switch {
		case nowPresent && !wasPresent:
			toMount = append(toMount, viewID)
		case !nowPresent && wasPresent:
			toUnmount = append(toUnmount, viewID)
		case nowPresent && wasPresent && !geom.equal(e.last):
			toUpdate = append(toUpdate, viewID)
		}
	}

	r.mu.Unlock()

	var errs []error
	errs = append(errs, r.runPhase(ctx, toUnmount, inFrame, func(e *entry) func(context.Context, *MountRequest) error { return e.cb.Unmount })...)
	errs = append(errs, r.runPhase(ctx, toUpdate, inFrame, func(e *entry) func(context.Context, *MountRequest) error { return e.cb.UpdateView })...)
	errs = append(errs, r.runPhase(ctx, toMount, inFrame, func(e *entry) func(context.Context, *MountRequest) error { return e.cb.Mount })...)

	r.mu.Lock()
	for _, viewID := range toMount {
		if e, ok := r.entries[viewID]; ok {
			r.present.Set(e.slot)
			e.last = inFrame[viewID]
		}
	}
	for _, viewID := range toUpdate {
		if e, ok := r.entries[viewID]; ok {
			e.last = inFrame[viewID]
		}
	}
	for _, viewID := range toUnmount {
		if e, ok := r.entries[viewID]; ok {
			r.present.Unset(e.slot)
		}
	}
	r.mu.Unlock()

	// Present callbacks run last, in layer order, not the map-iteration
	// order of the phases above.
	for _, l := range thisFrame {
		r.mu.Lock()
		e, ok := r.entries[l.ViewID]
		r.mu.Unlock()
		if !ok || e.cb.Present == nil {
			continue
		}
		req := &MountRequest{ViewID: l.ViewID, Geometry: l.Geometry, Userdata: e.cb.Userdata}
		if err := e.cb.Present(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("%w: view %d present: %v", ErrCallback, l.ViewID, err))
		}
	}

	return errs
}

func (r *Registry) runPhase(ctx context.Context, viewIDs []int64, frame map[int64]Geometry, pick func(*entry) func(context.Context, *MountRequest) error) []error {
	if len(viewIDs) == 0 {
		return nil
	}
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	for _, viewID := range viewIDs {
		viewID := viewID
		r.mu.Lock()
		e, ok := r.entries[viewID]
		r.mu.Unlock()
		if !ok {
			continue
		}
		cb := pick(e)
		if cb == nil {
			continue
		}
		geom := frame[viewID]
		userdata := e.cb.Userdata
		g.Go(func() error {
			req := &MountRequest{ViewID: viewID, Geometry: geom, Userdata: userdata}
			if err := cb(gctx, req); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%w: view %d: %v", ErrCallback, viewID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
