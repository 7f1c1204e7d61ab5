// Package bufferreg maps GBM buffer objects (and other DisplayBuffer
// variants) to their lazily-created KMS framebuffer IDs, and tears them
// down exactly once when the owning buffer is destroyed.
package bufferreg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pixeldrift/compositor/internal/drmu"
)

// ErrProducerGone reports that a buffer's producer destroy callback ran
// before the registry could finish tearing the buffer's framebuffer
// down; the registry always completes RmFB regardless.
var ErrProducerGone = errors.New("bufferreg: producer gone")

// Buffer is the common capability every DisplayBuffer variant
// (MappedBuffer, GBMBuffer, GEMBuffer, EGLImageBuffer) implements: a
// stable identity to key the fb_id cache on, and the raw GEM handle
// layout AddFB2WithModifiers needs.
type Buffer interface {
	// Identity returns a value that uniquely and stably identifies this
	// buffer for the lifetime of its backing allocation (e.g. the GBM
	// BO pointer, boxed).
	Identity() any

	Width() uint32
	Height() uint32
	Format() uint32
	Modifier() (mod uint64, ok bool)
	Handles() [4]uint32
	Pitches() [4]uint32
	Offsets() [4]uint32
}

// MappedBuffer wraps a CPU-mapped dumb buffer.
type MappedBuffer struct {
	Handle             uint32
	W, H, Pitch, Fmt uint32
	Data               []byte
}

func (b *MappedBuffer) Identity() any       { return b }
func (b *MappedBuffer) Width() uint32       { return b.W }
func (b *MappedBuffer) Height() uint32      { return b.H }
func (b *MappedBuffer) Format() uint32      { return b.Fmt }
func (b *MappedBuffer) Modifier() (uint64, bool) { return drmu.FormatModNone, false }
func (b *MappedBuffer) Handles() [4]uint32  { return [4]uint32{b.Handle} }
func (b *MappedBuffer) Pitches() [4]uint32  { return [4]uint32{b.Pitch} }
func (b *MappedBuffer) Offsets() [4]uint32  { return [4]uint32{} }

// GBMBuffer wraps an imported GBM buffer object.
type GBMBuffer struct {
	BOPtr               uintptr // opaque GBM BO identity, not dereferenced
	W, H, Fmt           uint32
	Mod                  uint64
	HasMod               bool
	HandlesArr, PitchesArr, OffsetsArr [4]uint32
}

func (b *GBMBuffer) Identity() any          { return b.BOPtr }
func (b *GBMBuffer) Width() uint32          { return b.W }
func (b *GBMBuffer) Height() uint32         { return b.H }
func (b *GBMBuffer) Format() uint32         { return b.Fmt }
func (b *GBMBuffer) Modifier() (uint64, bool) { return b.Mod, b.HasMod }
func (b *GBMBuffer) Handles() [4]uint32     { return b.HandlesArr }
func (b *GBMBuffer) Pitches() [4]uint32     { return b.PitchesArr }
func (b *GBMBuffer) Offsets() [4]uint32     { return b.OffsetsArr }

// GEMBuffer wraps a bare GEM handle with caller-supplied layout, for
// producers (cursor, platform views) that manage their own allocation.
type GEMBuffer struct {
	Handle               uint32
	W, H, Pitch, Fmt      uint32
}

func (b *GEMBuffer) Identity() any          { return b }
func (b *GEMBuffer) Width() uint32          { return b.W }
func (b *GEMBuffer) Height() uint32         { return b.H }
func (b *GEMBuffer) Format() uint32         { return b.Fmt }
func (b *GEMBuffer) Modifier() (uint64, bool) { return drmu.FormatModNone, false }
func (b *GEMBuffer) Handles() [4]uint32     { return [4]uint32{b.Handle} }
func (b *GEMBuffer) Pitches() [4]uint32     { return [4]uint32{b.Pitch} }
func (b *GEMBuffer) Offsets() [4]uint32     { return [4]uint32{} }

// EGLImageBuffer wraps a buffer whose GEM layout was derived from an
// EGLImage export (dma-buf handles already imported as GEM handles by
// the renderer).
type EGLImageBuffer struct {
	ImagePtr             uintptr
	W, H, Fmt             uint32
	Mod                   uint64
	HasMod                bool
	HandlesArr, PitchesArr, OffsetsArr [4]uint32
}

func (b *EGLImageBuffer) Identity() any          { return b.ImagePtr }
func (b *EGLImageBuffer) Width() uint32          { return b.W }
func (b *EGLImageBuffer) Height() uint32         { return b.H }
func (b *EGLImageBuffer) Format() uint32         { return b.Fmt }
func (b *EGLImageBuffer) Modifier() (uint64, bool) { return b.Mod, b.HasMod }
func (b *EGLImageBuffer) Handles() [4]uint32     { return b.HandlesArr }
func (b *EGLImageBuffer) Pitches() [4]uint32     { return b.PitchesArr }
func (b *EGLImageBuffer) Offsets() [4]uint32     { return b.OffsetsArr }

type entry struct {
	fbID uint32
}

// Registry caches at most one fb_id per buffer identity.
type Registry struct {
	mu  sync.Mutex
	fd  int
	set map[any]entry
}

// New constructs a Registry issuing AddFB2/RmFB against fd.
func New(fd int) *Registry {
	return &Registry{fd: fd, set: make(map[any]entry)}
}

// FBID returns the cached framebuffer ID for buf, importing it with
// AddFB2WithModifiers on first use. A failed import leaves no cache
// entry, so the next frame's call retries; the buffer itself is never
// leaked by a failed import.
func (r *Registry) FBID(buf Buffer) (uint32, error) {
	id := buf.Identity()

	r.mu.Lock()
	if e, ok := r.set[id]; ok {
		r.mu.Unlock()
		return e.fbID, nil
	}
	r.mu.Unlock()

	mod, hasMod := buf.Modifier()
	var mods [4]uint64
	if hasMod {
		for i := range mods {
			mods[i] = mod
		}
	}
	fbID, err := drmu.AddFB2WithModifiers(r.fd, buf.Width(), buf.Height(), buf.Format(), buf.Handles(), buf.Pitches(), buf.Offsets(), mods)
	if err != nil {
		return 0, fmt.Errorf("bufferreg: add fb: %w", err)
	}

	r.mu.Lock()
	r.set[id] = entry{fbID: fbID}
	r.mu.Unlock()
	return fbID, nil
}

// Destroy removes buf's cached framebuffer (if any) with RmFB and
// invokes destroyCB regardless of whether an fb_id had been created,
// matching the "RmFB then the producer's destroy callback" ordering.
func (r *Registry) Destroy(buf Buffer, destroyCB func()) error {
	id := buf.Identity()

	r.mu.Lock()
	e, ok := r.set[id]
	if ok {
		delete(r.set, id)
	}
	r.mu.Unlock()

	var rmErr error
	if ok {
		rmErr = drmu.RmFB(r.fd, e.fbID)
	}
	if destroyCB != nil {
		destroyCB()
	}
	if rmErr != nil {
		return fmt.Errorf("bufferreg: rm fb: %w", rmErr)
	}
	return nil
}
