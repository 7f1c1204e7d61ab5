// Package cursor owns the hardware mouse cursor's image, rotation,
// hotspot and logical position, and produces the plane layer spec the
// compositor core pushes into each commit.
package cursor

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/pixeldrift/compositor/atomicreq"
	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/internal/drmu"
)

// ErrUnavailable reports that the cursor is Broken: a previous commit's
// cursor plane was rejected by the driver, and the latch has not been
// reset (there is no unlatch operation, per spec.md).
var ErrUnavailable = errors.New("cursor: unavailable")

// ErrUnsupportedFormat reports that SetImage was called with a pixel
// format other than ARGB8888, the only format this compositor emits.
var ErrUnsupportedFormat = errors.New("cursor: unsupported format, want ARGB8888")

// Rotation is one of the four quarter-turn presentation rotations the
// window's output can be configured with.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

type state int

const (
	stateDisabled state = iota
	stateEnabled
	stateBroken
)

// Allocator provides the dumb/GEM buffer a rotated cursor image is
// rendered into. Production code backs this with CreateDumb + mmap;
// tests back it with a plain in-memory slice.
type Allocator interface {
	Allocate(width, height int) (*bufferreg.MappedBuffer, error)
}

// Compositor implements the cursor state machine (spec.md §4.8):
// Disabled / Enabled(buffer, pos) / Broken.
type Compositor struct {
	mu sync.Mutex

	alloc Allocator
	reg   *bufferreg.Registry
	fd    int

	state state

	buf      *bufferreg.MappedBuffer
	fbID     uint32
	width    int
	height   int
	hotspot  image.Point
	rotation Rotation

	pos image.Point // logical top-left position (already hotspot-adjusted)
}

// New constructs a Compositor that allocates cursor buffers through
// alloc and imports them into fb_ids through reg.
func New(fd int, alloc Allocator, reg *bufferreg.Registry) *Compositor {
	return &Compositor{fd: fd, alloc: alloc, reg: reg}
}

// SetImage uploads a new cursor bitmap. pixels must be a tightly packed
// ARGB8888 buffer of width*height*4 bytes; format must equal
// drmu.FormatARGB8888. The image is rotated to match rotation before
// upload, and hotspot is rotated with it per spec.md §6.
func (c *Compositor) SetImage(pixels []byte, width, height int, format uint32, hotspot image.Point, rotation Rotation) error {
	if format != drmu.FormatARGB8888 {
		return fmt.Errorf("%w: got fourcc %#x", ErrUnsupportedFormat, format)
	}
	if len(pixels) != width*height*4 {
		return fmt.Errorf("cursor: pixel buffer length %d does not match %dx%d ARGB8888", len(pixels), width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateBroken {
		return ErrUnavailable
	}

	rotated, rw, rh := rotateARGB8888(pixels, width, height, rotation)
	rotatedHotspot := rotateHotspot(hotspot, width, height, rotation)

	buf, err := c.alloc.Allocate(rw, rh)
	if err != nil {
		return fmt.Errorf("cursor: allocate: %w", err)
	}
	copy(buf.Data, rotated)

	fbID, err := c.reg.FBID(buf)
	if err != nil {
		return fmt.Errorf("cursor: import buffer: %w", err)
	}

	if c.buf != nil {
		old := c.buf
		if err := c.reg.Destroy(old, nil); err != nil {
			// Old buffer's fb is leaked rather than the new one being
			// torn down; surfacing this would discard a cursor update
			// that otherwise succeeded.
			_ = err
		}
	}

	c.buf = buf
	c.fbID = fbID
	c.width, c.height = rw, rh
	c.hotspot = rotatedHotspot
	c.rotation = rotation
	c.state = stateEnabled
	return nil
}

// SetPosition moves the cursor to the given logical pointer position.
// When the cursor plane is already committed, the caller should prefer
// issuing a MoveCursor ioctl directly (see drmu.MoveCursor) rather than
// rebuilding the whole composition.
func (c *Compositor) SetPosition(pos image.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateBroken {
		return ErrUnavailable
	}
	c.pos = image.Point{X: pos.X - c.hotspot.X, Y: pos.Y - c.hotspot.Y}
	return nil
}

// Disable hides the cursor without discarding its image or hotspot, so
// a later enable doesn't need to re-upload.
func (c *Compositor) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateEnabled {
		c.state = stateDisabled
	}
}

// Enable re-shows a previously uploaded cursor image.
func (c *Compositor) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateBroken {
		return ErrUnavailable
	}
	if c.buf == nil {
		return fmt.Errorf("cursor: enable: %w: no image set", ErrUnavailable)
	}
	c.state = stateEnabled
	return nil
}

// LayerSpec returns the plane push spec for this frame's composition,
// and whether the cursor should be included at all (Disabled/Broken
// contribute no layer).
func (c *Compositor) LayerSpec() (atomicreq.PushFBLayerSpec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateEnabled {
		return atomicreq.PushFBLayerSpec{}, false
	}
	return atomicreq.PushFBLayerSpec{
		FBID:         c.fbID,
		Format:       drmu.FormatARGB8888,
		Src:          atomicreq.Rect{W: c.width, H: c.height},
		Dst:          atomicreq.Rect{X: c.pos.X, Y: c.pos.Y, W: c.width, H: c.height},
		PreferCursor: true,
	}, true
}

// OnCursorPlaneRejected latches the cursor to Broken. Called by the
// compositor core when a commit that included the cursor's layer
// fails; it does not distinguish EINVAL from other driver errors, per
// spec.md's CursorUnavailable error kind.
func (c *Compositor) OnCursorPlaneRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateBroken
}

// Broken reports whether the cursor has latched into the Broken state.
func (c *Compositor) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateBroken
}
