package cursor

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/internal/drmu"
)

// DumbAllocator backs cursor buffers with CREATE_DUMB + mmap, a
// CPU-mapped buffer the cursor code writes pixels into directly.
// Production cursor images are small (typically <= 64x64), so a dumb
// buffer's extra copy relative to a GBM BO import is not a concern.
type DumbAllocator struct {
	fd int
}

// NewDumbAllocator constructs a DumbAllocator issuing ioctls against fd.
func NewDumbAllocator(fd int) *DumbAllocator { return &DumbAllocator{fd: fd} }

// Allocate creates a width x height ARGB8888 dumb buffer and maps it
// into this process's address space.
func (a *DumbAllocator) Allocate(width, height int) (*bufferreg.MappedBuffer, error) {
	const bpp = 32
	dumb, err := drmu.CreateDumb(a.fd, uint32(width), uint32(height), bpp)
	if err != nil {
		return nil, fmt.Errorf("cursor: create dumb: %w", err)
	}
	offset, err := drmu.MapDumbOffset(a.fd, dumb.Handle)
	if err != nil {
		_ = drmu.DestroyDumb(a.fd, dumb.Handle)
		return nil, fmt.Errorf("cursor: map dumb: %w", err)
	}
	data, err := unix.Mmap(a.fd, int64(offset), int(dumb.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = drmu.DestroyDumb(a.fd, dumb.Handle)
		return nil, fmt.Errorf("cursor: mmap dumb: %w", err)
	}
	return &bufferreg.MappedBuffer{
		Handle: dumb.Handle,
		W:      uint32(width),
		H:      uint32(height),
		Pitch:  dumb.Pitch,
		Fmt:    drmu.FormatARGB8888,
		Data:   data,
	}, nil
}
