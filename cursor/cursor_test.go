package cursor_test

import (
	"image"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/cursor"
	"github.com/pixeldrift/compositor/internal/drmu"
)

type fakeAllocator struct {
	calls int
}

func (a *fakeAllocator) Allocate(w, h int) (*bufferreg.MappedBuffer, error) {
	a.calls++
	return &bufferreg.MappedBuffer{
		Handle: uint32(a.calls),
		W:      uint32(w),
		H:      uint32(h),
		Pitch:  uint32(w * 4),
		Fmt:    drmu.FormatARGB8888,
		Data:   make([]byte, w*h*4),
	}, nil
}

func installFakeIoctl(t *testing.T) {
	t.Helper()
	orig := drmu.Syscall
	var next uint32 = 1
	drmu.Syscall = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
		next++
		return 0, 0, 0
	}
	t.Cleanup(func() { drmu.Syscall = orig })
}

func solidARGB(w, h int, a, r, g, b byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		buf[i*4+0] = b
		buf[i*4+1] = g
		buf[i*4+2] = r
		buf[i*4+3] = a
	}
	return buf
}

func TestSetImageEnablesCursor(t *testing.T) {
	installFakeIoctl(t)
	reg := bufferreg.New(3)
	alloc := &fakeAllocator{}
	c := cursor.New(3, alloc, reg)

	pixels := solidARGB(8, 8, 255, 10, 20, 30)
	if err := c.SetImage(pixels, 8, 8, drmu.FormatARGB8888, image.Point{X: 2, Y: 3}, cursor.Rotate0); err != nil {
		t.Fatal(err)
	}

	spec, ok := c.LayerSpec()
	if !ok {
		t.Fatal("LayerSpec: expected cursor to be enabled after SetImage")
	}
	if spec.Src.W != 8 || spec.Src.H != 8 {
		t.Errorf("Src = %+v, want 8x8", spec.Src)
	}
	if !spec.PreferCursor {
		t.Error("PreferCursor not set")
	}
}

func TestSetImageRejectsWrongFormat(t *testing.T) {
	installFakeIoctl(t)
	reg := bufferreg.New(3)
	c := cursor.New(3, &fakeAllocator{}, reg)

	err := c.SetImage(make([]byte, 8*8*4), 8, 8, drmu.FormatXRGB8888, image.Point{}, cursor.Rotate0)
	if err == nil {
		t.Fatal("expected ErrUnsupportedFormat")
	}
}

func TestDisableThenLayerSpecAbsent(t *testing.T) {
	installFakeIoctl(t)
	reg := bufferreg.New(3)
	c := cursor.New(3, &fakeAllocator{}, reg)
	c.SetImage(solidARGB(4, 4, 255, 1, 2, 3), 4, 4, drmu.FormatARGB8888, image.Point{}, cursor.Rotate0)

	c.Disable()
	if _, ok := c.LayerSpec(); ok {
		t.Error("LayerSpec: expected no layer while disabled")
	}

	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.LayerSpec(); !ok {
		t.Error("LayerSpec: expected a layer after re-enabling")
	}
}

func TestCursorRejectionLatchesBroken(t *testing.T) {
	installFakeIoctl(t)
	reg := bufferreg.New(3)
	c := cursor.New(3, &fakeAllocator{}, reg)
	c.SetImage(solidARGB(4, 4, 255, 1, 2, 3), 4, 4, drmu.FormatARGB8888, image.Point{}, cursor.Rotate0)

	c.OnCursorPlaneRejected()
	if !c.Broken() {
		t.Fatal("expected Broken after OnCursorPlaneRejected")
	}

	if err := c.Enable(); err == nil {
		t.Error("Enable: expected error after latching Broken")
	}
	if err := c.SetImage(solidARGB(4, 4, 255, 0, 0, 0), 4, 4, drmu.FormatARGB8888, image.Point{}, cursor.Rotate0); err == nil {
		t.Error("SetImage: expected error after latching Broken")
	}
}

func TestSetPositionOffsetsByHotspot(t *testing.T) {
	installFakeIoctl(t)
	reg := bufferreg.New(3)
	c := cursor.New(3, &fakeAllocator{}, reg)
	c.SetImage(solidARGB(4, 4, 255, 1, 2, 3), 4, 4, drmu.FormatARGB8888, image.Point{X: 1, Y: 1}, cursor.Rotate0)

	c.SetPosition(image.Point{X: 100, Y: 100})
	spec, ok := c.LayerSpec()
	if !ok {
		t.Fatal("expected layer")
	}
	if spec.Dst.X != 99 || spec.Dst.Y != 99 {
		t.Errorf("Dst = %+v, want (99,99)", spec.Dst)
	}
}
