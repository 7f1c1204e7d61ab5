package compositor_test

import (
	"context"
	"image"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/atomicreq"
	"github.com/pixeldrift/compositor/compositor"
	"github.com/pixeldrift/compositor/frameclock"
	"github.com/pixeldrift/compositor/internal/drmu"
	"github.com/pixeldrift/compositor/cursor"
	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/renderer"
	"github.com/pixeldrift/compositor/rtarget"
	"github.com/pixeldrift/compositor/window"

	"code.cloudfoundry.org/clock/fakeclock"
	"time"
)

type fakeFBTarget struct {
	w, h int
}

func (t fakeFBTarget) Destroy()    {}
func (t fakeFBTarget) Width() int  { return t.w }
func (t fakeFBTarget) Height() int { return t.h }

func (t fakeFBTarget) Format() uint32            { return drmu.FormatXRGB8888 }
func (t fakeFBTarget) Modifier() (uint64, bool)  { return drmu.FormatModNone, false }
func (t fakeFBTarget) Handles() [4]uint32        { return [4]uint32{7} }
func (t fakeFBTarget) Pitches() [4]uint32        { return [4]uint32{uint32(t.w) * 4} }
func (t fakeFBTarget) Offsets() [4]uint32        { return [4]uint32{} }

type fakeRenderer struct{}

func (r *fakeRenderer) Name() string { return "fake" }
func (r *fakeRenderer) SwapBuffers() (renderer.Target, error) {
	return fakeFBTarget{w: 800, h: 480}, nil
}
func (r *fakeRenderer) NewOffscreenTarget(w, h int) (renderer.Target, error) {
	return fakeFBTarget{w: w, h: h}, nil
}

type fakeBuilder struct {
	pushed  []atomicreq.PushFBLayerSpec
	commits int
}

func (b *fakeBuilder) SetConnector(uint32)      {}
func (b *fakeBuilder) SetMode(drmu.ModeModeInfo) {}
func (b *fakeBuilder) UnsetMode()                {}
func (b *fakeBuilder) PushFBLayer(spec atomicreq.PushFBLayerSpec) error {
	b.pushed = append(b.pushed, spec)
	return nil
}
func (b *fakeBuilder) Commit(ctx context.Context, blocking bool) error {
	b.commits++
	return nil
}

func installFakeIoctl(t *testing.T) {
	t.Helper()
	orig := drmu.Syscall
	drmu.Syscall = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
		return 0, 0, 0
	}
	t.Cleanup(func() { drmu.Syscall = orig })
}

type fakeAllocator struct{ n int }

func (a *fakeAllocator) Allocate(w, h int) (*bufferreg.MappedBuffer, error) {
	a.n++
	return &bufferreg.MappedBuffer{Handle: uint32(a.n), W: uint32(w), H: uint32(h), Fmt: drmu.FormatARGB8888, Data: make([]byte, w*h*4)}, nil
}

func TestPresentLayersPushesBackingStoreAndCommits(t *testing.T) {
	installFakeIoctl(t)

	core := compositor.New(&fakeRenderer{}, 3)
	b := &fakeBuilder{}

	reg := bufferreg.New(3)
	cur := cursor.New(3, &fakeAllocator{}, reg)
	clk := fakeclock.NewFakeClock(time.Unix(0, 0))
	sched := frameclock.New(frameclock.DoubleBuffered, clk, 16*time.Millisecond)
	w := window.New(func() atomicreq.Builder { return b }, core.NewPresentFunc(), core.Cache(), cur, sched, 800, 480, 1.0, window.Orientation0)
	core.AddWindow("main", w)

	handle, err := core.CreateBackingStore(800, 480)
	if err != nil {
		t.Fatal(err)
	}

	err = core.PresentLayers(context.Background(), "main", []compositor.LayerDesc{
		{Target: handle.Target, SrcSize: image.Point{X: 800, Y: 480}, DstRect: image.Rect(0, 0, 800, 480)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(b.pushed) != 1 {
		t.Fatalf("pushed = %d layers, want 1", len(b.pushed))
	}
	if b.pushed[0].Format != drmu.FormatXRGB8888 {
		t.Errorf("format = %#x, want XRGB8888", b.pushed[0].Format)
	}
	if b.commits != 1 {
		t.Errorf("commits = %d, want 1", b.commits)
	}
}

func TestCreateBackingStoreFirstCallIsWindowSurface(t *testing.T) {
	installFakeIoctl(t)
	core := compositor.New(&fakeRenderer{}, 3)

	h1, err := core.CreateBackingStore(800, 480)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := h1.Target.(*rtarget.WindowSurface); !ok {
		t.Errorf("first CreateBackingStore = %T, want *rtarget.WindowSurface", h1.Target)
	}

	h2, err := core.CreateBackingStore(200, 100)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := h2.Target.(*rtarget.Offscreen); !ok {
		t.Errorf("second CreateBackingStore = %T, want *rtarget.Offscreen", h2.Target)
	}
}

func TestCollectBackingStoreIgnoresWindowSurface(t *testing.T) {
	installFakeIoctl(t)
	core := compositor.New(&fakeRenderer{}, 3)
	h, _ := core.CreateBackingStore(800, 480)
	if err := core.CollectBackingStore(h); err != nil {
		t.Fatalf("CollectBackingStore on window surface: %v", err)
	}
}
