package rtarget_test

import (
	"testing"

	"github.com/pixeldrift/compositor/renderer"
	"github.com/pixeldrift/compositor/rtarget"
)

type fakeTarget struct {
	w, h      int
	destroyed bool
}

func (t *fakeTarget) Destroy()    { t.destroyed = true }
func (t *fakeTarget) Width() int  { return t.w }
func (t *fakeTarget) Height() int { return t.h }

type fakeRenderer struct {
	swapCalls   int
	offscreens  int
}

func (r *fakeRenderer) Name() string { return "fake" }
func (r *fakeRenderer) SwapBuffers() (renderer.Target, error) {
	r.swapCalls++
	return &fakeTarget{w: 1920, h: 1080}, nil
}
func (r *fakeRenderer) NewOffscreenTarget(w, h int) (renderer.Target, error) {
	r.offscreens++
	return &fakeTarget{w: w, h: h}, nil
}

func TestWindowSurfaceIsSingleton(t *testing.T) {
	r := &fakeRenderer{}
	c := rtarget.New(r)
	ws1, err := c.WindowSurface()
	if err != nil {
		t.Fatal(err)
	}
	ws2, err := c.WindowSurface()
	if err != nil {
		t.Fatal(err)
	}
	if ws1 != ws2 {
		t.Error("WindowSurface: expected the same instance on repeated calls")
	}
	if r.swapCalls != 1 {
		t.Errorf("swapCalls = %d, want 1", r.swapCalls)
	}
}

func TestCreateOffscreenReusesStalePoolOnExactSize(t *testing.T) {
	r := &fakeRenderer{}
	c := rtarget.New(r)

	o1, err := c.CreateOffscreen(200, 100)
	if err != nil {
		t.Fatal(err)
	}
	c.Collect(o1)

	o2, err := c.CreateOffscreen(200, 100)
	if err != nil {
		t.Fatal(err)
	}
	if o1 != o2 {
		t.Error("CreateOffscreen: expected reuse of stale target with matching size")
	}
	if r.offscreens != 1 {
		t.Errorf("offscreens allocated = %d, want 1", r.offscreens)
	}
}

func TestCreateOffscreenDifferentSizeAllocatesNew(t *testing.T) {
	r := &fakeRenderer{}
	c := rtarget.New(r)

	o1, _ := c.CreateOffscreen(200, 100)
	c.Collect(o1)
	o2, _ := c.CreateOffscreen(300, 100)
	if o1 == o2 {
		t.Error("CreateOffscreen: should not reuse a differently-sized stale target")
	}
	if r.offscreens != 2 {
		t.Errorf("offscreens allocated = %d, want 2", r.offscreens)
	}
}

func TestDrainDestroysStaleTargets(t *testing.T) {
	r := &fakeRenderer{}
	c := rtarget.New(r)

	o, _ := c.CreateOffscreen(64, 64)
	c.Collect(o)
	c.Drain()

	backend := o.Backend().(*fakeTarget)
	if !backend.destroyed {
		t.Error("Drain: expected stale target to be destroyed")
	}
}
