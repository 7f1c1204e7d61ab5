package bufferreg_test

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/bufferreg"
	"github.com/pixeldrift/compositor/internal/drmu"
)

type fakeFB struct {
	addCalls int
	rmCalls  int
	nextID   uint32
}

func (f *fakeFB) install(t *testing.T) {
	t.Helper()
	orig := drmu.Syscall
	f.nextID = 1
	drmu.Syscall = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
		switch a2 {
		case drmu.ReqModeAddFB2:
			f.addCalls++
			(*drmu.ModeFBCmd2)(unsafe.Pointer(a3)).FbID = f.nextID
			f.nextID++
			return 0, 0, 0
		case drmu.ReqModeRmFB:
			f.rmCalls++
			return 0, 0, 0
		default:
			return 0, 0, 0
		}
	}
	t.Cleanup(func() { drmu.Syscall = orig })
}

func TestFBIDCachesPerIdentity(t *testing.T) {
	f := &fakeFB{}
	f.install(t)

	reg := bufferreg.New(3)
	buf := &bufferreg.GBMBuffer{BOPtr: 0x1000, W: 100, H: 100, Fmt: 0x34325258}

	id1, err := reg.FBID(buf)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := reg.FBID(buf)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("FBID not cached: %d != %d", id1, id2)
	}
	if f.addCalls != 1 {
		t.Errorf("addCalls = %d, want 1", f.addCalls)
	}
}

func TestFBIDDistinctPerIdentity(t *testing.T) {
	f := &fakeFB{}
	f.install(t)

	reg := bufferreg.New(3)
	a := &bufferreg.GBMBuffer{BOPtr: 0x1000, W: 100, H: 100, Fmt: 0x34325258}
	b := &bufferreg.GBMBuffer{BOPtr: 0x2000, W: 100, H: 100, Fmt: 0x34325258}

	idA, _ := reg.FBID(a)
	idB, _ := reg.FBID(b)
	if idA == idB {
		t.Errorf("distinct buffers got the same fb_id %d", idA)
	}
	if f.addCalls != 2 {
		t.Errorf("addCalls = %d, want 2", f.addCalls)
	}
}

func TestDestroyInvokesCallbackEvenWithoutCachedFB(t *testing.T) {
	f := &fakeFB{}
	f.install(t)

	reg := bufferreg.New(3)
	buf := &bufferreg.GBMBuffer{BOPtr: 0x3000, W: 10, H: 10, Fmt: 0x34325258}

	called := false
	if err := reg.Destroy(buf, func() { called = true }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("Destroy: destroy callback not invoked")
	}
	if f.rmCalls != 0 {
		t.Errorf("rmCalls = %d, want 0 (no fb was ever imported)", f.rmCalls)
	}
}

func TestDestroyRemovesCachedFB(t *testing.T) {
	f := &fakeFB{}
	f.install(t)

	reg := bufferreg.New(3)
	buf := &bufferreg.GBMBuffer{BOPtr: 0x4000, W: 10, H: 10, Fmt: 0x34325258}
	if _, err := reg.FBID(buf); err != nil {
		t.Fatal(err)
	}

	called := false
	if err := reg.Destroy(buf, func() { called = true }); err != nil {
		t.Fatal(err)
	}
	if !called || f.rmCalls != 1 {
		t.Errorf("Destroy: called=%v rmCalls=%d, want true/1", called, f.rmCalls)
	}

	// Re-importing after destroy gets a fresh fb_id, not reused from cache.
	if _, err := reg.FBID(buf); err != nil {
		t.Fatal(err)
	}
	if f.addCalls != 2 {
		t.Errorf("addCalls after re-import = %d, want 2", f.addCalls)
	}
}
