package kms_test

import (
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/internal/drmu"
	"github.com/pixeldrift/compositor/kms"
)

// installFakeIoctl replaces drmu.Syscall with a double that answers every
// ioctl successfully without touching the request buffer, so every
// resource count the device queries comes back zero.
func installFakeIoctl(t *testing.T, acceptAtomic bool) {
	t.Helper()
	orig := drmu.Syscall
	drmu.Syscall = func(trap, a1, a2, a3 uintptr) (uintptr, uintptr, unix.Errno) {
		if !acceptAtomic && a2 == drmu.ReqSetClientCap {
			req := (*drmu.SetClientCap)(unsafe.Pointer(a3))
			if req.Capability == drmu.ClientCapAtomic {
				return 0, 0, unix.EOPNOTSUPP
			}
		}
		return 0, 0, 0
	}
	t.Cleanup(func() { drmu.Syscall = orig })
}

func TestOpenSnapshotsEmptyDevice(t *testing.T) {
	installFakeIoctl(t, true)

	d, err := kms.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if !d.IsAtomic() {
		t.Error("IsAtomic() = false, want true when ClientCapAtomic is accepted")
	}
	if len(d.Crtcs()) != 0 || len(d.Planes()) != 0 || len(d.Connectors()) != 0 || len(d.Encoders()) != 0 {
		t.Errorf("expected empty snapshot from a zero-count device, got crtcs=%d planes=%d connectors=%d encoders=%d",
			len(d.Crtcs()), len(d.Planes()), len(d.Connectors()), len(d.Encoders()))
	}
	if d.FD() < 0 {
		t.Error("FD() returned a negative descriptor")
	}
}

func TestOpenFallsBackWhenAtomicRejected(t *testing.T) {
	installFakeIoctl(t, false)

	d, err := kms.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.IsAtomic() {
		t.Error("IsAtomic() = true, want false when ClientCapAtomic is rejected")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	installFakeIoctl(t, true)

	if _, err := kms.Open("/nonexistent/path/to/card0"); err == nil {
		t.Fatal("expected an error opening a nonexistent device path")
	}
}

func TestLockUnlockGuardsConcurrentUse(t *testing.T) {
	installFakeIoctl(t, true)

	d, err := kms.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	d.Lock()
	d.Unlock()
}
