// Package drmu wraps the Linux DRM/KMS ioctl ABI used by package kms and
// package atomicreq. It deliberately stays a thin, allocation-light shim
// over golang.org/x/sys/unix rather than a cgo binding against libdrm: the
// ioctl request numbers and structure layouts are a stable kernel uAPI,
// and the rest of this retrieval pack's ioctl-heavy code (queue runners,
// hypervisor control planes) reaches for unix.Syscall directly rather than
// linking a C helper library for this kind of fixed, well-documented
// surface.
package drmu

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Direction bits for the generic _IOC encoding used by Linux ioctls.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// drmIoctlBase is the 'd' ioctl type reserved for DRM.
const drmIoctlBase = 0x64

// ioc computes a Linux ioctl request number the same way the kernel's
// _IOC/_IOWR macros do.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(nr, size uintptr) uintptr  { return ioc(iocWrite, drmIoctlBase, nr, size) }
func ior(nr, size uintptr) uintptr  { return ioc(iocRead, drmIoctlBase, nr, size) }
func iowr(nr, size uintptr) uintptr { return ioc(iocWrite|iocRead, drmIoctlBase, nr, size) }
func io_(nr uintptr) uintptr        { return ioc(iocNone, drmIoctlBase, nr, 0) }

// Syscall issues the raw ioctl syscall. It is a package-level variable,
// in the style of this module's platform-selected function vars
// (see package wsi in the upstream driver stack this was adapted from),
// so tests can substitute an in-memory double without a real DRM node.
var Syscall = unix.Syscall

// Ioctl issues a single ioctl against fd, retrying on EINTR as is
// conventional for blocking DRM ioctls.
func Ioctl(fd int, req uintptr, arg uintptr) error {
	for {
		_, _, errno := Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR {
			continue
		}
		return fmt.Errorf("drmu: ioctl %#x: %w", req, errno)
	}
}

// OpenCard opens a DRM primary device node, e.g. "/dev/dri/card0".
func OpenCard(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("drmu: open %s: %w", path, err)
	}
	return f, nil
}
