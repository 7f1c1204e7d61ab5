package kms

// This file exposes construction helpers that bypass ioctl for use by
// this package's own tests and by the tests of packages built on top of
// Device (atomicreq, in particular), which need a fully-formed Device
// without a real DRM node. Device's fields stay unexported everywhere
// else; only this narrow, explicit builder reaches into them.

// FakePlaneSpec describes one plane for NewFakeDevice.
type FakePlaneSpec struct {
	ID            uint32
	Type          PlaneType
	PossibleCrtcs uint32
	Formats       []uint32
	Rotations     []int64
	ZposKind      ZposKind
	ZposMin, ZposMax int64
	Props         PlaneProps
}

// FakeCrtcSpec describes one CRTC for NewFakeDevice.
type FakeCrtcSpec struct {
	ID                     uint32
	SupportsHardwareCursor bool
	MinZpos, MaxZpos       int64
}

// NewFakeDevice builds a Device from explicit plane/CRTC descriptions,
// without opening a DRM node or issuing any ioctl. fd is recorded as-is
// and is typically a pipe or memfd descriptor under a fake
// internal/drmu backend in tests that also exercise Commit.
func NewFakeDevice(fd int, crtcSpecs []FakeCrtcSpec, planeSpecs []FakePlaneSpec, atomic bool) *Device {
	d := &Device{fd: fd, atomic: atomic}

	d.crtcs = make([]Crtc, len(crtcSpecs))
	for i, cs := range crtcSpecs {
		d.crtcs[i] = Crtc{
			ID: cs.ID, Index: i, Bitmask: 1 << uint(i),
			MinZpos: cs.MinZpos, MaxZpos: cs.MaxZpos,
			SupportsHardwareCursor: cs.SupportsHardwareCursor,
			modeID:                 PropNotSupported,
			activeID:               PropNotSupported,
		}
	}

	d.planes = make([]Plane, len(planeSpecs))
	for i, ps := range planeSpecs {
		p := &d.planes[i]
		p.ID = ps.ID
		p.Type = ps.Type
		p.PossibleCrtcs = ps.PossibleCrtcs
		p.formats = make(map[uint32]bool, len(ps.Formats))
		for _, f := range ps.Formats {
			p.formats[f] = true
		}
		p.modifiers = make(map[uint64]bool)
		p.rotations = make(map[int64]bool, len(ps.Rotations))
		for _, r := range ps.Rotations {
			p.rotations[r] = true
		}
		p.zposKind = ps.ZposKind
		p.zposMin = ps.ZposMin
		p.zposMax = ps.ZposMax
		p.props = planeProps{
			crtcID: ps.Props.CrtcID, fbID: ps.Props.FbID,
			srcX: ps.Props.SrcX, srcY: ps.Props.SrcY, srcW: ps.Props.SrcW, srcH: ps.Props.SrcH,
			crtcX: ps.Props.CrtcX, crtcY: ps.Props.CrtcY, crtcW: ps.Props.CrtcW, crtcH: ps.Props.CrtcH,
			zpos: ps.Props.Zpos, rotation: ps.Props.Rotation, typ: ps.Props.Type, inFmts: ps.Props.InFormats,
		}
	}
	return d
}

// DefaultPlaneProps returns a PlaneProps with every property resolved to
// a distinct, deterministic fake ID, for tests that don't care about
// the exact numbers.
func DefaultPlaneProps(base int32) PlaneProps {
	return PlaneProps{
		CrtcID: base, FbID: base + 1,
		SrcX: base + 2, SrcY: base + 3, SrcW: base + 4, SrcH: base + 5,
		CrtcX: base + 6, CrtcY: base + 7, CrtcW: base + 8, CrtcH: base + 9,
		Zpos: base + 10, Rotation: base + 11, Type: base + 12, InFormats: base + 13,
	}
}
