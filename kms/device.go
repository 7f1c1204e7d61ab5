// Package kms owns a DRM device's resource snapshot: connectors, encoders,
// CRTCs and planes, their property IDs and their immutable capability
// bits. It issues the ioctls through internal/drmu and resolves the
// fixed subset of per-plane properties the atomic builder needs, once,
// at open time.
package kms

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/pixeldrift/compositor/internal/drmu"
)

// ErrConfig reports that a device could not be opened or its resources
// could not be queried into a usable configuration.
var ErrConfig = errors.New("kms: device configuration error")

// PropNotSupported marks a property ID the device does not expose.
const PropNotSupported int32 = -1

// PlaneType mirrors the immutable "type" property value of a plane.
type PlaneType int

const (
	PlaneTypeOverlay PlaneType = iota
	PlaneTypePrimary
	PlaneTypeCursor
)

func (t PlaneType) String() string {
	switch t {
	case PlaneTypePrimary:
		return "primary"
	case PlaneTypeCursor:
		return "cursor"
	default:
		return "overlay"
	}
}

// ZposKind describes how a plane's zpos property behaves.
type ZposKind int

const (
	ZposNone ZposKind = iota
	ZposImmutable
	ZposBitmask
	ZposSignedRange
	ZposUnsignedRange
)

// planeProps is the fixed per-plane property-ID subset resolved at open
// time, per spec.
type planeProps struct {
	crtcID   int32
	fbID     int32
	srcX     int32
	srcY     int32
	srcW     int32
	srcH     int32
	crtcX    int32
	crtcY    int32
	crtcW    int32
	crtcH    int32
	zpos     int32
	rotation int32
	typ      int32
	inFmts   int32
}

// Plane is a snapshot of one KMS plane object.
type Plane struct {
	ID            uint32
	Type          PlaneType
	PossibleCrtcs uint32 // immutable, per invariant (i)

	formats   map[uint32]bool   // pixel format -> supported
	modifiers map[uint64]bool   // modifiers advertised via IN_FORMATS
	rotations map[int64]bool    // rotation values recorded at snapshot time

	zposKind  ZposKind
	zposMin   int64
	zposMax   int64
	zposBits  int64 // valid when zposKind == ZposBitmask

	props planeProps
}

// SupportsFormat reports whether the plane can scan out the given pixel
// format, optionally constrained to a specific modifier.
func (p *Plane) SupportsFormat(format uint32, modifier uint64, hasModifier bool) bool {
	if !p.formats[format] {
		return false
	}
	if !hasModifier {
		return true
	}
	return p.modifiers[modifier]
}

// Crtc is a snapshot of one KMS CRTC object.
type Crtc struct {
	ID     uint32
	Index  int
	Bitmask uint32 // 1 << Index

	MinZpos int64
	MaxZpos int64

	SupportsHardwareCursor bool

	connectorID uint32
	modeID      int32 // MODE_ID blob property, -1 if never uploaded
	activeID    int32 // ACTIVE property, -1 if absent

	// scanout is the one-shot callback slot fired when this CRTC's
	// pageflip/vblank event arrives. Populated by atomicreq per commit.
	scanout func(seq uint64, sec, usec uint32)
}

// SetScanoutCallback installs the one-shot callback for the next
// pageflip event on this CRTC, clearing any previous installation.
func (c *Crtc) SetScanoutCallback(cb func(seq uint64, sec, usec uint32)) {
	c.scanout = cb
}

// TakeScanoutCallback returns and clears the installed callback, if any.
func (c *Crtc) TakeScanoutCallback() func(seq uint64, sec, usec uint32) {
	cb := c.scanout
	c.scanout = nil
	return cb
}

// Encoder is a snapshot of one KMS encoder object.
type Encoder struct {
	ID            uint32
	PossibleCrtcs uint32
	CrtcID        uint32
}

// Connector is a snapshot of one KMS connector object.
type Connector struct {
	ID       uint32
	Type     uint32
	Connected bool

	MmWidth  uint32
	MmHeight uint32

	Modes      []drmu.ModeModeInfo
	EncoderIDs []uint32
}

// Device owns a DRM file descriptor and the resource snapshot taken at
// open time. All ioctl-issuing methods take mu, per the single-mutex
// contract.
type Device struct {
	mu sync.Mutex

	f  *os.File
	fd int

	atomic bool // true if DRM_CLIENT_CAP_ATOMIC was accepted

	connectors []Connector
	encoders   []Encoder
	crtcs      []Crtc
	planes     []Plane
}

// Open opens path, negotiates client capabilities and snapshots every
// connector, encoder, CRTC and plane the device exposes.
func Open(path string) (*Device, error) {
	f, err := drmu.OpenCard(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	fd := int(f.Fd())

	if err := drmu.SetClientCap(fd, drmu.ClientCapUniversalPlanes, 1); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: universal planes not supported: %v", ErrConfig, err)
	}

	d := &Device{f: f, fd: fd}
	d.atomic = drmu.SetClientCap(fd, drmu.ClientCapAtomic, 1) == nil

	if err := d.snapshot(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return d, nil
}

// IsAtomic reports whether DRM_CLIENT_CAP_ATOMIC was accepted by the
// kernel for this device.
func (d *Device) IsAtomic() bool {
	return d.atomic
}

// FD returns the underlying DRM file descriptor, for use by components
// (atomicreq, bufferreg, cursor) that issue their own ioctls through
// internal/drmu against the same device.
func (d *Device) FD() int {
	return d.fd
}

// Close releases the device file descriptor. It does not attempt to
// restore any previous CRTC configuration.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}

func (d *Device) snapshot() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts, err := drmu.GetResourceCounts(d.fd)
	if err != nil {
		return fmt.Errorf("get resource counts: %w", err)
	}
	_, crtcIDs, connectorIDs, encoderIDs, err := drmu.GetResources(d.fd, counts)
	if err != nil {
		return fmt.Errorf("get resources: %w", err)
	}

	d.crtcs = make([]Crtc, len(crtcIDs))
	for i, id := range crtcIDs {
		raw, err := drmu.GetCrtc(d.fd, id)
		if err != nil {
			return fmt.Errorf("get crtc %d: %w", id, err)
		}
		c := &d.crtcs[i]
		c.ID = id
		c.Index = i
		c.Bitmask = 1 << uint(i)
		c.modeID = PropNotSupported
		c.activeID = PropNotSupported
		if err := d.resolveCrtcProps(c); err != nil {
			return fmt.Errorf("resolve crtc %d properties: %w", id, err)
		}
		_ = raw
	}

	d.encoders = make([]Encoder, len(encoderIDs))
	for i, id := range encoderIDs {
		raw, err := drmu.GetEncoder(d.fd, id)
		if err != nil {
			return fmt.Errorf("get encoder %d: %w", id, err)
		}
		d.encoders[i] = Encoder{ID: id, PossibleCrtcs: raw.PossibleCrtcs, CrtcID: raw.CrtcID}
	}

	d.connectors = make([]Connector, len(connectorIDs))
	for i, id := range connectorIDs {
		raw, modes, encIDs, err := drmu.GetConnector(d.fd, id)
		if err != nil {
			return fmt.Errorf("get connector %d: %w", id, err)
		}
		d.connectors[i] = Connector{
			ID:         id,
			Type:       raw.ConnectorType,
			Connected:  raw.Connection == drmu.ModeConnected,
			MmWidth:    raw.MmWidth,
			MmHeight:   raw.MmHeight,
			Modes:      modes,
			EncoderIDs: encIDs,
		}
	}

	planeIDs, err := drmu.GetPlaneResources(d.fd)
	if err != nil {
		return fmt.Errorf("get plane resources: %w", err)
	}
	d.planes = make([]Plane, len(planeIDs))
	for i, id := range planeIDs {
		raw, formats, err := drmu.GetPlane(d.fd, id)
		if err != nil {
			return fmt.Errorf("get plane %d: %w", id, err)
		}
		p := &d.planes[i]
		p.ID = id
		p.PossibleCrtcs = raw.PossibleCrtcs
		p.formats = make(map[uint32]bool, len(formats))
		for _, f := range formats {
			p.formats[f] = true
		}
		if err := d.resolvePlaneProps(p); err != nil {
			return fmt.Errorf("resolve plane %d properties: %w", id, err)
		}
	}
	return nil
}

// resolvePlaneProps fetches every property currently set on the plane
// object and resolves the fixed subset the atomic builder needs. Unknown
// IDs are left at PropNotSupported.
func (d *Device) resolvePlaneProps(p *Plane) error {
	p.props = planeProps{
		crtcID: PropNotSupported, fbID: PropNotSupported,
		srcX: PropNotSupported, srcY: PropNotSupported, srcW: PropNotSupported, srcH: PropNotSupported,
		crtcX: PropNotSupported, crtcY: PropNotSupported, crtcW: PropNotSupported, crtcH: PropNotSupported,
		zpos: PropNotSupported, rotation: PropNotSupported, typ: PropNotSupported, inFmts: PropNotSupported,
	}
	props, err := drmu.ObjGetProperties(d.fd, p.ID, drmu.ModeObjectPlane)
	if err != nil {
		return err
	}
	p.rotations = make(map[int64]bool)
	p.modifiers = make(map[uint64]bool)
	for _, pr := range props {
		name, meta, err := drmu.GetPropertyName(d.fd, pr.PropID)
		if err != nil {
			return err
		}
		switch name {
		case drmu.PropCrtcID:
			p.props.crtcID = int32(pr.PropID)
		case drmu.PropFBID:
			p.props.fbID = int32(pr.PropID)
		case drmu.PropSrcX:
			p.props.srcX = int32(pr.PropID)
		case drmu.PropSrcY:
			p.props.srcY = int32(pr.PropID)
		case drmu.PropSrcW:
			p.props.srcW = int32(pr.PropID)
		case drmu.PropSrcH:
			p.props.srcH = int32(pr.PropID)
		case drmu.PropCrtcX:
			p.props.crtcX = int32(pr.PropID)
		case drmu.PropCrtcY:
			p.props.crtcY = int32(pr.PropID)
		case drmu.PropCrtcW:
			p.props.crtcW = int32(pr.PropID)
		case drmu.PropCrtcH:
			p.props.crtcH = int32(pr.PropID)
		case drmu.PropZpos:
			p.props.zpos = int32(pr.PropID)
			p.zposKind, p.zposMin, p.zposMax, p.zposBits = classifyZpos(meta)
		case drmu.PropRotation:
			p.props.rotation = int32(pr.PropID)
			p.rotations[int64(pr.Value)] = true
		case drmu.PropType:
			p.props.typ = int32(pr.PropID)
			switch pr.Value {
			case drmu.PlaneTypePrimary:
				p.Type = PlaneTypePrimary
			case drmu.PlaneTypeCursor:
				p.Type = PlaneTypeCursor
			default:
				p.Type = PlaneTypeOverlay
			}
		case drmu.PropInFormats:
			p.props.inFmts = int32(pr.PropID)
			// The drm_format_modifier_blob payload is not parsed, so no
			// modifiers are recorded: SupportsFormat rejects every request
			// that names a modifier, linear included, and judges requests
			// without one on pixel format alone.
		}
	}
	return nil
}

// classifyZpos infers the property's range/bitmask/immutable kind from
// its Flags. It does not read the property's values, so the returned
// min, max and bits are always 0.
func classifyZpos(meta drmu.ModeGetProperty) (kind ZposKind, min, max, bits int64) {
	const flagImmutable = 1 << 2
	const flagRange = 1 << 1
	const flagSignedRange = 1 << 8
	const flagBitmask = 1 << 3
	switch {
	case meta.Flags&flagImmutable != 0:
		return ZposImmutable, 0, 0, 0
	case meta.Flags&flagBitmask != 0:
		return ZposBitmask, 0, 0, 0
	case meta.Flags&flagSignedRange != 0:
		return ZposSignedRange, 0, 0, 0
	case meta.Flags&flagRange != 0:
		return ZposUnsignedRange, 0, 0, 0
	default:
		return ZposNone, 0, 0, 0
	}
}

func (d *Device) resolveCrtcProps(c *Crtc) error {
	props, err := drmu.ObjGetProperties(d.fd, c.ID, drmu.ModeObjectCrtc)
	if err != nil {
		return err
	}
	for _, pr := range props {
		name, _, err := drmu.GetPropertyName(d.fd, pr.PropID)
		if err != nil {
			return err
		}
		switch name {
		case drmu.PropModeID:
			c.modeID = int32(pr.PropID)
		case drmu.PropActive:
			c.activeID = int32(pr.PropID)
		}
	}
	return nil
}

// Crtcs returns the device's CRTC snapshot. The returned slice aliases
// internal storage and must not be mutated by callers outside this
// package; atomicreq, which lives in the same module boundary, reaches
// into the concrete fields it needs directly.
func (d *Device) Crtcs() []Crtc { return d.crtcs }

// Planes returns the device's plane snapshot.
func (d *Device) Planes() []Plane { return d.planes }

// Connectors returns the device's connector snapshot.
func (d *Device) Connectors() []Connector { return d.connectors }

// Encoders returns the device's encoder snapshot.
func (d *Device) Encoders() []Encoder { return d.encoders }

// Lock acquires the device mutex for the duration of an ioctl-issuing
// operation performed by another package against the same fd (atomicreq,
// bufferreg, cursor). Unlock must be called exactly once per Lock.
func (d *Device) Lock()   { d.mu.Lock() }
func (d *Device) Unlock() { d.mu.Unlock() }

// PlaneMinZpos returns the minimum zpos recorded for the plane. Open
// does not fetch the zpos range (see classifyZpos), so on a device it
// opened this is always 0.
func (d *Device) PlaneMinZpos(i int) int64 { return d.planes[i].zposMin }

// PlaneMaxZpos returns the maximum zpos recorded for the plane. Open
// does not fetch the zpos range (see classifyZpos), so on a device it
// opened this is always 0.
func (d *Device) PlaneMaxZpos(i int) int64 { return d.planes[i].zposMax }

// PlaneSupportsRotationValue reports whether value is among the
// rotation values recorded for the plane. Open records only the
// rotation property's current value, not every bit it accepts.
func (d *Device) PlaneSupportsRotationValue(i int, value int64) bool {
	return d.planes[i].rotations[value]
}

// PlaneSupportsSettingZpos reports whether the plane exposes a
// non-immutable zpos property.
func (d *Device) PlaneSupportsSettingZpos(i int) bool {
	k := d.planes[i].zposKind
	return k != ZposNone && k != ZposImmutable
}

// PlaneProps exposes the resolved property-ID subset for plane i to
// atomicreq, which needs the raw IDs to build ObjSetProperty/atomic
// requests. PropNotSupported is returned for any property the plane
// doesn't carry.
type PlaneProps struct {
	CrtcID, FbID                   int32
	SrcX, SrcY, SrcW, SrcH         int32
	CrtcX, CrtcY, CrtcW, CrtcH     int32
	Zpos, Rotation, Type, InFormats int32
}

// PlaneProps returns the resolved property IDs for plane i.
func (d *Device) PlaneProps(i int) PlaneProps {
	p := d.planes[i].props
	return PlaneProps{
		CrtcID: p.crtcID, FbID: p.fbID,
		SrcX: p.srcX, SrcY: p.srcY, SrcW: p.srcW, SrcH: p.srcH,
		CrtcX: p.crtcX, CrtcY: p.crtcY, CrtcW: p.crtcW, CrtcH: p.crtcH,
		Zpos: p.zpos, Rotation: p.rotation, Type: p.typ, InFormats: p.inFmts,
	}
}

// CrtcModeProps returns the MODE_ID and ACTIVE property IDs for crtc i,
// PropNotSupported if either is absent (legacy-only device).
func (d *Device) CrtcModeProps(i int) (modeID, active int32) {
	return d.crtcs[i].modeID, d.crtcs[i].activeID
}
