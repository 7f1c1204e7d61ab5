package drmu

import (
	"fmt"
	"unsafe"
)

// SetClientCap enables a client capability such as ClientCapAtomic.
func SetClientCap(fd int, cap uint64, value uint64) error {
	req := SetClientCap_{Capability: cap, Value: value}
	return Ioctl(fd, ReqSetClientCap, uintptr(unsafe.Pointer(&req)))
}

// SetClientCap_ avoids a name collision between the function and the
// struct in structs.go (both are conventionally named SetClientCap in
// the kernel headers this mirrors).
type SetClientCap_ = SetClientCap

// GetCapability queries a generic capability such as CapAddFB2Modifiers.
func GetCapability(fd int, cap uint64) (uint64, error) {
	req := GetCap{Capability: cap}
	if err := Ioctl(fd, ReqGetCap, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, err
	}
	return req.Value, nil
}

// GetResourceCounts performs the zero-sized first call to
// DRM_IOCTL_MODE_GETRESOURCES that the kernel uses to report array sizes.
func GetResourceCounts(fd int) (ModeCardRes, error) {
	var res ModeCardRes
	if err := Ioctl(fd, ReqModeGetResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return res, err
	}
	return res, nil
}

// GetResources fetches the object ID lists, sizing the request from a
// prior GetResourceCounts call.
func GetResources(fd int, counts ModeCardRes) (fbs, crtcs, connectors, encoders []uint32, err error) {
	fbs = make([]uint32, counts.CountFbs)
	crtcs = make([]uint32, counts.CountCrtcs)
	connectors = make([]uint32, counts.CountConnectors)
	encoders = make([]uint32, counts.CountEncoders)
	res := counts
	if len(fbs) > 0 {
		res.FbIDPtr = uint64(uintptr(unsafe.Pointer(&fbs[0])))
	}
	if len(crtcs) > 0 {
		res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	}
	if len(connectors) > 0 {
		res.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
	}
	if len(encoders) > 0 {
		res.EncoderIDPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}
	if err = Ioctl(fd, ReqModeGetResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return nil, nil, nil, nil, err
	}
	return fbs, crtcs, connectors, encoders, nil
}

// GetPlaneResources fetches the list of plane object IDs.
func GetPlaneResources(fd int) ([]uint32, error) {
	var res ModeGetPlaneRes
	if err := Ioctl(fd, ReqModeGetPlaneResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return nil, err
	}
	planes := make([]uint32, res.CountPlanes)
	if len(planes) > 0 {
		res.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&planes[0])))
	}
	if err := Ioctl(fd, ReqModeGetPlaneResources, uintptr(unsafe.Pointer(&res))); err != nil {
		return nil, err
	}
	return planes, nil
}

// GetPlane fetches a single plane's fixed attributes and supported format
// list.
func GetPlane(fd int, planeID uint32) (ModeGetPlane, []uint32, error) {
	p := ModeGetPlane{PlaneID: planeID}
	if err := Ioctl(fd, ReqModeGetPlane, uintptr(unsafe.Pointer(&p))); err != nil {
		return p, nil, err
	}
	formats := make([]uint32, p.CountFormatTypes)
	if len(formats) > 0 {
		p.FormatTypePtr = uint64(uintptr(unsafe.Pointer(&formats[0])))
	}
	if err := Ioctl(fd, ReqModeGetPlane, uintptr(unsafe.Pointer(&p))); err != nil {
		return p, nil, err
	}
	return p, formats, nil
}

// GetEncoder fetches a single encoder's attributes.
func GetEncoder(fd int, encoderID uint32) (ModeGetEncoder, error) {
	e := ModeGetEncoder{EncoderID: encoderID}
	err := Ioctl(fd, ReqModeGetEncoder, uintptr(unsafe.Pointer(&e)))
	return e, err
}

// GetCrtc fetches a single CRTC's attributes, including its currently
// programmed mode if any.
func GetCrtc(fd int, crtcID uint32) (ModeCrtc, error) {
	c := ModeCrtc{CrtcID: crtcID}
	err := Ioctl(fd, ReqModeGetCrtc, uintptr(unsafe.Pointer(&c)))
	return c, err
}

// GetConnector fetches a connector's attributes, mode list and encoder
// list, performing the kernel's customary two-pass size-then-fill dance.
func GetConnector(fd int, connectorID uint32) (ModeGetConnector, []ModeModeInfo, []uint32, error) {
	c := ModeGetConnector{ConnectorID: connectorID}
	if err := Ioctl(fd, ReqModeGetConnector, uintptr(unsafe.Pointer(&c))); err != nil {
		return c, nil, nil, err
	}
	modes := make([]ModeModeInfo, c.CountModes)
	encoders := make([]uint32, c.CountEncoders)
	if len(modes) > 0 {
		c.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
	}
	if len(encoders) > 0 {
		c.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
	}
	c.CountProps = 0
	c.PropsPtr = 0
	c.PropValuesPtr = 0
	if err := Ioctl(fd, ReqModeGetConnector, uintptr(unsafe.Pointer(&c))); err != nil {
		return c, nil, nil, err
	}
	return c, modes, encoders, nil
}

// ObjectProperty is a single (property ID, value) pair as returned by
// ObjGetProperties.
type ObjectProperty struct {
	PropID uint32
	Value  uint64
}

// ObjGetProperties fetches every property currently set on an object
// (CRTC, connector or plane).
func ObjGetProperties(fd int, objID, objType uint32) ([]ObjectProperty, error) {
	req := ModeObjGetProperties{ObjID: objID, ObjType: objType}
	if err := Ioctl(fd, ReqModeObjGetProperties, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, err
	}
	ids := make([]uint32, req.CountProps)
	values := make([]uint64, req.CountProps)
	if len(ids) > 0 {
		req.PropsPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
		req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if err := Ioctl(fd, ReqModeObjGetProperties, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, err
	}
	out := make([]ObjectProperty, req.CountProps)
	for i := range out {
		out[i] = ObjectProperty{PropID: ids[i], Value: values[i]}
	}
	return out, nil
}

// GetPropertyName resolves a property ID to its kernel-assigned name.
func GetPropertyName(fd int, propID uint32) (string, ModeGetProperty, error) {
	p := ModeGetProperty{PropID: propID}
	if err := Ioctl(fd, ReqModeGetProperty, uintptr(unsafe.Pointer(&p))); err != nil {
		return "", p, err
	}
	n := 0
	for n < len(p.Name) && p.Name[n] != 0 {
		n++
	}
	return string(p.Name[:n]), p, nil
}

// AddFB2WithModifiers registers a multi-plane buffer as a KMS framebuffer.
func AddFB2WithModifiers(fd int, width, height, format uint32, handles, pitches, offsets [4]uint32, modifiers [4]uint64) (uint32, error) {
	req := ModeFBCmd2{
		Width:       width,
		Height:      height,
		PixelFormat: format,
		Flags:       ModeFBModifiers,
		Handles:     handles,
		Pitches:     pitches,
		Offsets:     offsets,
		Modifier:    modifiers,
	}
	if err := Ioctl(fd, ReqModeAddFB2, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, err
	}
	return req.FbID, nil
}

// RmFB releases a previously added framebuffer ID.
func RmFB(fd int, fbID uint32) error {
	id := fbID
	return Ioctl(fd, ReqModeRmFB, uintptr(unsafe.Pointer(&id)))
}

// CreateDumb allocates a dumb (CPU-mappable) scanout buffer.
func CreateDumb(fd int, width, height, bpp uint32) (ModeCreateDumb, error) {
	req := ModeCreateDumb{Width: width, Height: height, Bpp: bpp}
	err := Ioctl(fd, ReqModeCreateDumb, uintptr(unsafe.Pointer(&req)))
	return req, err
}

// MapDumbOffset returns the mmap-able fake offset for a dumb buffer
// handle.
func MapDumbOffset(fd int, handle uint32) (uint64, error) {
	req := ModeMapDumb{Handle: handle}
	if err := Ioctl(fd, ReqModeMapDumb, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, err
	}
	return req.Offset, nil
}

// DestroyDumb frees a dumb buffer handle.
func DestroyDumb(fd int, handle uint32) error {
	req := ModeDestroyDumb{Handle: handle}
	return Ioctl(fd, ReqModeDestroyDumb, uintptr(unsafe.Pointer(&req)))
}

// SetCrtc performs a legacy modeset/pageflip.
func SetCrtc(fd int, crtcID, fbID uint32, x, y uint32, connectors []uint32, mode *ModeModeInfo) error {
	req := ModeCrtc{CrtcID: crtcID, FbID: fbID, X: x, Y: y}
	if mode != nil {
		req.Mode = *mode
		req.ModeValid = 1
	}
	if len(connectors) > 0 {
		req.SetConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
		req.CountConnectors = uint32(len(connectors))
	}
	return Ioctl(fd, ReqModeSetCrtc, uintptr(unsafe.Pointer(&req)))
}

// PageFlip issues a non-blocking primary-plane flip with
// DRM_MODE_PAGE_FLIP_EVENT set.
func PageFlip(fd int, crtcID, fbID uint32, userData uint64) error {
	req := ModeCrtcPageFlip{CrtcID: crtcID, FbID: fbID, Flags: ModePageFlipEvent, UserData: userData}
	return Ioctl(fd, ReqModePageFlip, uintptr(unsafe.Pointer(&req)))
}

// SetPlane performs a single legacy (non-atomic) plane update.
func SetPlane(fd int, s ModeSetPlane) error {
	return Ioctl(fd, ReqModeSetPlane, uintptr(unsafe.Pointer(&s)))
}

// CreatePropBlob uploads a property blob (used for the MODE_ID mode
// blob) and returns its ID.
func CreatePropBlob(fd int, data []byte) (uint32, error) {
	req := ModeCreateBlob{Length: uint32(len(data))}
	if len(data) > 0 {
		req.Data = uint64(uintptr(unsafe.Pointer(&data[0])))
	}
	if err := Ioctl(fd, ReqModeCreatePropBlob, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, err
	}
	return req.BlobID, nil
}

// DestroyPropBlob releases a blob created by CreatePropBlob.
func DestroyPropBlob(fd int, blobID uint32) error {
	req := ModeDestroyBlob{BlobID: blobID}
	return Ioctl(fd, ReqModeDestroyPropBlob, uintptr(unsafe.Pointer(&req)))
}

// AtomicCommit issues DRM_IOCTL_MODE_ATOMIC. objs maps an object ID to
// the (propID, value) pairs to write on it; iteration order is
// irrelevant to the kernel but kept stable here for deterministic
// testing against a fake ioctl backend.
func AtomicCommit(fd int, flags uint32, userData uint64, objOrder []uint32, objProps map[uint32][]ObjectProperty) error {
	var objs []uint32
	var countProps []uint32
	var propIDs []uint32
	var propValues []uint64
	for _, obj := range objOrder {
		props := objProps[obj]
		objs = append(objs, obj)
		countProps = append(countProps, uint32(len(props)))
		for _, p := range props {
			propIDs = append(propIDs, p.PropID)
			propValues = append(propValues, p.Value)
		}
	}
	req := ModeAtomic{Flags: flags, CountObjs: uint32(len(objs)), UserData: userData}
	if len(objs) > 0 {
		req.ObjsPtr = uint64(uintptr(unsafe.Pointer(&objs[0])))
		req.CountPropsPtr = uint64(uintptr(unsafe.Pointer(&countProps[0])))
	}
	if len(propIDs) > 0 {
		req.ObjPropsPtr = uint64(uintptr(unsafe.Pointer(&propIDs[0])))
		req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&propValues[0])))
	}
	if err := Ioctl(fd, ReqModeAtomic, uintptr(unsafe.Pointer(&req))); err != nil {
		return fmt.Errorf("drmu: atomic commit: %w", err)
	}
	return nil
}

// CursorSet2 programs the cursor plane on drivers that lack a universal
// CURSOR-type plane (DRM_IOCTL_MODE_CURSOR2), including the hotspot.
func CursorSet2(fd int, crtcID uint32, handle, width, height uint32, hotX, hotY int32) error {
	req := ModeCursor2{
		Flags: ModeCursorBO, CrtcID: crtcID, Width: width, Height: height,
		Handle: handle, HotX: hotX, HotY: hotY,
	}
	return Ioctl(fd, ReqModeCursor2, uintptr(unsafe.Pointer(&req)))
}

// MoveCursor repositions the cursor without reprogramming its image.
func MoveCursor(fd int, crtcID uint32, x, y int32) error {
	req := ModeCursor2{Flags: ModeCursorMove, CrtcID: crtcID, X: x, Y: y}
	return Ioctl(fd, ReqModeCursor2, uintptr(unsafe.Pointer(&req)))
}
