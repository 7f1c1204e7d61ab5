// Package atomicreq accumulates a single CRTC's worth of plane updates
// and commits them either through the atomic ioctl or, on devices that
// lack atomic support, through the legacy SetCrtc/PageFlip/SetPlane
// calls.
package atomicreq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pixeldrift/compositor/internal/bitm"
	"github.com/pixeldrift/compositor/internal/drmu"
	"github.com/pixeldrift/compositor/kms"
)

// ErrDriverBusy reports that the driver returned EBUSY on a non-blocking
// commit; the caller has already been retried once as blocking.
var ErrDriverBusy = errors.New("atomicreq: driver busy")

// ErrDriverRejected reports that the driver rejected a commit for a
// reason other than EBUSY.
var ErrDriverRejected = errors.New("atomicreq: driver rejected commit")

// ErrResourceExhausted reports that no candidate plane could be found
// for a requested layer.
var ErrResourceExhausted = errors.New("atomicreq: no plane available")

// Rect is an integer rectangle, used both for the sample source
// (16.16 fixed point converted internally) and destination coordinates.
type Rect struct {
	X, Y, W, H int
}

// PushFBLayerSpec describes one composited layer to place on a plane.
type PushFBLayerSpec struct {
	FBID        uint32
	Format      uint32
	Modifier    uint64
	HasModifier bool
	Src, Dst    Rect
	Rotation    int64
	HasRotation bool

	PreferCursor bool

	ReleaseCallback  func(keepalive any)
	ReleaseKeepalive any
}

// reservation records what a single push_fb_layer reserved, so Commit
// can call release callbacks exactly once, in reverse insertion order,
// whether or not the commit succeeds.
type reservation struct {
	planeIndex int
	release    func(keepalive any)
	keepalive  any
}

// Builder is the interface both concrete strategies satisfy; the
// compositor core only depends on this, never on the concrete type.
type Builder interface {
	SetConnector(id uint32)
	SetMode(mode drmu.ModeModeInfo)
	UnsetMode()
	PushFBLayer(spec PushFBLayerSpec) error
	Commit(ctx context.Context, blocking bool) error
}

// AtomicBuilder accumulates plane property writes for submission through
// DRM_IOCTL_MODE_ATOMIC.
type AtomicBuilder struct {
	dev  *kms.Device
	crtc *kms.Crtc

	modeset     bool
	connectorID uint32
	mode        drmu.ModeModeInfo
	hasMode     bool
	unsetMode   bool

	reserved     bitm.Bitm[uint32] // one bit per plane index, this commit's reservations only
	reservations []reservation

	objOrder []uint32
	objProps map[uint32][]drmu.ObjectProperty

	onScanout func(now time.Time)
}

// NewAtomicBuilder constructs a builder targeting crtc on dev.
func NewAtomicBuilder(dev *kms.Device, crtc *kms.Crtc, onScanout func(now time.Time)) *AtomicBuilder {
	b := &AtomicBuilder{dev: dev, crtc: crtc, onScanout: onScanout}
	b.reserved.Grow((len(dev.Planes()) + 31) / 32)
	b.objProps = make(map[uint32][]drmu.ObjectProperty)
	return b
}

func (b *AtomicBuilder) SetConnector(id uint32) {
	b.modeset = true
	b.connectorID = id
}

func (b *AtomicBuilder) SetMode(mode drmu.ModeModeInfo) {
	b.modeset = true
	b.mode = mode
	b.hasMode = true
}

func (b *AtomicBuilder) UnsetMode() {
	b.modeset = true
	b.unsetMode = true
}

// PushFBLayer selects a plane per the five-step algorithm, reserves it
// and records the property writes. The first call on a fresh builder is
// always treated as the primary layer (spec.md §4.3).
func (b *AtomicBuilder) PushFBLayer(spec PushFBLayerSpec) error {
	first := len(b.reservations) == 0
	idx, err := b.selectPlane(spec, first)
	if err != nil {
		return err
	}
	b.reserved.Set(idx)

	p := &b.dev.Planes()[idx]
	props := b.dev.PlaneProps(idx)

	var propList []drmu.ObjectProperty
	add := func(id int32, value uint64) {
		if id != kms.PropNotSupported {
			propList = append(propList, drmu.ObjectProperty{PropID: uint32(id), Value: value})
		}
	}
	add(props.CrtcID, uint64(b.crtc.ID))
	add(props.FbID, uint64(spec.FBID))
	add(props.SrcX, uint64(spec.Src.X)<<16)
	add(props.SrcY, uint64(spec.Src.Y)<<16)
	add(props.SrcW, uint64(spec.Src.W)<<16)
	add(props.SrcH, uint64(spec.Src.H)<<16)
	add(props.CrtcX, uint64(uint32(int32(spec.Dst.X))))
	add(props.CrtcY, uint64(uint32(int32(spec.Dst.Y))))
	add(props.CrtcW, uint64(spec.Dst.W))
	add(props.CrtcH, uint64(spec.Dst.H))
	if spec.HasRotation {
		add(props.Rotation, uint64(spec.Rotation))
	}

	b.objOrder = append(b.objOrder, p.ID)
	b.objProps[p.ID] = propList

	b.reservations = append(b.reservations, reservation{
		planeIndex: idx,
		release:    spec.ReleaseCallback,
		keepalive:  spec.ReleaseKeepalive,
	})
	return nil
}

// selectPlane implements the candidate/preference/format-check loop
// from spec.md §4.3.
func (b *AtomicBuilder) selectPlane(spec PushFBLayerSpec, first bool) (int, error) {
	planes := b.dev.Planes()

	wantType := kms.PlaneTypeOverlay
	if first {
		wantType = kms.PlaneTypePrimary
	}
	if spec.PreferCursor && b.crtc.SupportsHardwareCursor {
		wantType = kms.PlaneTypeCursor
	}

	tryType := func(t kms.PlaneType) (int, bool) {
		for i := range planes {
			if b.reserved.IsSet(i) {
				continue
			}
			if planes[i].Type != t {
				continue
			}
			if planes[i].PossibleCrtcs&b.crtc.Bitmask == 0 {
				continue
			}
			if !planes[i].SupportsFormat(spec.Format, spec.Modifier, spec.HasModifier) {
				continue
			}
			if t == kms.PlaneTypeCursor && !cursorSizeOK(spec) {
				continue
			}
			return i, true
		}
		return 0, false
	}

	if i, ok := tryType(wantType); ok {
		return i, nil
	}

	// Fallback order: cursor preference falls back to overlay then
	// primary; primary/overlay fall back to each other only.
	var fallback []kms.PlaneType
	switch wantType {
	case kms.PlaneTypeCursor:
		fallback = []kms.PlaneType{kms.PlaneTypeOverlay, kms.PlaneTypePrimary}
	case kms.PlaneTypePrimary:
		fallback = []kms.PlaneType{kms.PlaneTypeOverlay}
	default:
		fallback = []kms.PlaneType{kms.PlaneTypePrimary}
	}
	for _, t := range fallback {
		if i, ok := tryType(t); ok {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no plane accepts format %d for crtc %d", ErrResourceExhausted, spec.Format, b.crtc.ID)
}

// cursorSizeOK accepts every size: the cursor plane's maximum size
// (CAP_CURSOR_WIDTH/HEIGHT) is not queried anywhere in this module, so
// a cursor plane is chosen on format support alone.
func cursorSizeOK(spec PushFBLayerSpec) bool { return true }

// releaseAll invokes every reservation's release callback exactly once,
// in reverse insertion order, per spec.md §4.3 step 5.
func (b *AtomicBuilder) releaseAll() {
	for i := len(b.reservations) - 1; i >= 0; i-- {
		r := b.reservations[i]
		if r.release != nil {
			r.release(r.keepalive)
		}
	}
}

// Commit submits the accumulated state. Blocking commits never set
// PAGE_FLIP_EVENT|NONBLOCK and synthesize a scanout callback
// immediately on success, since there is no separate page-flip event to
// wait for. Non-blocking commits retry once as blocking on EBUSY, per
// spec.md §4.3.
//
// A non-blocking commit that succeeds is still in flight: its planes
// and release callbacks must not run until the real page-flip event
// arrives, so Commit records them on the CRTC's one-shot scanout slot
// instead of releasing them here. Every other outcome — a blocking
// commit, the blocking EBUSY retry, or an outright rejection — resolves
// synchronously, so release and scanout notification happen inline
// before Commit returns; a rejection also synthesizes a scanout so the
// frame scheduler is not left waiting for an event that will never
// come.
func (b *AtomicBuilder) Commit(ctx context.Context, blocking bool) error {
	if err := b.fillUnassigned(); err != nil {
		b.releaseAll()
		b.synthesizeScanout()
		return err
	}

	flags := uint32(0)
	if b.modeset {
		flags |= drmu.ModeAtomicAllowModeset
	}
	if !blocking {
		flags |= drmu.ModeAtomicNonblock | drmu.ModePageFlipEvent
	}

	b.dev.Lock()
	err := drmu.AtomicCommit(b.dev.FD(), flags, 0, b.objOrder, b.objProps)
	b.dev.Unlock()

	if err != nil {
		if !blocking && errors.Is(err, unix.EBUSY) {
			b.dev.Lock()
			err = drmu.AtomicCommit(b.dev.FD(), flags&^(drmu.ModeAtomicNonblock|drmu.ModePageFlipEvent), 0, b.objOrder, b.objProps)
			b.dev.Unlock()
			if err != nil {
				b.releaseAll()
				b.synthesizeScanout()
				return fmt.Errorf("%w: %v", ErrDriverRejected, err)
			}
			b.releaseAll()
			b.synthesizeScanout()
			return ErrDriverBusy
		}
		b.releaseAll()
		b.synthesizeScanout()
		return fmt.Errorf("%w: %v", ErrDriverRejected, err)
	}

	if blocking {
		b.releaseAll()
		b.synthesizeScanout()
		return nil
	}

	// Non-blocking success: defer release and scanout notification to
	// the real page-flip event, delivered to whatever reads it off this
	// CRTC's one-shot callback slot.
	b.crtc.SetScanoutCallback(func(seq uint64, sec, usec uint32) {
		b.releaseAll()
		if b.onScanout != nil {
			b.onScanout(time.Unix(int64(sec), int64(usec)*1000))
		}
	})
	return nil
}

func (b *AtomicBuilder) synthesizeScanout() {
	if b.onScanout != nil {
		b.onScanout(time.Now())
	}
}

// fillUnassigned writes FB_ID=0,CRTC_ID=0 to every plane this builder
// never reserved, so stale content from a previous frame doesn't linger
// on an overlay/primary plane that this frame no longer uses.
func (b *AtomicBuilder) fillUnassigned() error {
	planes := b.dev.Planes()
	for i := range planes {
		if b.reserved.IsSet(i) {
			continue
		}
		if planes[i].PossibleCrtcs&b.crtc.Bitmask == 0 {
			continue
		}
		props := b.dev.PlaneProps(i)
		var propList []drmu.ObjectProperty
		if props.FbID != kms.PropNotSupported {
			propList = append(propList, drmu.ObjectProperty{PropID: uint32(props.FbID), Value: 0})
		}
		if props.CrtcID != kms.PropNotSupported {
			propList = append(propList, drmu.ObjectProperty{PropID: uint32(props.CrtcID), Value: 0})
		}
		if len(propList) == 0 {
			continue
		}
		b.objOrder = append(b.objOrder, planes[i].ID)
		b.objProps[planes[i].ID] = propList
	}
	return nil
}
