package atomicreq

import (
	"context"
	"fmt"
	"time"

	"github.com/pixeldrift/compositor/internal/drmu"
	"github.com/pixeldrift/compositor/kms"
)

// LegacyBuilder is the Builder strategy used on devices that lack
// atomic support. It records only the primary-layer FB and a list of
// overlay SetPlane calls, per spec.md §4.3 "Legacy fallback".
type LegacyBuilder struct {
	dev  *kms.Device
	crtc *kms.Crtc

	firstFrame bool

	connectorID uint32
	mode        drmu.ModeModeInfo
	hasMode     bool

	primaryFB        uint32
	hasPrimary       bool
	primaryRelease   func(keepalive any)
	primaryKeepalive any

	overlays []legacyOverlay

	onScanout func(now time.Time)
}

type legacyOverlay struct {
	set       drmu.ModeSetPlane
	release   func(keepalive any)
	keepalive any
}

// NewLegacyBuilder constructs a builder targeting crtc on dev. firstFrame
// must be true exactly once per CRTC, for the first commit that needs a
// SetCrtc modeset; subsequent commits only page-flip.
func NewLegacyBuilder(dev *kms.Device, crtc *kms.Crtc, firstFrame bool, onScanout func(now time.Time)) *LegacyBuilder {
	return &LegacyBuilder{dev: dev, crtc: crtc, firstFrame: firstFrame, onScanout: onScanout}
}

func (b *LegacyBuilder) SetConnector(id uint32) { b.connectorID = id }

func (b *LegacyBuilder) SetMode(mode drmu.ModeModeInfo) {
	b.mode = mode
	b.hasMode = true
}

func (b *LegacyBuilder) UnsetMode() { b.hasMode = false }

// PushFBLayer records the primary FB (first call) or appends a legacy
// SetPlane for an overlay/cursor layer.
func (b *LegacyBuilder) PushFBLayer(spec PushFBLayerSpec) error {
	if !b.hasPrimary {
		b.primaryFB = spec.FBID
		b.hasPrimary = true
		b.primaryRelease = spec.ReleaseCallback
		b.primaryKeepalive = spec.ReleaseKeepalive
		return nil
	}
	planes := b.dev.Planes()
	idx, ok := b.selectOverlayPlane(spec)
	if !ok {
		return fmt.Errorf("%w: no legacy overlay plane for crtc %d", ErrResourceExhausted, b.crtc.ID)
	}
	b.overlays = append(b.overlays, legacyOverlay{
		set: drmu.ModeSetPlane{
			PlaneID: planes[idx].ID,
			CrtcID:  b.crtc.ID,
			FbID:    spec.FBID,
			CrtcX:   int32(spec.Dst.X), CrtcY: int32(spec.Dst.Y),
			CrtcW: uint32(spec.Dst.W), CrtcH: uint32(spec.Dst.H),
			SrcX: uint32(spec.Src.X) << 16, SrcY: uint32(spec.Src.Y) << 16,
			SrcW: uint32(spec.Src.W) << 16, SrcH: uint32(spec.Src.H) << 16,
		},
		release:   spec.ReleaseCallback,
		keepalive: spec.ReleaseKeepalive,
	})
	return nil
}

func (b *LegacyBuilder) selectOverlayPlane(spec PushFBLayerSpec) (int, bool) {
	planes := b.dev.Planes()
	used := make(map[uint32]bool, len(b.overlays))
	for _, o := range b.overlays {
		used[o.set.PlaneID] = true
	}
	wantType := kms.PlaneTypeOverlay
	if spec.PreferCursor && b.crtc.SupportsHardwareCursor {
		wantType = kms.PlaneTypeCursor
	}
	for i := range planes {
		if used[planes[i].ID] {
			continue
		}
		if planes[i].Type != wantType {
			continue
		}
		if planes[i].PossibleCrtcs&b.crtc.Bitmask == 0 {
			continue
		}
		if !planes[i].SupportsFormat(spec.Format, spec.Modifier, spec.HasModifier) {
			continue
		}
		return i, true
	}
	if wantType == kms.PlaneTypeCursor {
		for i := range planes {
			if used[planes[i].ID] || planes[i].Type != kms.PlaneTypeOverlay {
				continue
			}
			if planes[i].PossibleCrtcs&b.crtc.Bitmask == 0 {
				continue
			}
			if planes[i].SupportsFormat(spec.Format, spec.Modifier, spec.HasModifier) {
				return i, true
			}
		}
	}
	return 0, false
}

// Commit issues SetCrtc (first frame only), PageFlip on the primary
// plane, and blocking SetPlane for each overlay. blocking is accepted
// for interface symmetry with AtomicBuilder and ignored: the page flip
// is issued with PAGE_FLIP_EVENT and not waited on, and release
// callbacks run when Commit returns.
func (b *LegacyBuilder) Commit(ctx context.Context, blocking bool) error {
	defer b.releaseAll()

	fd := b.dev.FD()

	if b.firstFrame {
		b.dev.Lock()
		var modePtr *drmu.ModeModeInfo
		if b.hasMode {
			modePtr = &b.mode
		}
		var connectors []uint32
		if b.connectorID != 0 {
			connectors = []uint32{b.connectorID}
		}
		err := drmu.SetCrtc(fd, b.crtc.ID, b.primaryFB, 0, 0, connectors, modePtr)
		b.dev.Unlock()
		if err != nil {
			b.synthesizeScanout()
			return fmt.Errorf("%w: setcrtc: %v", ErrDriverRejected, err)
		}
	} else {
		b.dev.Lock()
		err := drmu.PageFlip(fd, b.crtc.ID, b.primaryFB, 0)
		b.dev.Unlock()
		if err != nil {
			b.synthesizeScanout()
			return fmt.Errorf("%w: pageflip: %v", ErrDriverRejected, err)
		}
	}

	for _, o := range b.overlays {
		b.dev.Lock()
		err := drmu.SetPlane(fd, o.set)
		b.dev.Unlock()
		if err != nil {
			b.synthesizeScanout()
			return fmt.Errorf("%w: setplane: %v", ErrDriverRejected, err)
		}
	}

	b.synthesizeScanout()
	return nil
}

func (b *LegacyBuilder) synthesizeScanout() {
	if b.onScanout != nil {
		b.onScanout(time.Now())
	}
}

// releaseAll fires every recorded release callback exactly once, in
// reverse insertion order: overlays (pushed after the primary) release
// first, then the primary layer itself.
func (b *LegacyBuilder) releaseAll() {
	for i := len(b.overlays) - 1; i >= 0; i-- {
		o := b.overlays[i]
		if o.release != nil {
			o.release(o.keepalive)
		}
	}
	if b.primaryRelease != nil {
		b.primaryRelease(b.primaryKeepalive)
	}
}

var _ Builder = (*LegacyBuilder)(nil)
var _ Builder = (*AtomicBuilder)(nil)
