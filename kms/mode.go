package kms

import "github.com/pixeldrift/compositor/internal/drmu"

// VideoMode is a parsed "WxH@Hz" or "WxH" user override, as accepted by
// SelectMode.
type VideoMode struct {
	Width, Height int
	Refresh       int // 0 means unspecified
}

// ParseVideoMode parses the small "WxH@Hz"/"WxH" grammar by hand, the
// way a fixed, hot-path config string is parsed elsewhere in this
// module rather than reached for with fmt.Sscanf or regexp. ok is false
// for any string that doesn't match the grammar exactly; SelectMode
// treats that as "no override" rather than an error.
func ParseVideoMode(s string) (vm VideoMode, ok bool) {
	i := 0
	w, n := scanDigits(s, i)
	if n == 0 {
		return vm, false
	}
	i += n
	if i >= len(s) || s[i] != 'x' {
		return vm, false
	}
	i++
	h, n := scanDigits(s, i)
	if n == 0 {
		return vm, false
	}
	i += n
	vm.Width, vm.Height = w, h
	if i == len(s) {
		return vm, true
	}
	if s[i] != '@' {
		return VideoMode{}, false
	}
	i++
	r, n := scanDigits(s, i)
	if n == 0 || i+n != len(s) {
		return VideoMode{}, false
	}
	vm.Refresh = r
	return vm, true
}

func scanDigits(s string, i int) (val, n int) {
	for i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '9' {
		val = val*10 + int(s[i+n]-'0')
		n++
	}
	return val, n
}

// SelectMode chooses a mode from conn's advertised list following the
// highest-refresh override match, else PREFERRED, else
// max(W·H) > vrefresh > non-interlaced ordering. An invalid or
// non-matching override string is ignored, never an error.
func SelectMode(conn *Connector, override string) drmu.ModeModeInfo {
	if vm, ok := ParseVideoMode(override); ok {
		if m, found := bestOverrideMatch(conn.Modes, vm); found {
			return m
		}
	}
	if m, found := preferredMode(conn.Modes); found {
		return m
	}
	return bestHeuristicMode(conn.Modes)
}

func bestOverrideMatch(modes []drmu.ModeModeInfo, vm VideoMode) (drmu.ModeModeInfo, bool) {
	var best drmu.ModeModeInfo
	found := false
	for _, m := range modes {
		if int(m.Hdisplay) != vm.Width || int(m.Vdisplay) != vm.Height {
			continue
		}
		if vm.Refresh != 0 && int(m.Vrefresh) != vm.Refresh {
			continue
		}
		if !found || m.Vrefresh > best.Vrefresh {
			best = m
			found = true
		}
	}
	return best, found
}

func preferredMode(modes []drmu.ModeModeInfo) (drmu.ModeModeInfo, bool) {
	for _, m := range modes {
		if m.Type&drmu.ModeTypePreferred != 0 {
			return m, true
		}
	}
	return drmu.ModeModeInfo{}, false
}

func bestHeuristicMode(modes []drmu.ModeModeInfo) drmu.ModeModeInfo {
	var best drmu.ModeModeInfo
	var bestArea uint32
	for i, m := range modes {
		area := uint32(m.Hdisplay) * uint32(m.Vdisplay)
		if i == 0 {
			best, bestArea = m, area
			continue
		}
		switch {
		case area > bestArea:
			best, bestArea = m, area
		case area == bestArea && m.Vrefresh > best.Vrefresh:
			best = m
		case area == bestArea && m.Vrefresh == best.Vrefresh &&
			best.Flags&drmu.ModeFlagInterlace != 0 && m.Flags&drmu.ModeFlagInterlace == 0:
			best = m
		}
	}
	return best
}

// dsiPanelWidthMM and dsiPanelHeightMM are the known 7" panel dimensions
// substituted when a DSI connector reports 0x0 physical size.
const (
	dsiPanelWidthMM  = 155
	dsiPanelHeightMM = 86
)

// PhysicalSize returns conn's physical dimensions after applying the
// DSI zero-dimension heuristic and the "not a multiple of 10 means
// bogus" plausibility check. ok is false when dimensions should be
// treated as absent.
func PhysicalSize(conn *Connector) (widthMM, heightMM uint32, ok bool) {
	w, h := conn.MmWidth, conn.MmHeight
	if w == 0 && h == 0 && conn.Type == drmu.ConnectorDSI {
		return dsiPanelWidthMM, dsiPanelHeightMM, true
	}
	if w == 0 || h == 0 {
		return 0, 0, false
	}
	if w%10 != 0 || h%10 != 0 {
		return w, h, true
	}
	return 0, 0, false
}

// DevicePixelRatio computes the engine-reported pixel ratio for a mode
// selected on conn: (10*width_px)/(width_mm*38) when physical dimensions
// are present, else 1.0.
func DevicePixelRatio(conn *Connector, mode drmu.ModeModeInfo) float64 {
	widthMM, _, ok := PhysicalSize(conn)
	if !ok || widthMM == 0 {
		return 1.0
	}
	return float64(10*uint32(mode.Hdisplay)) / float64(widthMM*38)
}
