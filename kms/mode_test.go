package kms_test

import (
	"testing"

	"github.com/pixeldrift/compositor/internal/drmu"
	"github.com/pixeldrift/compositor/kms"
)

func TestParseVideoMode(t *testing.T) {
	cases := []struct {
		in   string
		want kms.VideoMode
		ok   bool
	}{
		{"1920x1080@60", kms.VideoMode{Width: 1920, Height: 1080, Refresh: 60}, true},
		{"1920x1080", kms.VideoMode{Width: 1920, Height: 1080}, true},
		{"800x480@", kms.VideoMode{}, false},
		{"bogus", kms.VideoMode{}, false},
		{"", kms.VideoMode{}, false},
		{"1920x", kms.VideoMode{}, false},
		{"1920x1080@60x", kms.VideoMode{}, false},
	}
	for _, c := range cases {
		have, ok := kms.ParseVideoMode(c.in)
		if ok != c.ok {
			t.Errorf("ParseVideoMode(%q): ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && have != c.want {
			t.Errorf("ParseVideoMode(%q) = %+v, want %+v", c.in, have, c.want)
		}
	}
}

func mode(w, h uint16, refresh uint32, flags uint32) drmu.ModeModeInfo {
	return drmu.ModeModeInfo{Hdisplay: w, Vdisplay: h, Vrefresh: refresh, Flags: flags}
}

func TestSelectModeOverride(t *testing.T) {
	conn := &kms.Connector{Modes: []drmu.ModeModeInfo{
		mode(1920, 1080, 60, 0),
		mode(1920, 1080, 30, 0),
		mode(1280, 720, 60, drmu.ModeTypePreferred),
	}}
	have := kms.SelectMode(conn, "1920x1080")
	want := mode(1920, 1080, 60, 0)
	if have != want {
		t.Errorf("SelectMode override = %+v, want %+v", have, want)
	}
}

func TestSelectModePreferred(t *testing.T) {
	conn := &kms.Connector{Modes: []drmu.ModeModeInfo{
		mode(1920, 1080, 60, 0),
		mode(1280, 720, 60, drmu.ModeTypePreferred),
	}}
	have := kms.SelectMode(conn, "")
	want := mode(1280, 720, 60, drmu.ModeTypePreferred)
	if have != want {
		t.Errorf("SelectMode preferred = %+v, want %+v", have, want)
	}
}

func TestSelectModeHeuristic(t *testing.T) {
	conn := &kms.Connector{Modes: []drmu.ModeModeInfo{
		mode(1920, 1080, 30, 0),
		mode(1920, 1080, 60, drmu.ModeFlagInterlace),
		mode(1280, 720, 60, 0),
	}}
	have := kms.SelectMode(conn, "badstring")
	want := mode(1920, 1080, 60, drmu.ModeFlagInterlace)
	if have != want {
		t.Errorf("SelectMode heuristic = %+v, want %+v", have, want)
	}
}

func TestPhysicalSizeDSIHeuristic(t *testing.T) {
	conn := &kms.Connector{Type: drmu.ConnectorDSI}
	w, h, ok := kms.PhysicalSize(conn)
	if !ok || w != 155 || h != 86 {
		t.Errorf("PhysicalSize(DSI, 0x0) = (%d, %d, %v), want (155, 86, true)", w, h, ok)
	}
}

func TestPhysicalSizeBogusMultipleOfTen(t *testing.T) {
	conn := &kms.Connector{Type: drmu.ConnectorHDMIA, MmWidth: 160, MmHeight: 90}
	_, _, ok := kms.PhysicalSize(conn)
	if ok {
		t.Error("PhysicalSize: multiple-of-10 dimensions should be treated as bogus")
	}
}

func TestPhysicalSizeGenuine(t *testing.T) {
	conn := &kms.Connector{Type: drmu.ConnectorHDMIA, MmWidth: 161, MmHeight: 91}
	w, h, ok := kms.PhysicalSize(conn)
	if !ok || w != 161 || h != 91 {
		t.Errorf("PhysicalSize genuine = (%d, %d, %v), want (161, 91, true)", w, h, ok)
	}
}

func TestDevicePixelRatio(t *testing.T) {
	conn := &kms.Connector{Type: drmu.ConnectorDSI}
	m := mode(720, 1280, 60, 0)
	have := kms.DevicePixelRatio(conn, m)
	want := float64(10*720) / float64(155*38)
	if have != want {
		t.Errorf("DevicePixelRatio = %v, want %v", have, want)
	}
}

func TestDevicePixelRatioAbsent(t *testing.T) {
	conn := &kms.Connector{Type: drmu.ConnectorHDMIA, MmWidth: 160, MmHeight: 90}
	have := kms.DevicePixelRatio(conn, mode(1920, 1080, 60, 0))
	if have != 1.0 {
		t.Errorf("DevicePixelRatio absent = %v, want 1.0", have)
	}
}
