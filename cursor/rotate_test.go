package cursor

import (
	"image"
	"testing"
)

func TestRotateHotspotFormulas(t *testing.T) {
	hotspot := image.Point{X: 5, Y: 7}
	w, h := 32, 32

	cases := []struct {
		rotation Rotation
		want     image.Point
	}{
		{Rotate0, image.Point{X: 5, Y: 7}},
		{Rotate90, image.Point{X: h - 7 - 1, Y: 5}},
		{Rotate180, image.Point{X: w - 5 - 1, Y: h - 7 - 1}},
		{Rotate270, image.Point{X: 7, Y: w - 5 - 1}},
	}
	for _, c := range cases {
		got := rotateHotspot(hotspot, w, h, c.rotation)
		if got != c.want {
			t.Errorf("rotateHotspot(%v) = %v, want %v", c.rotation, got, c.want)
		}
	}
}

// pixelAt reads the ARGB8888 pixel at (x,y) in a w-wide tightly packed
// buffer as (a,r,g,b).
func pixelAt(pixels []byte, w, x, y int) (a, r, g, b byte) {
	o := (y*w + x) * 4
	return pixels[o+3], pixels[o+2], pixels[o+1], pixels[o+0]
}

func setPixel(pixels []byte, w, x, y int, a, r, g, b byte) {
	o := (y*w + x) * 4
	pixels[o+0], pixels[o+1], pixels[o+2], pixels[o+3] = b, g, r, a
}

func TestRotate90MovesCornerPixel(t *testing.T) {
	w, h := 4, 2
	pixels := make([]byte, w*h*4)
	// distinctive pixel at (0,0)
	setPixel(pixels, w, 0, 0, 255, 10, 20, 30)

	out, outW, outH := rotateARGB8888(pixels, w, h, Rotate90)
	if outW != h || outH != w {
		t.Fatalf("size = %dx%d, want %dx%d", outW, outH, h, w)
	}
	// forward mapping (x,y) -> (h-1-y, x); (0,0) -> (h-1, 0)
	a, r, g, b := pixelAt(out, outW, h-1, 0)
	if a != 255 || r != 10 || g != 20 || b != 30 {
		t.Errorf("rotated corner pixel = (%d,%d,%d,%d), want (255,10,20,30)", a, r, g, b)
	}
}

func TestRotate270MovesCornerPixel(t *testing.T) {
	w, h := 4, 2
	pixels := make([]byte, w*h*4)
	setPixel(pixels, w, w-1, 0, 255, 11, 22, 33)

	out, outW, _ := rotateARGB8888(pixels, w, h, Rotate270)
	// forward mapping (x,y) -> (y, w-1-x); (w-1,0) -> (0,0)
	a, r, g, b := pixelAt(out, outW, 0, 0)
	if a != 255 || r != 11 || g != 22 || b != 33 {
		t.Errorf("rotated corner pixel = (%d,%d,%d,%d), want (255,11,22,33)", a, r, g, b)
	}
}

func TestRotate180PreservesSize(t *testing.T) {
	w, h := 6, 4
	pixels := make([]byte, w*h*4)
	setPixel(pixels, w, 0, 0, 255, 1, 2, 3)

	out, outW, outH := rotateARGB8888(pixels, w, h, Rotate180)
	if outW != w || outH != h {
		t.Fatalf("size = %dx%d, want %dx%d", outW, outH, w, h)
	}
	a, r, g, b := pixelAt(out, outW, w-1, h-1)
	if a != 255 || r != 1 || g != 2 || b != 3 {
		t.Errorf("rotated opposite corner = (%d,%d,%d,%d), want (255,1,2,3)", a, r, g, b)
	}
}
