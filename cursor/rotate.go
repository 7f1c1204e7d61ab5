package cursor

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// rotateARGB8888 rotates a tightly packed ARGB8888 buffer by rotation
// and returns the rotated buffer plus its new width/height. 180° and
// 0° go through disintegration/imaging and golang.org/x/image/draw
// respectively, since both libraries expose exactly the transform
// needed; 90°/270° use a manual pixel transpose because neither
// library's rotate API exposes the same-size-swap, single-direction
// quarter turn that the hotspot formula in spec.md §6 requires without
// an intermediate color-model round trip.
func rotateARGB8888(pixels []byte, w, h int, rotation Rotation) (out []byte, outW, outH int) {
	switch rotation {
	case Rotate0:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Copy(dst, image.Point{}, argbImage(pixels, w, h), image.Rect(0, 0, w, h), draw.Src, nil)
		return toARGB8888(dst), w, h

	case Rotate180:
		src := argbImage(pixels, w, h)
		rotated := imaging.Rotate180(src)
		return toARGB8888(rotated), w, h

	case Rotate90:
		return transpose90(pixels, w, h), h, w

	case Rotate270:
		return transpose270(pixels, w, h), h, w
	}
	return pixels, w, h
}

// argbImage wraps a tightly packed ARGB8888 buffer as an image.NRGBA by
// swapping channel order into Go's R,G,B,A memory layout.
func argbImage(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		a, r, g, b := pixels[i*4+3], pixels[i*4+2], pixels[i*4+1], pixels[i*4+0]
		img.Pix[i*4+0] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = a
	}
	return img
}

// toARGB8888 packs an NRGBA image back into tightly packed ARGB8888.
func toARGB8888(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(x, y)
			r, g, bl, a := img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]
			d := (y*w + x) * 4
			out[d+0] = bl
			out[d+1] = g
			out[d+2] = r
			out[d+3] = a
		}
	}
	return out
}

// transpose90 implements the (x,y) -> (H-1-y, x) forward mapping into a
// new H x W buffer, the same transform spec.md §6 applies to the
// hotspot for a 90° rotation.
func transpose90(pixels []byte, w, h int) []byte {
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nx, ny := h-1-y, x
			srcOff := (y*w + x) * 4
			dstOff := (ny*h + nx) * 4
			copy(out[dstOff:dstOff+4], pixels[srcOff:srcOff+4])
		}
	}
	return out
}

// transpose270 implements the (x,y) -> (y, W-1-x) forward mapping,
// matching spec.md §6's 270° hotspot formula (hy, W-hx-1).
func transpose270(pixels []byte, w, h int) []byte {
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nx, ny := y, w-1-x
			srcOff := (y*w + x) * 4
			dstOff := (ny*h + nx) * 4
			copy(out[dstOff:dstOff+4], pixels[srcOff:srcOff+4])
		}
	}
	return out
}

// rotateHotspot applies the exact formulas from spec.md §6.
func rotateHotspot(hotspot image.Point, w, h int, rotation Rotation) image.Point {
	hx, hy := hotspot.X, hotspot.Y
	switch rotation {
	case Rotate90:
		return image.Point{X: h - hy - 1, Y: hx}
	case Rotate180:
		return image.Point{X: w - hx - 1, Y: h - hy - 1}
	case Rotate270:
		return image.Point{X: hy, Y: w - hx - 1}
	default:
		return image.Point{X: hx, Y: hy}
	}
}
