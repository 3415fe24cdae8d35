package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// Preview scales src down to fit maxW x maxH preserving aspect ratio.
// Images that already fit are returned unchanged.
func Preview(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, max(1, maxW), max(1, maxH), imaging.NearestNeighbor)
}

// Meter draws a horizontal bar w x h filled to level in [0,1].
func Meter(level float64, w, h int, fill color.Color) *image.NRGBA {
	w, h = max(1, w), max(1, h)
	img := imaging.New(w, h, color.NRGBA{R: 0x33, G: 0x41, B: 0x55, A: 0xff})
	if level <= 0 {
		return img
	}
	if level > 1 {
		level = 1
	}
	n := int(level*float64(w) + 0.5)
	if n == 0 {
		return img
	}
	bar := imaging.New(n, h, fill)
	return imaging.Paste(img, bar, image.Pt(0, 0))
}

// Outline returns a copy of src with a one pixel rectangle drawn around r.
func Outline(src image.Image, r image.Rectangle, c color.Color) *image.NRGBA {
	dst := imaging.Clone(src)
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return dst
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X-1, y, c)
	}
	return dst
}

// Zoom scales src up or down so its longer side equals side.
func Zoom(src image.Image, side int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() >= b.Dy() {
		return imaging.Resize(src, side, 0, imaging.NearestNeighbor)
	}
	return imaging.Resize(src, 0, side, imaging.NearestNeighbor)
}
