package images

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ExtractROI crops r grown by pad on every side, clamped to the frame.
// The returned rectangle is the crop in frame coordinates; the image is
// rebased to (0,0). At least a 1x1 crop is returned for any non-empty frame.
func ExtractROI(frame image.Image, r image.Rectangle, pad int) (*image.NRGBA, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("nil frame")
	}
	b := frame.Bounds()
	if b.Empty() {
		return nil, image.Rectangle{}, errors.New("empty frame")
	}
	if pad < 0 {
		pad = 0
	}
	roi := r.Inset(-pad).Intersect(b)
	if roi.Empty() {
		p := r.Min
		p.X = min(max(p.X, b.Min.X), b.Max.X-1)
		p.Y = min(max(p.Y, b.Min.Y), b.Max.Y-1)
		roi = image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}
	}
	return imaging.Crop(frame, roi), roi, nil
}
