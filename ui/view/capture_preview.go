package view

import (
	"image"

	"github.com/soocke/duck-haptics-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// CapturePreview shows the latest captured frame and a zoomed crop of the
// last accepted cue.
type CapturePreview interface {
	UpdateCapture(img image.Image)
	UpdateDetection(img image.Image)
	Reset()
}

type capturePreview struct {
	captureLabel   *LabelWidget
	detectionLabel *LabelWidget
	capturePhoto   *Img
	detectionPhoto *Img
}

const (
	maxPreviewW = 400
	maxPreviewH = 225
	cueZoom     = 120
)

func placeholderPNG() []byte {
	return images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 200, 120)))
}

// NewCapturePreview grids the capture preview across columns 0-2 of row and
// the cue crop in column 3.
func NewCapturePreview(row int) CapturePreview {
	ph := placeholderPNG()
	v := &capturePreview{capturePhoto: NewPhoto(Data(ph)), detectionPhoto: NewPhoto(Data(ph))}
	v.captureLabel = Label(Image(v.capturePhoto), Borderwidth(1), Relief("sunken"))
	v.detectionLabel = Label(Image(v.detectionPhoto), Borderwidth(1), Relief("sunken"))
	Grid(v.captureLabel, Row(row), Column(0), Columnspan(3), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	Grid(v.detectionLabel, Row(row), Column(3), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return v
}

// replace swaps the label's photo and deletes the previous one so old
// pixel buffers are released.
func replace(lbl *LabelWidget, prev **Img, png []byte) {
	if lbl == nil || len(png) == 0 {
		return
	}
	if *prev != nil {
		(*prev).Delete()
	}
	*prev = NewPhoto(Data(png))
	lbl.Configure(Image(*prev))
}

func (v *capturePreview) UpdateCapture(img image.Image) {
	if img == nil {
		return
	}
	replace(v.captureLabel, &v.capturePhoto, images.EncodePNG(images.Preview(img, maxPreviewW, maxPreviewH)))
}

func (v *capturePreview) UpdateDetection(img image.Image) {
	if img == nil {
		return
	}
	replace(v.detectionLabel, &v.detectionPhoto, images.EncodePNG(images.Zoom(img, cueZoom)))
}

func (v *capturePreview) Reset() {
	ph := placeholderPNG()
	replace(v.captureLabel, &v.capturePhoto, ph)
	replace(v.detectionLabel, &v.detectionPhoto, ph)
}
