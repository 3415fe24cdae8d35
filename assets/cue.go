package assets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default cue template geometry and label.
const (
	CueWidth  = 80
	CueHeight = 60
	CueText   = "+1"
)

// RenderCue draws text in white on a black w x h canvas. The 7x13 bitmap
// glyphs are scaled by a whole factor to about two thirds of the height and
// centred.
func RenderCue(text string, w, h int) *image.NRGBA {
	canvas := imaging.New(w, h, color.Black)
	face := basicfont.Face7x13
	tw := font.MeasureString(face, text).Ceil()
	if text == "" || tw <= 0 {
		return canvas
	}
	glyphs := imaging.New(tw, face.Height, color.Black)
	d := &font.Drawer{Dst: glyphs, Src: image.White, Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(text)

	scale := min((h*2/3)/face.Height, (w*7/8)/tw)
	if scale < 1 {
		scale = 1
	}
	scaled := imaging.Resize(glyphs, tw*scale, face.Height*scale, imaging.NearestNeighbor)
	at := image.Pt((w-scaled.Bounds().Dx())/2, (h-scaled.Bounds().Dy())/2)
	return imaging.Paste(canvas, scaled, at)
}

// WriteCue renders a cue template and saves it; the format follows the
// extension of path.
func WriteCue(path, text string, w, h int) error {
	return imaging.Save(RenderCue(text, w, h), path)
}
