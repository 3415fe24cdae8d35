package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/duck-haptics-go/ui/images"
	"github.com/soocke/duck-haptics-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	meterW = 160
	meterH = 12
)

type playerWidgets struct {
	label *LabelWidget
	meter *LabelWidget
	photo *Img
}

// RootView composes the status window: round state, one row per player
// with an output meter, session stats and the capture preview.
type RootView struct {
	logger *slog.Logger

	Session     SessionStats
	CapturePrev CapturePreview

	StateLabel *TLabelWidget
	players    []playerWidgets
}

func NewRootView(logger *slog.Logger) *RootView {
	return &RootView{logger: logger}
}

// Build constructs the layout for the given player ids.
func (rv *RootView) Build(playerIDs []string, onTogglePreview func(), onExit func()) {
	if rv == nil {
		return
	}
	rv.StateLabel = TLabel(Txt("State: <none>"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, Row(0), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(3), Rowspan(2), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	Grid(Button(Txt("Toggle Preview"), Command(onTogglePreview)), In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	Grid(TButton(Txt("Exit"), Style(theme.StyleDangerButton), Command(onExit)), In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))

	rv.Session = NewSessionStats(nil, 1, 0)

	row := 3
	empty := images.EncodePNG(images.Meter(0, meterW, meterH, images.Swatch("")))
	for _, id := range playerIDs {
		w := playerWidgets{
			label: Label(Txt(id), Anchor("w"), Borderwidth(1), Relief("ridge")),
			photo: NewPhoto(Data(empty)),
		}
		w.meter = Label(Image(w.photo))
		Grid(w.label, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.2m"))
		Grid(w.meter, Row(row), Column(2), Sticky("w"), Padx("0.4m"), Pady("0.2m"))
		rv.players = append(rv.players, w)
		row++
	}

	rv.CapturePrev = NewCapturePreview(row)
}

// SetStateLabel updates the state label and switches its style during cooldown.
func (rv *RootView) SetStateLabel(text string, cooldown bool) {
	if rv == nil || rv.StateLabel == nil {
		return
	}
	style := theme.StyleStateLabel
	if cooldown {
		style = theme.StyleCooldownLabel
	}
	rv.StateLabel.Configure(Txt(text), Style(style))
}

// SetPlayer updates row i. Out of range rows are ignored.
func (rv *RootView) SetPlayer(i int, text string, level float64, color string) {
	if rv == nil || i < 0 || i >= len(rv.players) {
		return
	}
	w := &rv.players[i]
	w.label.Configure(Txt(text))
	if w.photo != nil {
		w.photo.Delete()
	}
	w.photo = NewPhoto(Data(images.EncodePNG(images.Meter(level, meterW, meterH, images.Swatch(color)))))
	w.meter.Configure(Image(w.photo))
}

// SetSession updates both session and total durations.
func (rv *RootView) SetSession(session, total time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(session)
	rv.Session.SetTotal(total)
}

// SetRounds updates the round tally line.
func (rv *RootView) SetRounds(text string) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetRounds(text)
}

func (rv *RootView) UpdateCapture(img image.Image) {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.UpdateCapture(img)
	}
}

func (rv *RootView) UpdateDetection(img image.Image) {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.UpdateDetection(img)
	}
}

// PreviewReset clears both preview images.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.Reset()
	}
}
