// Command mktemplate writes a stand-in cue template: a white label on a
// black background. Replace it with a crop from a real game capture when
// detection is unreliable.
package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/soocke/duck-haptics-go/app"
	"github.com/soocke/duck-haptics-go/assets"
)

func main() {
	logger := app.NewLogger(os.Stderr, slog.LevelInfo)
	if err := run(os.Args[1:], logger, os.Stderr); err != nil {
		logger.Error("template not written", "error", err)
		os.Exit(1)
	}
}

func run(args []string, logger *slog.Logger, errOut io.Writer) error {
	fs := flag.NewFlagSet("mktemplate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	out := fs.String("out", "template.png", "output image (.png, .jpg, .bmp, .gif or .tif)")
	text := fs.String("text", assets.CueText, "label to draw")
	w := fs.Int("width", assets.CueWidth, "template width in pixels")
	h := fs.Int("height", assets.CueHeight, "template height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := assets.WriteCue(*out, *text, *w, *h); err != nil {
		return err
	}
	logger.Info("template written", "path", *out, "width", *w, "height", *h, "text", *text)
	return nil
}
