// Package assets loads the reference template images from disk.
package assets

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/soocke/duck-haptics-go/domain/capture"
)

// ErrMissingTemplate reports that a template image could not be loaded. The
// capability that depends on it is disabled for the session.
var ErrMissingTemplate = errors.New("missing template")

// LoadImage decodes a PNG, JPEG, GIF, BMP, TIFF or WebP file.
func LoadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrMissingTemplate)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingTemplate, path, err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMissingTemplate, path, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingTemplate, path)
	}
	return img, nil
}

// LoadTemplate decodes path and precomputes its grayscale statistics.
func LoadTemplate(path string) (*capture.Template, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return capture.NewTemplate(img), nil
}

// Store holds the cue template and the optional intermission template.
// Either may be nil. Read-only after LoadStore returns.
type Store struct {
	Cue          *capture.Template
	Intermission *capture.Template
}

// LoadStore loads both templates. Failures are logged and leave the
// corresponding field nil; the joined error is returned for callers that
// want to surface it.
func LoadStore(logger *slog.Logger, cuePath, intermissionPath string) (*Store, error) {
	s := &Store{}
	var errs []error
	cue, err := LoadTemplate(cuePath)
	if err != nil {
		errs = append(errs, err)
		if logger != nil {
			logger.Warn("cue template unavailable, detection disabled", "path", cuePath, "error", err)
		}
	} else {
		s.Cue = cue
	}
	if intermissionPath != "" {
		im, err := LoadTemplate(intermissionPath)
		if err != nil {
			errs = append(errs, err)
			if logger != nil {
				logger.Warn("intermission template unavailable, intermission handling disabled", "path", intermissionPath, "error", err)
			}
		} else {
			s.Intermission = im
		}
	}
	if logger != nil && s.Cue != nil {
		logger.Info("templates loaded", "cue_w", s.Cue.W, "cue_h", s.Cue.H, "intermission", s.Intermission != nil)
	}
	return s, errors.Join(errs...)
}
