package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/soocke/duck-haptics-go/assets"
)

func TestRun_WritesLoadableTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.png")
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := run([]string{"-out", path}, logger, io.Discard); err != nil {
		t.Fatal(err)
	}
	tmpl, err := assets.LoadTemplate(path)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.W != 80 || tmpl.H != 60 || tmpl.Std <= 1 {
		t.Fatalf("unexpected template %+v", tmpl)
	}
}

func TestRun_BadFlag(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if err := run([]string{"-nope"}, logger, io.Discard); err == nil {
		t.Fatal("expected flag error")
	}
}
