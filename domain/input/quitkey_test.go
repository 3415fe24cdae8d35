package input

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseKey(t *testing.T) {
	cases := map[string]byte{"": 'q', "Q": 'q', " x ": 'x', "esc": 'q'}
	for in, want := range cases {
		if got := ParseKey(in); got != want {
			t.Fatalf("ParseKey(%q)=%q want %q", in, got, want)
		}
	}
}

func TestWatch_QuitOnKey(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	quit := make(chan struct{})
	stop := Watch(context.Background(), nil, r, 'q', func() { close(quit) })
	defer stop()
	if _, err := w.WriteString("abQ"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("quit callback not invoked")
	}
}

func TestWatchReader_EOFWithoutKey(t *testing.T) {
	called := false
	watch(context.Background(), strings.NewReader("hello"), 'q', func() { called = true })
	if called {
		t.Fatal("no quit key in input")
	}
}
