// Command duckmon runs the haptics engine with a Tk status window.
package main

import (
	"context"
	"image"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soocke/duck-haptics-go/app"
	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/ui/model"
	"github.com/soocke/duck-haptics-go/ui/presenter"
	"github.com/soocke/duck-haptics-go/ui/theme"
	"github.com/soocke/duck-haptics-go/ui/view"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const uiTick = 100 * time.Millisecond

func main() {
	flags, err := app.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tap *model.FrameTap
	rt := app.Bootstrap(ctx, flags, os.Stdout, app.Options{
		WrapSource: func(src capture.FrameSource) capture.FrameSource {
			tap = model.NewFrameTap(src)
			return tap
		},
	})
	c := rt.Container
	logger := rt.Logger

	rounds := model.NewRoundModel(cueSize(c))
	c.Arbiter.AddListener(rounds.OnOutcome)
	rt.StartTelemetry(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Engine.Run(ctx); err != nil {
			logger.Warn("shutdown finished with errors", "error", err)
		}
	}()

	theme.InitStyles()
	App.WmTitle("Duck Haptics")
	rv := view.NewRootView(logger)
	var afterID string
	exit := func() {
		cancel()
		if afterID != "" {
			TclAfterCancel(afterID)
			afterID = ""
		}
		Destroy(App)
	}
	WmProtocol(App, "WM_DELETE_WINDOW", exit)

	ids := make([]string, len(c.Players))
	for i, p := range c.Players {
		ids[i] = p.ID
	}
	preview := presenter.NewPreviewPresenter(tap, rounds, rv)
	rv.Build(ids, preview.Toggle, exit)

	var loop *presenter.Loop
	loop = presenter.NewLoop(
		presenter.NewStatusPresenter(c.Engine, rv, time.Duration(c.Config.CooldownSeconds*float64(time.Second))),
		presenter.NewSessionPresenter(model.NewSessionModel(), c.Engine, rounds, rv),
		preview,
		func() {
			// A signal or the quit path cancelled the session; close the window
			// from the Tk thread.
			if ctx.Err() != nil {
				afterID = ""
				Destroy(App)
				return
			}
			afterID = TclAfter(uiTick, func() { loop.Tick() })
		},
	)
	loop.Tick()
	App.Wait()

	cancel()
	<-done
}

func cueSize(c *app.Container) image.Point {
	if c.Store == nil || c.Store.Cue == nil {
		return image.Point{}
	}
	return image.Pt(c.Store.Cue.W, c.Store.Cue.H)
}
