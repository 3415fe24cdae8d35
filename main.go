package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/duck-haptics-go/app"
	"github.com/soocke/duck-haptics-go/domain/input"
)

func main() {
	flags, err := app.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt := app.Bootstrap(ctx, flags, os.Stdout, app.Options{})
	logger := rt.Logger

	key := input.ParseKey(flags.QuitKey)
	restore := input.Watch(ctx, logger, os.Stdin, key, func() {
		logger.Info("quit key pressed", "key", string(key))
		cancel()
	})
	defer restore()

	rt.StartTelemetry(ctx)
	logger.Info("running, press the quit key or Ctrl+C to stop", "key", string(key))
	if err := rt.Container.Engine.Run(ctx); err != nil {
		logger.Warn("shutdown finished with errors", "error", err)
	}
}
