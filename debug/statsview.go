//go:build statsview

package debug

import (
	"context"
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// StatsviewAddr is where the runtime charts are served.
const StatsviewAddr = "localhost:12600"

// LaunchStatsview serves live runtime charts until ctx ends.
func LaunchStatsview(ctx context.Context, logger *slog.Logger) bool {
	viewer.SetConfiguration(viewer.WithAddr(StatsviewAddr))
	mgr := statsview.New()
	go func() {
		if err := mgr.Start(); err != nil && logger != nil {
			logger.Warn("statsview stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		mgr.Stop()
	}()
	if logger != nil {
		logger.Info("statsview available", "url", "http://"+StatsviewAddr+"/debug/statsview")
	}
	return true
}
