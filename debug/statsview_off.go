//go:build !statsview

package debug

import (
	"context"
	"log/slog"
)

// LaunchStatsview is a no-op without the statsview build tag.
func LaunchStatsview(context.Context, *slog.Logger) bool { return false }
