package app

import (
	"fmt"
	"log/slog"

	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/device"
	"github.com/soocke/duck-haptics-go/domain/haptics"
)

// SetupPlayers turns the configured roster into players. Colors fall back
// to the first palette entry, device indices past the enumerated list fall
// back to the first device, and with no devices players run unattached.
func SetupPlayers(logger *slog.Logger, roster []config.PlayerConfig, ctrl device.Controller) []*haptics.Player {
	var devs []device.Handle
	if ctrl != nil {
		devs = ctrl.Devices()
	}
	players := make([]*haptics.Player, 0, len(roster))
	for i, pc := range roster {
		id := pc.ID
		if id == "" {
			id = fmt.Sprintf("P%d", i+1)
		}
		color := config.Palette[0].Name
		if c, ok := config.LookupColor(pc.Color); ok {
			color = c.Name
		} else if logger != nil {
			logger.Warn("unknown color, using first palette entry", "player", id, "color", pc.Color, "fallback", color)
		}
		var out haptics.Output
		switch {
		case len(devs) == 0:
			if logger != nil {
				logger.Warn("no device available, player runs without output", "player", id)
			}
		case pc.Device < 0 || pc.Device >= len(devs):
			if logger != nil {
				logger.Warn("device index out of range, using first device", "player", id, "index", pc.Device, "devices", len(devs))
			}
			out = device.Bind(ctrl, devs[0])
		default:
			out = device.Bind(ctrl, devs[pc.Device])
		}
		p := haptics.NewPlayer(id, color, out)
		if logger != nil {
			name := "<none>"
			if out != nil {
				name = out.Name()
			}
			logger.Info("player registered", "player", id, "color", color, "device", name)
		}
		players = append(players, p)
	}
	return players
}
