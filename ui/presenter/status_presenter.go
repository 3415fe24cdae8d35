package presenter

import (
	"fmt"
	"math"
	"time"

	"github.com/soocke/duck-haptics-go/app"
	"github.com/soocke/duck-haptics-go/domain/round"
)

// StatusSource provides the engine view the presenter renders.
type StatusSource interface {
	Snapshot() app.Snapshot
}

// StatusView shows the round state and one row per player.
type StatusView interface {
	SetStateLabel(text string, cooldown bool)
	SetPlayer(i int, text string, level float64, color string)
}

type playerRow struct {
	text  string
	level float64
}

// StatusPresenter polls the engine snapshot and pushes changed values to
// the view. It runs on the UI thread.
type StatusPresenter struct {
	src      StatusSource
	view     StatusView
	cooldown time.Duration

	lastState string
	rows      []playerRow
}

// NewStatusPresenter returns a presenter. cooldown is used to show the
// remaining cooldown time.
func NewStatusPresenter(src StatusSource, view StatusView, cooldown time.Duration) *StatusPresenter {
	return &StatusPresenter{src: src, view: view, cooldown: cooldown}
}

// StateText formats the round state line.
func StateText(s app.Snapshot, cooldown time.Duration, now time.Time) string {
	if !s.Running {
		return "State: stopped"
	}
	if s.State != round.StateCooldown {
		return "State: idle"
	}
	left := cooldown - now.Sub(s.CooldownSince)
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("State: cooldown %.1fs (%s)", left.Seconds(), s.LastColor)
}

// PlayerText formats one player row.
func PlayerText(p app.PlayerSnapshot) string {
	return fmt.Sprintf("%s  %-6s  %-14s  intensity %.2f  queued %d", p.ID, p.Color, p.Device, p.Intensity, p.Queued)
}

// Tick refreshes the view from the current snapshot.
func (p *StatusPresenter) Tick(now time.Time) {
	if p == nil || p.src == nil || p.view == nil {
		return
	}
	s := p.src.Snapshot()
	if text := StateText(s, p.cooldown, now); text != p.lastState {
		p.lastState = text
		p.view.SetStateLabel(text, s.Running && s.State == round.StateCooldown)
	}
	if len(p.rows) != len(s.Players) {
		p.rows = make([]playerRow, len(s.Players))
		for i := range p.rows {
			p.rows[i].level = -1
		}
	}
	for i, ps := range s.Players {
		text := PlayerText(ps)
		level := math.Round(ps.Level*100) / 100
		if text == p.rows[i].text && level == p.rows[i].level {
			continue
		}
		p.rows[i] = playerRow{text: text, level: level}
		p.view.SetPlayer(i, text, level, ps.Color)
	}
}
