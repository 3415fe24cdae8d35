package presenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/soocke/duck-haptics-go/ui/model"
)

// RoundStatsSource provides round tallies.
type RoundStatsSource interface {
	Values() model.RoundStats
}

// SessionView displays session durations and round tallies.
type SessionView interface {
	SetSession(session, total time.Duration)
	SetRounds(text string)
}

// SessionPresenter advances the session model from the engine state and
// formats durations and tallies for the view.
type SessionPresenter struct {
	sess   *model.SessionModel
	src    StatusSource
	rounds RoundStatsSource
	view   SessionView

	lastRounds string
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, src StatusSource, rounds RoundStatsSource, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, src: src, rounds: rounds, view: view}
}

// RoundsText formats the tallies, colors sorted by name.
func RoundsText(s model.RoundStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rounds: %d", s.Total())
	for _, c := range s.Colors() {
		fmt.Fprintf(&b, "  %s %d", c, s.Accepted[c])
	}
	if s.Intermissions > 0 {
		fmt.Fprintf(&b, "  intermissions %d", s.Intermissions)
	}
	return b.String()
}

// Tick advances the model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.src.Snapshot().Running, now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	if p.rounds == nil {
		return
	}
	if text := RoundsText(p.rounds.Values()); text != p.lastRounds {
		p.lastRounds = text
		p.view.SetRounds(text)
	}
}
