package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats shows session and total running time plus round tallies.
type SessionStats interface {
	SetSession(d time.Duration)
	SetTotal(d time.Duration)
	SetRounds(text string)
}

type sessionStats struct {
	sessionLbl *LabelWidget
	totalLbl   *LabelWidget
	roundsLbl  *LabelWidget
}

// NewSessionStats grids the session and total labels at (row, startCol)
// and (row, startCol+1), and the round tally below them spanning both.
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{sessionLbl: Label(Width(14)), totalLbl: Label(Width(14)), roundsLbl: Label(Anchor("w"))}
	opts := func(extra ...Opt) []Opt {
		if parent != nil {
			return append([]Opt{In(parent)}, extra...)
		}
		return extra
	}
	Grid(s.sessionLbl, opts(Row(row), Column(startCol), Sticky("w"), Padx("0.2m"))...)
	Grid(s.totalLbl, opts(Row(row), Column(startCol+1), Sticky("w"), Padx("0.2m"))...)
	Grid(s.roundsLbl, opts(Row(row+1), Column(startCol), Columnspan(2), Sticky("we"), Padx("0.2m"))...)
	s.sessionLbl.Configure(Txt("Session: 00:00"))
	s.totalLbl.Configure(Txt("Total: 00:00"))
	s.roundsLbl.Configure(Txt("Rounds: 0"))
	return s
}

func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (s *sessionStats) SetSession(d time.Duration) {
	if s == nil || s.sessionLbl == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Session: " + clock(d)))
}

func (s *sessionStats) SetTotal(d time.Duration) {
	if s == nil || s.totalLbl == nil {
		return
	}
	s.totalLbl.Configure(Txt("Total: " + clock(d)))
}

func (s *sessionStats) SetRounds(text string) {
	if s == nil || s.roundsLbl == nil {
		return
	}
	s.roundsLbl.Configure(Txt(text))
}
