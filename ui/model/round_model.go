package model

import (
	"image"
	"sort"
	"sync"
	"time"

	"github.com/soocke/duck-haptics-go/domain/round"
)

// RoundStats is a copy of the tallies kept by RoundModel.
type RoundStats struct {
	Accepted      map[string]int
	Intermissions int
	LastColor     string
	LastAt        time.Time
	// Cue is the matched template window of the last accepted round in
	// frame coordinates. Empty until a round is accepted.
	Cue image.Rectangle
}

// Total returns the number of accepted rounds.
func (s RoundStats) Total() int {
	n := 0
	for _, c := range s.Accepted {
		n += c
	}
	return n
}

// Colors returns the colors with at least one accepted round, sorted.
func (s RoundStats) Colors() []string {
	out := make([]string, 0, len(s.Accepted))
	for c := range s.Accepted {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RoundModel tallies accepted rounds per color. OnOutcome is registered
// as an arbiter listener and runs on the arbiter goroutine.
type RoundModel struct {
	cueSize image.Point

	mu    sync.Mutex
	stats RoundStats
}

// NewRoundModel returns an empty model. cueSize is the cue template size
// used to outline the matched window; zero disables the outline.
func NewRoundModel(cueSize image.Point) *RoundModel {
	return &RoundModel{cueSize: cueSize, stats: RoundStats{Accepted: map[string]int{}}}
}

// OnOutcome matches round.Listener.
func (m *RoundModel) OnOutcome(o round.Outcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch o.Kind {
	case round.KindAccepted:
		m.stats.Accepted[o.Color]++
		m.stats.LastColor = o.Color
		m.stats.LastAt = o.At
		if m.cueSize.X > 0 && m.cueSize.Y > 0 {
			m.stats.Cue = image.Rectangle{Min: o.Result.Position, Max: o.Result.Position.Add(m.cueSize)}
		}
	case round.KindIntermission:
		m.stats.Intermissions++
	}
}

// Values returns a copy of the current tallies.
func (m *RoundModel) Values() RoundStats {
	if m == nil {
		return RoundStats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	out.Accepted = make(map[string]int, len(m.stats.Accepted))
	for k, v := range m.stats.Accepted {
		out.Accepted[k] = v
	}
	return out
}
