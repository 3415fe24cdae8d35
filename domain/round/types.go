package round

import (
	"context"
	"image"
	"time"

	"github.com/soocke/duck-haptics-go/domain/detect"
	"github.com/soocke/duck-haptics-go/domain/haptics"
)

// State enumerates the arbiter states.
type State int

const (
	StateIdle State = iota
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Kind classifies what one coordination tick did.
type Kind int

const (
	KindNone         Kind = iota // detection ran, nothing accepted
	KindSkipped                  // no frame this tick
	KindCooldown                 // detection suppressed by cooldown
	KindIntermission             // intermission reset every player
	KindAccepted                 // a colored cue was accepted
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSkipped:
		return "skipped"
	case KindCooldown:
		return "cooldown"
	case KindIntermission:
		return "intermission"
	case KindAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// PlayerUpdate records how an accepted color changed one player.
type PlayerUpdate struct {
	PlayerID  string
	Won       bool
	Intensity float64
	Event     *haptics.VibrationEvent
}

// Outcome is the result of one coordination tick.
type Outcome struct {
	At      time.Time
	Kind    Kind
	State   State
	Color   string
	Result  detect.Result
	Updates []PlayerUpdate
}

// Listener observes every tick outcome.
type Listener func(Outcome)

// StateListener is called on each state transition.
type StateListener func(prev, next State)

// EventDetector is the classifier contract the arbiter consumes.
type EventDetector interface {
	DetectEvent(context.Context, *image.RGBA) detect.Result
	DetectIntermission(context.Context, *image.RGBA) bool
}
