package presenter

import "time"

// Loop drives the feature presenters from the Tk event loop.
//
// Schedule is called last to queue the next tick. The zero value is
// usable (methods are nil-safe).
type Loop struct {
	Status   *StatusPresenter
	Session  *SessionPresenter
	Preview  *PreviewPresenter
	Schedule func()
}

func NewLoop(status *StatusPresenter, sess *SessionPresenter, preview *PreviewPresenter, schedule func()) *Loop {
	return &Loop{Status: status, Session: sess, Preview: preview, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Status != nil {
		l.Status.Tick(now)
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Preview != nil {
		l.Preview.Tick()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
