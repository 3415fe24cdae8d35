package model

import "time"

// SessionModel measures how long the engine has been running. A session
// starts when the engine reports running and ends when it stops; total
// sums every session. The zero value is ready to use. Not safe for
// concurrent use; presenters drive it from the UI thread.
type SessionModel struct {
	running bool
	since   time.Time
	current time.Duration
	done    time.Duration
	count   int
}

// NewSessionModel returns an empty model.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick advances the model with the engine state observed at now.
func (m *SessionModel) OnTick(running bool, now time.Time) {
	if m == nil {
		return
	}
	switch {
	case running && !m.running:
		m.running, m.since, m.current = true, now, 0
		m.count++
	case running:
		m.current = now.Sub(m.since)
	case m.running:
		m.current = now.Sub(m.since)
		m.done += m.current
		m.running = false
	}
}

// Values returns the latest session length and the total across sessions,
// the running one included.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	total = m.done
	if m.running {
		total += m.current
	}
	return m.current, total
}

// Sessions returns how many sessions have started.
func (m *SessionModel) Sessions() int {
	if m == nil {
		return 0
	}
	return m.count
}
