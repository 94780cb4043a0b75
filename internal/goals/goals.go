// Package goals manages the user's personal goal list.
package goals

import (
	"sync"
	"time"

	"github.com/p-n-ai/finedu/internal/ledger"
)

// Goal is a user-defined goal. ID is the creation time in unix milliseconds.
type Goal struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Awarder appends point events.
type Awarder interface {
	Award(reason ledger.Reason) ledger.Event
}

// ToggleResult describes a goal toggle.
type ToggleResult struct {
	Goal    Goal
	Awarded *ledger.Event
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for goal identifiers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the goal list.
type Manager struct {
	mu     sync.Mutex
	goals  []Goal
	lastID int64
	points Awarder
	now    func() time.Time
}

// NewManager creates a manager over a rehydrated goal list.
func NewManager(initial []Goal, points Awarder, opts ...Option) *Manager {
	m := &Manager{
		goals:  append([]Goal{}, initial...),
		points: points,
		now:    time.Now,
	}
	for _, g := range m.goals {
		if g.ID > m.lastID {
			m.lastID = g.ID
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends an incomplete goal. Text is accepted as given; blank input is
// rejected by callers.
func (m *Manager) Add(text string) Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Timestamps can collide within a millisecond; ids must stay unique.
	id := m.now().UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id

	g := Goal{ID: id, Text: text}
	m.goals = append(m.goals, g)
	return g
}

// Toggle flips the completed flag of a goal. Completing a goal awards points;
// reopening it retracts nothing. It returns false if no goal has that id.
func (m *Manager) Toggle(id int64) (ToggleResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.goals {
		if m.goals[i].ID != id {
			continue
		}
		m.goals[i].Completed = !m.goals[i].Completed
		res := ToggleResult{Goal: m.goals[i]}
		if m.goals[i].Completed {
			e := m.points.Award(ledger.ReasonGoalCompleted)
			res.Awarded = &e
		}
		return res, true
	}
	return ToggleResult{}, false
}

// List returns a copy of the goals in creation order.
func (m *Manager) List() []Goal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Goal{}, m.goals...)
}
