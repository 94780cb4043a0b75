package app

import (
	"github.com/p-n-ai/finedu/internal/course"
	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/goals"
	"github.com/p-n-ai/finedu/internal/ledger"
	"github.com/p-n-ai/finedu/internal/progress"
	"github.com/p-n-ai/finedu/internal/view"
)

// Snapshot is a read-only copy of everything the view layer renders.
type Snapshot struct {
	Courses         []course.Course       `json:"courses"`
	Progress        progress.Progress     `json:"progress"`
	Goals           []goals.Goal          `json:"goals"`
	Points          []ledger.Event        `json:"pointsHistory"`
	TotalPoints     int                   `json:"totalPoints"`
	DailyPoints     []ledger.DayTotal     `json:"dailyPoints"`
	Navigation      view.State            `json:"navigation"`
	ActiveCourse    *course.Course        `json:"activeCourse,omitempty"`
	ActiveQuestions []course.QuizQuestion `json:"activeQuestions,omitempty"`
	Theme           curriculum.Theme      `json:"theme"`
	Themes          []curriculum.Theme    `json:"themes"`
	AvatarRef       string                `json:"avatarRef,omitempty"`
	CompletedCount  int                   `json:"completedCount"`
	CourseCount     int                   `json:"courseCount"`
	Status          Status                `json:"status"`
}

// Snapshot returns the current state.
func (a *App) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	goalList := a.goals.List()
	if goalList == nil {
		goalList = []goals.Goal{}
	}
	events := a.ledger.Events()
	if events == nil {
		events = []ledger.Event{}
	}

	s := Snapshot{
		Courses:        a.catalog.List(),
		Progress:       a.tracker.Snapshot(),
		Goals:          goalList,
		Points:         events,
		TotalPoints:    a.ledger.Total(),
		DailyPoints:    a.ledger.DailyTotals(a.loc),
		Navigation:     a.nav.State(),
		Themes:         a.themes,
		AvatarRef:      avatarRef(a.avatar),
		CompletedCount: a.tracker.CompletedCount(),
		CourseCount:    a.catalog.Len(),
		Status:         a.status,
	}
	s.Theme, _ = a.findTheme(a.theme)

	if c, ok := a.nav.ActiveCourse(a.catalog); ok {
		s.ActiveCourse = &c
	}
	if qs, ok := a.nav.ActiveQuestions(a.catalog); ok {
		s.ActiveQuestions = qs
	}
	return s
}

// Subscribe returns a channel that receives a signal after every state
// change, and a function to unsubscribe. Signals coalesce: a slow reader sees
// one pending signal, not one per change.
func (a *App) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	a.subsMu.Lock()
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	return ch, func() {
		a.subsMu.Lock()
		delete(a.subs, ch)
		a.subsMu.Unlock()
	}
}

func (a *App) notify() {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
