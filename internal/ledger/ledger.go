// Package ledger records point awards as an append-only event log.
// The point total is always folded from the log, never stored.
package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Reason is the cause of a point award.
type Reason string

const (
	ReasonQuizPassed      Reason = "quiz-passed"
	ReasonCourseCompleted Reason = "course-completed"
	ReasonGoalCompleted   Reason = "goal-completed"
)

// Fixed awards per reason.
const (
	QuizPassedPoints      = 50
	CourseCompletedPoints = 100
	GoalCompletedPoints   = 25
)

// Labels written by earlier versions of the app, still accepted on decode.
var legacyLabels = map[string]Reason{
	"Quiz Passou":    ReasonQuizPassed,
	"Curso Completo": ReasonCourseCompleted,
	"Meta Completa":  ReasonGoalCompleted,
}

// Points returns the award for the reason, or 0 for an unknown reason.
func (r Reason) Points() int {
	switch r {
	case ReasonQuizPassed:
		return QuizPassedPoints
	case ReasonCourseCompleted:
		return CourseCompletedPoints
	case ReasonGoalCompleted:
		return GoalCompletedPoints
	default:
		return 0
	}
}

// Label returns the display label of the reason.
func (r Reason) Label() string {
	switch r {
	case ReasonQuizPassed:
		return "Quiz Passou"
	case ReasonCourseCompleted:
		return "Curso Completo"
	case ReasonGoalCompleted:
		return "Meta Completa"
	default:
		return string(r)
	}
}

func (r *Reason) UnmarshalText(b []byte) error {
	s := string(b)
	switch Reason(s) {
	case ReasonQuizPassed, ReasonCourseCompleted, ReasonGoalCompleted:
		*r = Reason(s)
		return nil
	}
	if legacy, ok := legacyLabels[s]; ok {
		*r = legacy
		return nil
	}
	return fmt.Errorf("unknown point reason %q", s)
}

// Event is an immutable record of a point award.
type Event struct {
	Points    int
	Timestamp time.Time
	Reason    Reason
}

type eventJSON struct {
	Points    int    `json:"points"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	Reason    Reason `json:"reason"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Points:    e.Points,
		Timestamp: e.Timestamp.UnixMilli(),
		Reason:    e.Reason,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Points <= 0 {
		return fmt.Errorf("event points must be positive, got %d", raw.Points)
	}
	*e = Event{
		Points:    raw.Points,
		Timestamp: time.UnixMilli(raw.Timestamp),
		Reason:    raw.Reason,
	}
	return nil
}

// DayTotal is the sum of points awarded on one calendar day.
type DayTotal struct {
	Date   string `json:"date"` // YYYY-MM-DD
	Points int    `json:"points"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source used to stamp new events.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger is an append-only log of point events.
type Ledger struct {
	mu     sync.RWMutex
	events []Event
	now    func() time.Time
}

// New creates a ledger seeded with a previously recorded history.
func New(history []Event, opts ...Option) *Ledger {
	l := &Ledger{
		events: append([]Event{}, history...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a new event stamped with the current time.
// Points must be positive; prior events are never touched.
func (l *Ledger) Append(points int, reason Reason) Event {
	e := Event{
		Points:    points,
		Timestamp: l.now(),
		Reason:    reason,
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()

	return e
}

// Award appends an event carrying the fixed points for reason.
func (l *Ledger) Award(reason Reason) Event {
	return l.Append(reason.Points(), reason)
}

// Total folds all recorded events into a point total.
func (l *Ledger) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, e := range l.events {
		total += e.Points
	}
	return total
}

// Events returns a copy of the event history, oldest first.
func (l *Ledger) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event{}, l.events...)
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// DailyTotals groups points by calendar day in loc, oldest day first.
func (l *Ledger) DailyTotals(loc *time.Location) []DayTotal {
	if loc == nil {
		loc = time.Local
	}

	l.mu.RLock()
	byDay := make(map[string]int)
	for _, e := range l.events {
		byDay[e.Timestamp.In(loc).Format(time.DateOnly)] += e.Points
	}
	l.mu.RUnlock()

	days := make([]DayTotal, 0, len(byDay))
	for d, p := range byDay {
		days = append(days, DayTotal{Date: d, Points: p})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
