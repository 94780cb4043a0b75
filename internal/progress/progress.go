// Package progress tracks passed quizzes and completed courses, and awards
// points on first-time transitions.
package progress

import (
	"slices"
	"sync"

	"github.com/p-n-ai/finedu/internal/ledger"
)

// Pass threshold is 70%, expressed as a fraction to keep the comparison in integers.
const (
	passNumerator   = 7
	passDenominator = 10
)

// Progress is the persisted progress slice.
type Progress struct {
	CoursesCompleted []string         `json:"coursesCompleted"`
	QuizzesPassed    map[string][]int `json:"quizzesPassed"`
}

// Empty returns a progress value with no passed quizzes.
func Empty() Progress {
	return Progress{
		CoursesCompleted: []string{},
		QuizzesPassed:    map[string][]int{},
	}
}

// Normalize drops duplicate entries and fills nil collections.
func (p Progress) Normalize() Progress {
	out := Empty()
	for _, id := range p.CoursesCompleted {
		if !slices.Contains(out.CoursesCompleted, id) {
			out.CoursesCompleted = append(out.CoursesCompleted, id)
		}
	}
	for id, lessons := range p.QuizzesPassed {
		set := make([]int, 0, len(lessons))
		for _, l := range lessons {
			if !slices.Contains(set, l) {
				set = append(set, l)
			}
		}
		out.QuizzesPassed[id] = set
	}
	return out
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := Progress{
		CoursesCompleted: slices.Clone(p.CoursesCompleted),
		QuizzesPassed:    make(map[string][]int, len(p.QuizzesPassed)),
	}
	if out.CoursesCompleted == nil {
		out.CoursesCompleted = []string{}
	}
	for id, lessons := range p.QuizzesPassed {
		out.QuizzesPassed[id] = slices.Clone(lessons)
	}
	return out
}

// CourseLookup resolves the lesson count of a loaded course.
type CourseLookup interface {
	LessonCount(courseID string) (int, bool)
}

// Awarder appends point events.
type Awarder interface {
	Award(reason ledger.Reason) ledger.Event
}

// Result describes the outcome of recording a quiz result.
type Result struct {
	Passed          bool
	FirstPass       bool
	CourseCompleted bool
	Events          []ledger.Event
}

// Changed reports whether the progress slice was mutated.
func (r Result) Changed() bool {
	return r.FirstPass
}

// Tracker owns the progress slice.
type Tracker struct {
	mu      sync.Mutex
	state   Progress
	courses CourseLookup
	points  Awarder
}

// NewTracker creates a tracker starting from a rehydrated progress slice.
func NewTracker(initial Progress, courses CourseLookup, points Awarder) *Tracker {
	return &Tracker{
		state:   initial.Normalize(),
		courses: courses,
		points:  points,
	}
}

// RecordQuizResult applies a quiz outcome. Callers guarantee total > 0 and
// 0 <= score <= total.
//
// A score below 70% or a lesson already passed leaves state untouched. A first
// pass records the lesson and awards quiz points; if that pass brings the
// course to its full lesson count, the course is completed and awarded once.
// Completion is only evaluated here, so a course that is not loaded yet is
// completed by a later pass, never by a scan.
func (t *Tracker) RecordQuizResult(courseID string, lessonIndex, score, total int) Result {
	if score*passDenominator < passNumerator*total {
		return Result{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	passed := t.state.QuizzesPassed[courseID]
	if slices.Contains(passed, lessonIndex) {
		return Result{Passed: true}
	}

	passed = append(slices.Clone(passed), lessonIndex)
	t.state.QuizzesPassed[courseID] = passed

	res := Result{Passed: true, FirstPass: true}
	res.Events = append(res.Events, t.points.Award(ledger.ReasonQuizPassed))

	count, ok := t.courses.LessonCount(courseID)
	if ok && len(passed) == count && !slices.Contains(t.state.CoursesCompleted, courseID) {
		t.state.CoursesCompleted = append(t.state.CoursesCompleted, courseID)
		res.CourseCompleted = true
		res.Events = append(res.Events, t.points.Award(ledger.ReasonCourseCompleted))
	}

	return res
}

// Snapshot returns a copy of the progress slice.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// PassedLessons returns the sorted lesson indices passed for a course.
func (t *Tracker) PassedLessons(courseID string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.Clone(t.state.QuizzesPassed[courseID])
	slices.Sort(out)
	return out
}

// IsCompleted reports whether the course has been completed.
func (t *Tracker) IsCompleted(courseID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.state.CoursesCompleted, courseID)
}

// CompletedCount returns the number of completed courses.
func (t *Tracker) CompletedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.state.CoursesCompleted)
}
