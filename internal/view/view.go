// Package view holds navigation state and derives the active course and quiz.
package view

import (
	"github.com/p-n-ai/finedu/internal/course"
)

// Screen is the current navigation target.
type Screen string

const (
	ScreenDashboard Screen = "dashboard"
	ScreenCourse    Screen = "course"
	ScreenQuiz      Screen = "quiz"
)

// ActiveQuiz identifies the quiz being taken.
type ActiveQuiz struct {
	CourseID    string `json:"courseId"`
	LessonIndex int    `json:"lessonIndex"`
}

// State is the navigation state exposed to the view layer.
type State struct {
	Screen           Screen      `json:"screen"`
	SelectedCourseID string      `json:"selectedCourseId,omitempty"`
	Quiz             *ActiveQuiz `json:"quiz,omitempty"`
}

// CourseSource resolves courses by identifier.
type CourseSource interface {
	Course(id string) (course.Course, bool)
}

// Navigator is the navigation state machine. It is not safe for concurrent
// use; the owner serializes access.
type Navigator struct {
	state State
}

// NewNavigator starts on the dashboard.
func NewNavigator() *Navigator {
	return &Navigator{state: State{Screen: ScreenDashboard}}
}

// State returns a copy of the navigation state.
func (n *Navigator) State() State {
	s := n.state
	if s.Quiz != nil {
		q := *s.Quiz
		s.Quiz = &q
	}
	return s
}

// SelectCourse opens the course detail view.
func (n *Navigator) SelectCourse(id string) {
	n.state = State{Screen: ScreenCourse, SelectedCourseID: id}
}

// Back returns to the dashboard and clears the selection and quiz.
func (n *Navigator) Back() {
	n.state = State{Screen: ScreenDashboard}
}

// StartQuiz opens the quiz for a lesson.
func (n *Navigator) StartQuiz(courseID string, lessonIndex int) {
	n.state = State{
		Screen:           ScreenQuiz,
		SelectedCourseID: courseID,
		Quiz:             &ActiveQuiz{CourseID: courseID, LessonIndex: lessonIndex},
	}
}

// CompleteQuiz closes the active quiz and returns to its course. It returns
// false and changes nothing when no quiz is active.
func (n *Navigator) CompleteQuiz() (ActiveQuiz, bool) {
	if n.state.Quiz == nil {
		return ActiveQuiz{}, false
	}
	q := *n.state.Quiz
	n.state = State{Screen: ScreenCourse, SelectedCourseID: q.CourseID}
	return q, true
}

// ActiveCourse returns the selected course if it is loaded.
func (n *Navigator) ActiveCourse(src CourseSource) (course.Course, bool) {
	if n.state.SelectedCourseID == "" {
		return course.Course{}, false
	}
	return src.Course(n.state.SelectedCourseID)
}

// ActiveQuestions returns the question set of the active quiz.
func (n *Navigator) ActiveQuestions(src CourseSource) ([]course.QuizQuestion, bool) {
	if n.state.Quiz == nil {
		return nil, false
	}
	c, ok := src.Course(n.state.Quiz.CourseID)
	if !ok {
		return nil, false
	}
	return c.Quiz(n.state.Quiz.LessonIndex)
}
