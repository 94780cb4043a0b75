// Package course defines the generated course content model.
package course

import (
	"errors"
	"fmt"
	"strings"
)

// Icon is the visual category of a course.
type Icon string

const (
	IconTax        Icon = "tax"
	IconInvestment Icon = "investment"
	IconBudget     Icon = "budget"
)

// Valid reports whether i is one of the known icon categories.
func (i Icon) Valid() bool {
	switch i {
	case IconTax, IconInvestment, IconBudget:
		return true
	}
	return false
}

// Difficulty is the generation level of a course.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	return d == Beginner || d == Intermediate
}

// ParseDifficulty parses a difficulty name, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

// QuizQuestion is a multiple choice question with four options.
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// Lesson is a single unit of a course with its quiz.
type Lesson struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Quiz    []QuizQuestion `json:"quiz"`
}

// Body is the generated part of a course, as returned by the content generator.
type Body struct {
	Description string     `json:"description"`
	Icon        Icon       `json:"icon"`
	Difficulty  Difficulty `json:"difficulty"`
	Lessons     []Lesson   `json:"lessons"`
}

// Course is a generated course addressed by a stable identifier.
// Courses are immutable once generated.
type Course struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        Icon       `json:"icon"`
	Difficulty  Difficulty `json:"difficulty"`
	Lessons     []Lesson   `json:"lessons"`
}

// New attaches an identifier and title to a generated body.
func New(id, title string, body Body) Course {
	return Course{
		ID:          id,
		Title:       title,
		Description: body.Description,
		Icon:        body.Icon,
		Difficulty:  body.Difficulty,
		Lessons:     body.Lessons,
	}
}

// LessonCount returns the number of lessons in the course.
func (c Course) LessonCount() int {
	return len(c.Lessons)
}

// Quiz returns the quiz of the lesson at index, or false if the index is out of range.
func (c Course) Quiz(lessonIndex int) ([]QuizQuestion, bool) {
	if lessonIndex < 0 || lessonIndex >= len(c.Lessons) {
		return nil, false
	}
	return c.Lessons[lessonIndex].Quiz, true
}

// Validate checks the generation contract: a non-empty description, known
// icon and difficulty, and at least one lesson. Quiz shape is not enforced
// beyond what the generator returns.
func (b Body) Validate() error {
	var errs []error
	if strings.TrimSpace(b.Description) == "" {
		errs = append(errs, errors.New("description is empty"))
	}
	if !b.Icon.Valid() {
		errs = append(errs, fmt.Errorf("icon %q is not one of tax, investment, budget", b.Icon))
	}
	if !b.Difficulty.Valid() {
		errs = append(errs, fmt.Errorf("difficulty %q is not one of beginner, intermediate", b.Difficulty))
	}
	if len(b.Lessons) == 0 {
		errs = append(errs, errors.New("lessons are empty"))
	}
	return errors.Join(errs...)
}
