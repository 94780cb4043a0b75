// Package persist mirrors the in-memory state slices to a key-value store and
// rehydrates them at startup.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/finedu/internal/course"
	"github.com/p-n-ai/finedu/internal/goals"
	"github.com/p-n-ai/finedu/internal/kv"
	"github.com/p-n-ai/finedu/internal/ledger"
	"github.com/p-n-ai/finedu/internal/progress"
)

// Storage keys. These match data written by earlier releases of the app.
const (
	KeyProgress  = "finEducaProgress"
	KeyGoals     = "finEducaGoals"
	KeyPoints    = "finEducaPointsHistory"
	KeyAvatar    = "finEducaProfilePic"
	KeyTheme     = "finEducaTheme"
	CoursePrefix = "course-"
)

// Slice names an independently persisted part of the state.
type Slice string

const (
	SliceProgress Slice = "progress"
	SliceGoals    Slice = "goals"
	SlicePoints   Slice = "points"
	SliceAvatar   Slice = "avatar"
	SliceTheme    Slice = "theme"
	SliceCourses  Slice = "courses"
)

// State holds every slice except the course cache.
type State struct {
	Progress progress.Progress
	Goals    []goals.Goal
	Points   []ledger.Event
	Avatar   string
	Theme    string
}

// ErrorFunc observes storage failures.
type ErrorFunc func(slice Slice, op string, err error)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithErrorFunc registers an observer for read and write failures.
func WithErrorFunc(fn ErrorFunc) Option {
	return func(s *Synchronizer) {
		s.onError = fn
	}
}

// Synchronizer reads and writes state slices.
type Synchronizer struct {
	store   kv.Store
	logger  *slog.Logger
	onError ErrorFunc
}

// New creates a synchronizer over store.
func New(store kv.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates each slice independently. A slice that is missing, unreadable
// or malformed is logged and replaced by its empty value; the other slices
// still load. Ledger events are decoded one at a time.
func (s *Synchronizer) Load() State {
	st := State{
		Progress: progress.Empty(),
	}

	var p progress.Progress
	if s.readJSON(SliceProgress, KeyProgress, &p) {
		st.Progress = p.Normalize()
	}

	var g []goals.Goal
	if s.readJSON(SliceGoals, KeyGoals, &g) {
		st.Goals = g
	}

	st.Points = s.loadPoints()

	if v, ok := s.read(SliceAvatar, KeyAvatar); ok {
		st.Avatar = v
	}
	if v, ok := s.read(SliceTheme, KeyTheme); ok {
		st.Theme = v
	}

	return st
}

func (s *Synchronizer) read(slice Slice, key string) (string, bool) {
	v, ok, err := s.store.Get(key)
	if err != nil {
		s.fail(slice, "read", err)
		return "", false
	}
	return v, ok
}

func (s *Synchronizer) readJSON(slice Slice, key string, dst any) bool {
	raw, ok := s.read(slice, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.fail(slice, "decode", err)
		return false
	}
	return true
}

// loadPoints decodes the ledger history event by event. An event that fails
// to decode is skipped and reported; the rest of the history still loads.
func (s *Synchronizer) loadPoints() []ledger.Event {
	var raw []json.RawMessage
	if !s.readJSON(SlicePoints, KeyPoints, &raw) {
		return nil
	}

	events := make([]ledger.Event, 0, len(raw))
	for i, r := range raw {
		var e ledger.Event
		if err := json.Unmarshal(r, &e); err != nil {
			s.fail(SlicePoints, "decode", fmt.Errorf("event %d: %w", i, err))
			continue
		}
		events = append(events, e)
	}
	return events
}

// Commit overwrites each named slice in full. Write failures are logged and
// not retried.
func (s *Synchronizer) Commit(st State, slices ...Slice) {
	for _, slice := range slices {
		var err error
		switch slice {
		case SliceProgress:
			err = s.writeJSON(KeyProgress, st.Progress)
		case SliceGoals:
			g := st.Goals
			if g == nil {
				g = []goals.Goal{}
			}
			err = s.writeJSON(KeyGoals, g)
		case SlicePoints:
			p := st.Points
			if p == nil {
				p = []ledger.Event{}
			}
			err = s.writeJSON(KeyPoints, p)
		case SliceAvatar:
			if st.Avatar == "" {
				err = s.store.Delete(KeyAvatar)
			} else {
				err = s.store.Set(KeyAvatar, st.Avatar)
			}
		case SliceTheme:
			err = s.store.Set(KeyTheme, st.Theme)
		default:
			err = fmt.Errorf("unknown slice %q", slice)
		}
		if err != nil {
			s.fail(slice, "write", err)
		}
	}
}

func (s *Synchronizer) writeJSON(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.store.Set(key, string(b))
}

// LoadCourses reads every cached course. Entries that fail to decode are
// skipped and logged; an entry without an id takes it from its key. An error
// is returned only when the keys cannot be listed.
func (s *Synchronizer) LoadCourses() (map[string]course.Course, error) {
	keys, err := s.store.Keys(CoursePrefix)
	if err != nil {
		s.fail(SliceCourses, "read", err)
		return nil, fmt.Errorf("listing course keys: %w", err)
	}

	out := make(map[string]course.Course, len(keys))
	for _, key := range keys {
		raw, ok := s.read(SliceCourses, key)
		if !ok {
			continue
		}
		var c course.Course
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			s.fail(SliceCourses, "decode", fmt.Errorf("%s: %w", key, err))
			continue
		}
		if c.ID == "" {
			c.ID = strings.TrimPrefix(key, CoursePrefix)
		}
		out[c.ID] = c
	}
	return out, nil
}

// SaveCourse writes a course under its cache key. Logging is left to the caller.
func (s *Synchronizer) SaveCourse(c course.Course) error {
	if err := s.writeJSON(CourseKey(c.ID), c); err != nil {
		if s.onError != nil {
			s.onError(SliceCourses, "write", err)
		}
		return err
	}
	return nil
}

// CourseKey returns the cache key of a course.
func CourseKey(id string) string {
	return CoursePrefix + id
}

func (s *Synchronizer) fail(slice Slice, op string, err error) {
	if op == "write" {
		s.logger.Error("storage write failed", "slice", string(slice), "error", err)
	} else {
		s.logger.Warn("storage read failed, using default", "slice", string(slice), "op", op, "error", err)
	}
	if s.onError != nil {
		s.onError(slice, op, err)
	}
}
