// Package catalog reconciles seed topics against cached courses and generates
// missing or user-requested courses through a single serialized worker.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/finedu/internal/course"
)

// Seed is a predefined topic generated automatically when not cached.
type Seed struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Generator produces a course body for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string, difficulty course.Difficulty) (course.Body, error)
}

// Cache is the persisted per-course cache.
type Cache interface {
	LoadCourses() (map[string]course.Course, error)
	SaveCourse(c course.Course) error
}

// Hooks observe generator activity. Hooks run on the worker goroutine and
// must not call back into the Loader's queued operations. Any field may be nil.
type Hooks struct {
	Generating func(id, topic string)
	Added      func(c course.Course, elapsed time.Duration)
	Failed     func(id, topic string, err error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithScheduler sets the pacing between generator calls of a reconciliation pass.
func WithScheduler(s Scheduler) Option {
	return func(l *Loader) {
		l.sched = s
	}
}

// WithHooks adds generator activity observers.
func WithHooks(h Hooks) Option {
	return func(l *Loader) {
		l.hooks = append(l.hooks, h)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// Loader owns the course catalog. Every mutating operation is queued and run
// one at a time by Run.
type Loader struct {
	gen    Generator
	cache  Cache
	sched  Scheduler
	logger *slog.Logger

	mu      sync.RWMutex
	hooks   []Hooks
	seeds   []Seed
	courses map[string]course.Course

	jobs    chan job
	stopped chan struct{}
}

type job struct {
	id   string
	kind string
	run  func(ctx context.Context) error
	done chan error
}

// NewLoader creates a loader holding every course already in the cache.
// Call Run to start processing operations.
func NewLoader(seeds []Seed, gen Generator, cache Cache, opts ...Option) *Loader {
	l := &Loader{
		gen:     gen,
		cache:   cache,
		sched:   NewIntervalScheduler(DefaultPacing),
		logger:  slog.Default(),
		seeds:   slices.Clone(seeds),
		courses: make(map[string]course.Course),
		jobs:    make(chan job, 16),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.loadCache()
	return l
}

// loadCache rehydrates the catalog from the cache. A read failure leaves the
// catalog empty; the next reconciliation pass reads the cache again.
func (l *Loader) loadCache() {
	cached, err := l.cache.LoadCourses()
	if err != nil {
		l.logger.Warn("loading cached courses", "slice", "courses", "error", err)
		return
	}
	if cached != nil {
		l.courses = cached
	}
	l.logger.Debug("catalog rehydrated", "courses", len(cached))
}

// Run processes queued operations until ctx is done. It must be called once.
func (l *Loader) Run(ctx context.Context) error {
	defer close(l.stopped)
	l.logger.Info("catalog worker started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("catalog worker stopped")
			return nil
		case j := <-l.jobs:
			start := time.Now()
			err := j.run(ctx)
			l.logger.Debug("catalog job finished",
				"job_id", j.id,
				"kind", j.kind,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			j.done <- err
		}
	}
}

// submit queues fn and waits for its result. If ctx ends first the job still
// runs to completion and commits.
func (l *Loader) submit(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	j := job{
		id:   uuid.NewString(),
		kind: kind,
		run:  fn,
		done: make(chan error, 1),
	}

	select {
	case l.jobs <- j:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Reconcile loads every cached course, then generates each missing seed in
// declared order at beginner level, persisting each one as soon as it is
// generated. Consecutive generator calls are paced by the scheduler.
//
// The first generator failure aborts the pass with a *GenerationError. Courses
// generated earlier in the pass stay cached, so the next pass only retries
// the remaining seeds.
func (l *Loader) Reconcile(ctx context.Context) (map[string]course.Course, error) {
	var out map[string]course.Course
	err := l.submit(ctx, "reconcile", func(ctx context.Context) error {
		var err error
		out, err = l.reconcile(ctx)
		return err
	})
	return out, err
}

func (l *Loader) reconcile(ctx context.Context) (map[string]course.Course, error) {
	working, err := l.cache.LoadCourses()
	if err != nil {
		l.logger.Warn("loading cached courses", "slice", "courses", "error", err)
		working = make(map[string]course.Course)
	}

	l.mu.Lock()
	for id, c := range l.courses {
		if _, ok := working[id]; !ok {
			working[id] = c
		}
	}
	l.courses = maps.Clone(working)
	seeds := slices.Clone(l.seeds)
	l.mu.Unlock()

	calls := 0
	for _, seed := range seeds {
		if _, ok := working[seed.ID]; ok {
			continue
		}

		if calls > 0 {
			if err := l.sched.Delay(ctx); err != nil {
				return working, fmt.Errorf("pacing generator: %w", err)
			}
		}
		calls++

		c, err := l.generate(ctx, seed.ID, seed.Title, course.Beginner)
		if err != nil {
			return working, err
		}
		working[c.ID] = c
	}

	l.logger.Info("catalog reconciled", "courses", len(working), "generated", calls)
	return working, nil
}

// GenerateOnDemand generates a course for a user topic under the identifier
// OnDemandID(title). A topic whose identifier is already in the catalog is
// rejected with ErrDuplicateTopic before any generator call. A failure only
// affects this request.
func (l *Loader) GenerateOnDemand(ctx context.Context, title string, difficulty course.Difficulty) (course.Course, error) {
	title = strings.TrimSpace(title)
	id := OnDemandID(title)
	if id == "" {
		return course.Course{}, ErrEmptyTopic
	}
	if !difficulty.Valid() {
		return course.Course{}, fmt.Errorf("unknown difficulty %q", difficulty)
	}
	if l.Has(id) {
		return course.Course{}, fmt.Errorf("topic %q: %w", id, ErrDuplicateTopic)
	}

	var out course.Course
	err := l.submit(ctx, "on-demand", func(ctx context.Context) error {
		// Re-checked on the worker: an earlier queued request may have added it.
		if l.Has(id) {
			return fmt.Errorf("topic %q: %w", id, ErrDuplicateTopic)
		}
		var err error
		out, err = l.generate(ctx, id, title, difficulty)
		return err
	})
	if err != nil {
		return course.Course{}, err
	}
	return out, nil
}

// generate calls the generator once, validates the body, and commits the
// course to memory and the cache. Cache write failures are logged only.
func (l *Loader) generate(ctx context.Context, id, title string, difficulty course.Difficulty) (course.Course, error) {
	l.mu.RLock()
	hooks := slices.Clone(l.hooks)
	l.mu.RUnlock()

	for _, h := range hooks {
		if h.Generating != nil {
			h.Generating(id, title)
		}
	}

	start := time.Now()
	body, err := l.gen.Generate(ctx, title, difficulty)
	if err == nil {
		err = body.Validate()
	}
	if err != nil {
		l.logger.Error("course generation failed", "topic", title, "id", id, "error", err)
		for _, h := range hooks {
			if h.Failed != nil {
				h.Failed(id, title, err)
			}
		}
		return course.Course{}, &GenerationError{Topic: title, Err: err}
	}

	c := course.New(id, title, body)

	l.mu.Lock()
	l.courses[id] = c
	l.mu.Unlock()

	if err := l.cache.SaveCourse(c); err != nil {
		l.logger.Error("caching course", "slice", "courses", "id", id, "error", err)
	}

	elapsed := time.Since(start)
	for _, h := range hooks {
		if h.Added != nil {
			h.Added(c, elapsed)
		}
	}
	return c, nil
}

// Observe registers generator activity observers. It may be called while the
// worker is running; the observers apply from the next generator call.
func (l *Loader) Observe(h Hooks) {
	l.mu.Lock()
	l.hooks = append(l.hooks, h)
	l.mu.Unlock()
}

// Has reports whether id is in the catalog.
func (l *Loader) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.courses[id]
	return ok
}

// Course returns the course with id.
func (l *Loader) Course(id string) (course.Course, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	return c, ok
}

// LessonCount returns the lesson count of a loaded course.
func (l *Loader) LessonCount(id string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.courses[id]
	if !ok {
		return 0, false
	}
	return c.LessonCount(), true
}

// Courses returns a copy of the catalog keyed by identifier.
func (l *Loader) Courses() map[string]course.Course {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.courses)
}

// Len returns the number of courses in the catalog.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.courses)
}

// List returns loaded seed courses in declared order, followed by every other
// course ordered by title.
func (l *Loader) List() []course.Course {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]course.Course, 0, len(l.courses))
	isSeed := make(map[string]bool, len(l.seeds))
	for _, s := range l.seeds {
		isSeed[s.ID] = true
		if c, ok := l.courses[s.ID]; ok {
			out = append(out, c)
		}
	}

	rest := make([]course.Course, 0, len(l.courses))
	for id, c := range l.courses {
		if !isSeed[id] {
			rest = append(rest, c)
		}
	}
	slices.SortFunc(rest, func(a, b course.Course) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return append(out, rest...)
}

// Seeds returns the current seed list.
func (l *Loader) Seeds() []Seed {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.seeds)
}

// SetSeeds replaces the seed list used by later reconciliation passes.
func (l *Loader) SetSeeds(seeds []Seed) {
	l.mu.Lock()
	l.seeds = slices.Clone(seeds)
	l.mu.Unlock()
}
