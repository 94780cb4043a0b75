// Package app owns every state slice and exposes the mutating entry points of
// the view layer. Each mutation is written through to the store before the
// call returns, and subscribers are notified afterwards.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/course"
	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/generator"
	"github.com/p-n-ai/finedu/internal/goals"
	"github.com/p-n-ai/finedu/internal/ledger"
	"github.com/p-n-ai/finedu/internal/persist"
	"github.com/p-n-ai/finedu/internal/platform/metrics"
	"github.com/p-n-ai/finedu/internal/progress"
	"github.com/p-n-ai/finedu/internal/view"
)

// Status messages shown while the catalog loads.
const (
	LoadingMessage      = "Carregando seus cursos..."
	generatingTemplate  = "Gerando curso: %s..."
	catalogFailedNotice = "Não foi possível carregar os cursos. Tente novamente."
)

var (
	// ErrNotFound is returned for an unknown course, lesson or goal.
	ErrNotFound = errors.New("not found")

	// ErrEmptyText is returned for blank goal text or avatar prompts.
	ErrEmptyText = errors.New("text is empty")

	// ErrInvalidScore is returned when score and total are not 0 <= score <= total, total > 0.
	ErrInvalidScore = errors.New("invalid quiz score")

	// ErrInvalidAvatar is returned when a saved avatar is not an image data URL.
	ErrInvalidAvatar = errors.New("avatar must be an image data URL")

	// ErrAvatarUnavailable is returned when no avatar generator is configured.
	ErrAvatarUnavailable = errors.New("avatar generation is not configured")
)

// Catalog is the course catalog as used by the app.
type Catalog interface {
	Reconcile(ctx context.Context) (map[string]course.Course, error)
	GenerateOnDemand(ctx context.Context, title string, difficulty course.Difficulty) (course.Course, error)
	Course(id string) (course.Course, bool)
	LessonCount(id string) (int, bool)
	List() []course.Course
	Len() int
	Observe(h catalog.Hooks)
}

// AvatarGenerator produces avatar images from a description.
type AvatarGenerator interface {
	Generate(ctx context.Context, description string) (ai.Image, error)
}

// Config holds dependencies for the app.
type Config struct {
	Catalog  Catalog
	Sync     *persist.Synchronizer
	Avatars  AvatarGenerator   // optional
	Themes   []curriculum.Theme // first theme is the default
	Metrics  *metrics.Metrics  // optional
	Logger   *slog.Logger
	Location *time.Location   // day boundaries of the daily points series
	Clock    func() time.Time // stamps ledger events and goal ids
}

// Status is the loading and generation state shown by the view layer.
type Status struct {
	Loading         bool   `json:"loading"`
	Message         string `json:"message,omitempty"`
	CatalogError    string `json:"catalogError,omitempty"`
	Generating      bool   `json:"generating"`
	GenerationError string `json:"generationError,omitempty"`
}

// App is the orchestrating owner of the state slices.
type App struct {
	catalog Catalog
	sync    *persist.Synchronizer
	avatars AvatarGenerator
	themes  []curriculum.Theme
	metrics *metrics.Metrics
	logger  *slog.Logger
	loc     *time.Location

	mu      sync.Mutex
	ledger  *ledger.Ledger
	tracker *progress.Tracker
	goals   *goals.Manager
	nav     *view.Navigator
	theme   string
	avatar  string
	status  Status
	pending int

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// New rehydrates every slice from the store and registers the app as an
// observer of catalog activity.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	st := cfg.Sync.Load()

	a := &App{
		catalog: cfg.Catalog,
		sync:    cfg.Sync,
		avatars: cfg.Avatars,
		themes:  cfg.Themes,
		metrics: cfg.Metrics,
		logger:  logger,
		loc:     loc,
		nav:     view.NewNavigator(),
		avatar:  st.Avatar,
		theme:   st.Theme,
		subs:    make(map[chan struct{}]struct{}),
	}
	a.ledger = ledger.New(st.Points, ledger.WithClock(clock))
	a.tracker = progress.NewTracker(st.Progress, cfg.Catalog, a.ledger)
	a.goals = goals.NewManager(st.Goals, a.ledger, goals.WithClock(clock))

	if _, ok := a.findTheme(a.theme); !ok && len(a.themes) > 0 {
		a.theme = a.themes[0].ID
	}

	cfg.Catalog.Observe(catalog.Hooks{
		Generating: a.onGenerating,
		Added:      a.onAdded,
		Failed:     a.onFailed,
	})

	logger.Info("state rehydrated",
		"points", a.ledger.Total(),
		"events", a.ledger.Len(),
		"goals", len(st.Goals),
		"completed_courses", a.tracker.CompletedCount(),
		"theme", a.theme,
	)
	return a
}

// Reconcile runs a catalog reconciliation pass. While it runs the status
// reports loading; a failure is kept as a blocking catalog error.
func (a *App) Reconcile(ctx context.Context) error {
	a.updateStatus(func(s *Status) {
		s.Loading = true
		s.Message = LoadingMessage
		s.CatalogError = ""
	})

	_, err := a.catalog.Reconcile(ctx)

	a.updateStatus(func(s *Status) {
		s.Loading = false
		s.Message = ""
		if err != nil {
			s.CatalogError = UserMessage(err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile catalog: %w", err)
	}
	return nil
}

// RequestCourse generates a course for a user topic. Failures are scoped to
// this request and shown inline; the dashboard stays usable.
func (a *App) RequestCourse(ctx context.Context, topic string, difficulty course.Difficulty) (course.Course, error) {
	a.updateStatus(func(s *Status) {
		a.pending++
		s.Generating = true
		s.GenerationError = ""
	})

	c, err := a.catalog.GenerateOnDemand(ctx, topic, difficulty)

	a.updateStatus(func(s *Status) {
		a.pending--
		s.Generating = a.pending > 0
		if catalog.IsGenerationError(err) {
			s.GenerationError = UserMessage(err)
		}
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

// SelectCourse opens a loaded course.
func (a *App) SelectCourse(id string) error {
	if _, ok := a.catalog.Course(id); !ok {
		return fmt.Errorf("course %q: %w", id, ErrNotFound)
	}
	a.mu.Lock()
	a.nav.SelectCourse(id)
	a.mu.Unlock()
	a.notify()
	return nil
}

// Back returns to the dashboard.
func (a *App) Back() {
	a.mu.Lock()
	a.nav.Back()
	a.mu.Unlock()
	a.notify()
}

// StartQuiz opens the quiz of a lesson of a loaded course.
func (a *App) StartQuiz(courseID string, lessonIndex int) error {
	c, ok := a.catalog.Course(courseID)
	if !ok {
		return fmt.Errorf("course %q: %w", courseID, ErrNotFound)
	}
	if _, ok := c.Quiz(lessonIndex); !ok {
		return fmt.Errorf("lesson %d of %q: %w", lessonIndex, courseID, ErrNotFound)
	}
	a.mu.Lock()
	a.nav.StartQuiz(courseID, lessonIndex)
	a.mu.Unlock()
	a.notify()
	return nil
}

// QuizOutcome is the result of completing the active quiz.
type QuizOutcome struct {
	Quiz   view.ActiveQuiz `json:"quiz"`
	Result progress.Result `json:"-"`
	Passed bool            `json:"passed"`
	Points int             `json:"points"`
}

// CompleteQuiz records the score of the active quiz and returns to its course.
// It reports false and changes nothing when no quiz is active.
func (a *App) CompleteQuiz(score, total int) (QuizOutcome, bool, error) {
	if total <= 0 || score < 0 || score > total {
		return QuizOutcome{}, false, fmt.Errorf("%d/%d: %w", score, total, ErrInvalidScore)
	}

	a.mu.Lock()
	q, ok := a.nav.CompleteQuiz()
	if !ok {
		a.mu.Unlock()
		return QuizOutcome{}, false, nil
	}

	res := a.tracker.RecordQuizResult(q.CourseID, q.LessonIndex, score, total)
	if res.Changed() {
		a.commitLocked(persist.SliceProgress, persist.SlicePoints)
	}
	a.mu.Unlock()

	a.observePoints(res.Events)
	a.logger.Info("quiz completed",
		"course_id", q.CourseID,
		"lesson", q.LessonIndex,
		"score", score,
		"total", total,
		"first_pass", res.FirstPass,
		"course_completed", res.CourseCompleted,
	)
	a.notify()

	out := QuizOutcome{Quiz: q, Result: res, Passed: res.Passed}
	for _, e := range res.Events {
		out.Points += e.Points
	}
	return out, true, nil
}

// AddGoal adds a goal. Blank text is rejected.
func (a *App) AddGoal(text string) (goals.Goal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return goals.Goal{}, fmt.Errorf("goal: %w", ErrEmptyText)
	}

	a.mu.Lock()
	g := a.goals.Add(text)
	a.commitLocked(persist.SliceGoals)
	a.mu.Unlock()

	a.notify()
	return g, nil
}

// ToggleGoal flips the completed flag of a goal.
func (a *App) ToggleGoal(id int64) (goals.ToggleResult, error) {
	a.mu.Lock()
	res, ok := a.goals.Toggle(id)
	if !ok {
		a.mu.Unlock()
		return goals.ToggleResult{}, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	if res.Awarded != nil {
		a.commitLocked(persist.SliceGoals, persist.SlicePoints)
	} else {
		a.commitLocked(persist.SliceGoals)
	}
	a.mu.Unlock()

	if res.Awarded != nil {
		a.observePoints([]ledger.Event{*res.Awarded})
	}
	a.notify()
	return res, nil
}

// GenerateAvatar returns a generated avatar preview as a data URL. Nothing is
// saved until SaveAvatar.
func (a *App) GenerateAvatar(ctx context.Context, description string) (string, error) {
	if a.avatars == nil {
		return "", ErrAvatarUnavailable
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("avatar prompt: %w", ErrEmptyText)
	}

	start := time.Now()
	img, err := a.avatars.Generate(ctx, description)
	if a.metrics != nil {
		a.metrics.ObserveGeneration("avatar", time.Since(start), err)
	}
	if err != nil {
		a.logger.Error("avatar generation failed", "error", err)
		return "", fmt.Errorf("generate avatar: %w", err)
	}
	return generator.DataURL(img), nil
}

// SaveAvatar stores an image data URL as the avatar. An empty value removes it.
func (a *App) SaveAvatar(dataURL string) error {
	if dataURL != "" && !strings.HasPrefix(dataURL, "data:image/") {
		return ErrInvalidAvatar
	}

	a.mu.Lock()
	a.avatar = dataURL
	a.commitLocked(persist.SliceAvatar)
	a.mu.Unlock()

	a.notify()
	return nil
}

// Avatar returns the stored avatar data URL, or "" when none is set.
func (a *App) Avatar() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avatar
}

// ChangeTheme activates a known theme. Unknown ids are ignored and reported
// as false.
func (a *App) ChangeTheme(id string) bool {
	if _, ok := a.findTheme(id); !ok {
		return false
	}

	a.mu.Lock()
	changed := a.theme != id
	if changed {
		a.theme = id
		a.commitLocked(persist.SliceTheme)
	}
	a.mu.Unlock()

	if changed {
		a.notify()
	}
	return true
}

// Points returns the ledger history and its daily series.
func (a *App) Points() ([]ledger.Event, []ledger.DayTotal) {
	return a.ledger.Events(), a.ledger.DailyTotals(a.loc)
}

// TotalPoints folds the ledger.
func (a *App) TotalPoints() int {
	return a.ledger.Total()
}

// Location returns the time zone of the daily points series.
func (a *App) Location() *time.Location {
	return a.loc
}

// UserMessage returns the message shown to the user for a catalog error.
func UserMessage(err error) string {
	var ge *catalog.GenerationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ge):
		return ge.UserMessage()
	case errors.Is(err, catalog.ErrDuplicateTopic):
		return catalog.DuplicateNotice
	case errors.Is(err, generator.ErrNoImage), errors.Is(err, ErrAvatarUnavailable):
		return generator.AvatarFailureMessage
	default:
		return catalogFailedNotice
	}
}

func (a *App) commitLocked(slices ...persist.Slice) {
	a.sync.Commit(persist.State{
		Progress: a.tracker.Snapshot(),
		Goals:    a.goals.List(),
		Points:   a.ledger.Events(),
		Avatar:   a.avatar,
		Theme:    a.theme,
	}, slices...)
}

func (a *App) updateStatus(fn func(s *Status)) {
	a.mu.Lock()
	fn(&a.status)
	a.mu.Unlock()
	a.notify()
}

func (a *App) findTheme(id string) (curriculum.Theme, bool) {
	for _, t := range a.themes {
		if t.ID == id {
			return t, true
		}
	}
	return curriculum.Theme{}, false
}

func (a *App) observePoints(events []ledger.Event) {
	if a.metrics == nil {
		return
	}
	for _, e := range events {
		a.metrics.PointsAwarded.WithLabelValues(string(e.Reason)).Add(float64(e.Points))
	}
}

func (a *App) onGenerating(id, topic string) {
	if strings.HasPrefix(id, catalog.OnDemandPrefix) {
		return
	}
	a.updateStatus(func(s *Status) {
		if s.Loading {
			s.Message = fmt.Sprintf(generatingTemplate, topic)
		}
	})
}

func (a *App) onAdded(c course.Course, elapsed time.Duration) {
	if a.metrics != nil {
		a.metrics.ObserveGeneration(generationKind(c.ID), elapsed, nil)
	}
	a.notify()
}

func (a *App) onFailed(id, _ string, err error) {
	if a.metrics != nil {
		a.metrics.ObserveGeneration(generationKind(id), 0, err)
	}
}

func generationKind(id string) string {
	if strings.HasPrefix(id, catalog.OnDemandPrefix) {
		return "on-demand"
	}
	return "seed"
}

func avatarRef(dataURL string) string {
	if dataURL == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(dataURL))
	return hex.EncodeToString(sum[:16])
}
