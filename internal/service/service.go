// Package service assembles the application from configuration. The server
// and the admin CLI share it so both see the same store, catalog and state.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/app"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/generator"
	"github.com/p-n-ai/finedu/internal/kv"
	"github.com/p-n-ai/finedu/internal/persist"
	"github.com/p-n-ai/finedu/internal/platform/config"
	"github.com/p-n-ai/finedu/internal/platform/metrics"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "finedu"

// Service holds the wired components.
type Service struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Store      kv.Store
	Sync       *persist.Synchronizer
	AI         *ai.Router
	Curriculum *curriculum.Loader
	Catalog    *catalog.Loader
	App        *app.App

	closeStore func()
}

// NewLogger builds the process logger from the log settings.
func NewLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Option overrides a wired component. Tests use it to avoid live providers.
type Option func(*options)

type options struct {
	providers map[string]ai.Provider
	order     []string
	scheduler catalog.Scheduler
}

// WithProvider registers an AI provider instead of the configured ones.
func WithProvider(name string, p ai.Provider) Option {
	return func(o *options) {
		if o.providers == nil {
			o.providers = make(map[string]ai.Provider)
		}
		o.providers[name] = p
		o.order = append(o.order, name)
	}
}

// WithScheduler replaces the pacing scheduler.
func WithScheduler(s catalog.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// New opens the store, rehydrates the state and wires every component. The
// catalog worker is not started; callers run Catalog.Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New(MetricsNamespace)

	store, closeStore, err := kv.Open(ctx, kv.Options{
		Driver:      cfg.Store.Driver,
		SQLitePath:  cfg.Store.SQLitePath,
		DatabaseURL: cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		CacheURL:    cfg.Cache.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	logger.Info("store opened", "driver", cfg.Store.Driver)

	syncr := persist.New(store,
		persist.WithLogger(logger),
		persist.WithErrorFunc(func(slice persist.Slice, op string, _ error) {
			m.StoreErrors.WithLabelValues(string(slice), op).Inc()
		}),
	)

	router, err := newRouter(ctx, cfg, o)
	if err != nil {
		closeStore()
		return nil, err
	}

	cur, err := curriculum.NewLoader(cfg.Catalog.SeedsPath, curriculum.WithLogger(logger))
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	courses, err := generator.NewCourseGenerator(router, generator.WithLogger(logger))
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("creating course generator: %w", err)
	}

	sched := o.scheduler
	if sched == nil {
		sched = catalog.NewIntervalScheduler(cfg.Catalog.Pacing)
	}
	loader := catalog.NewLoader(curriculum.Seeds(cur.Topics()), courses, syncr,
		catalog.WithScheduler(sched),
		catalog.WithLogger(logger),
	)

	var avatars app.AvatarGenerator
	if router.HasImageProvider() {
		avatars = generator.NewAvatarGenerator(router, generator.WithLogger(logger))
	}

	a := app.New(app.Config{
		Catalog:  loader,
		Sync:     syncr,
		Avatars:  avatars,
		Themes:   cur.Themes(),
		Metrics:  m,
		Logger:   logger,
		Location: time.Local,
	})

	return &Service{
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
		Store:      store,
		Sync:       syncr,
		AI:         router,
		Curriculum: cur,
		Catalog:    loader,
		App:        a,
		closeStore: closeStore,
	}, nil
}

func newRouter(ctx context.Context, cfg *config.Config, o options) (*ai.Router, error) {
	router := ai.NewRouter()

	if len(o.providers) > 0 {
		for _, name := range o.order {
			router.Register(name, o.providers[name])
		}
		return router, nil
	}

	if cfg.AI.Google.APIKey != "" {
		p, err := ai.NewGoogleProvider(ctx, cfg.AI.Google.APIKey,
			ai.WithGoogleTextModel(cfg.AI.Google.TextModel),
			ai.WithGoogleImageModel(cfg.AI.Google.ImageModel),
		)
		if err != nil {
			return nil, fmt.Errorf("creating google provider: %w", err)
		}
		router.Register("google", p)
	}
	if cfg.AI.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey,
			ai.WithBaseURL(cfg.AI.OpenAI.BaseURL),
			ai.WithTextModel(cfg.AI.OpenAI.Model),
		))
	}
	if !router.HasProvider() {
		return nil, ai.ErrNoProvider
	}
	return router, nil
}

// StartWorker runs the catalog worker until the returned stop func is called.
func (s *Service) StartWorker(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Catalog.Run(ctx); err != nil {
			s.Logger.Error("catalog worker failed", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// ReloadSeeds replaces the catalog seeds and runs a reconciliation pass.
func (s *Service) ReloadSeeds(ctx context.Context, topics []curriculum.Topic) {
	s.Catalog.SetSeeds(curriculum.Seeds(topics))
	if err := s.App.Reconcile(ctx); err != nil {
		s.Logger.Error("reconciling reloaded seeds", "error", err)
	}
}

// Close releases the store.
func (s *Service) Close() {
	if s.closeStore != nil {
		s.closeStore()
	}
}
