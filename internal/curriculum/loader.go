// Package curriculum loads the seed topics and color themes.
package curriculum

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// DefaultDebounce is the quiet period after a file change before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Loader holds the current topics and themes. Topics come from the embedded
// defaults unless an override file provides them.
type Loader struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	topics []Topic
	themes []Theme
}

// Option configures a Loader.
type Option func(*Loader)

// WithDebounce sets the watch debounce period.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) {
		l.debounce = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader loads the embedded defaults and, when path is not empty, the
// override file at path.
func NewLoader(path string, opts ...Option) (*Loader, error) {
	l := &Loader{
		path:     path,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.Reload(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	l.logger.Info("curriculum loaded", "topics", len(l.topics), "themes", len(l.themes), "path", path)
	return l, nil
}

// Reload re-reads the defaults and the override file. On error the previous
// content is kept.
func (l *Loader) Reload() error {
	base, err := loadDefaults()
	if err != nil {
		return err
	}

	if l.path != "" {
		override, err := readFile(l.path)
		if err != nil {
			return err
		}
		if len(override.Topics) > 0 {
			base.Topics = override.Topics
		}
		if len(override.Themes) > 0 {
			base.Themes = override.Themes
		}
	}

	if err := validate(base); err != nil {
		return err
	}

	l.mu.Lock()
	l.topics = base.Topics
	l.themes = base.Themes
	l.mu.Unlock()
	return nil
}

// Topics returns the seed topics in declared order.
func (l *Loader) Topics() []Topic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.topics)
}

// Themes returns the available themes. The first one is the default.
func (l *Loader) Themes() []Theme {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.themes)
}

// Watch reloads the override file whenever it changes and calls onChange with
// the new topics. It blocks until ctx is done. A file that fails to load is
// logged and the previous content stays active.
func (l *Loader) Watch(ctx context.Context, onChange func([]Topic)) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file, so the directory is watched.
	target := filepath.Clean(l.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	l.logger.Info("watching curriculum file", "path", target)

	timer := time.NewTimer(l.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.logger.Debug("curriculum file changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(l.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("curriculum watcher error", "error", err)

		case <-timer.C:
			if err := l.Reload(); err != nil {
				l.logger.Warn("reloading curriculum", "path", target, "error", err)
				continue
			}
			topics := l.Topics()
			l.logger.Info("curriculum reloaded", "topics", len(topics))
			if onChange != nil {
				onChange(topics)
			}
		}
	}
}

func loadDefaults() (File, error) {
	var out File
	for _, name := range []string{"defaults/seeds.yaml", "defaults/themes.yaml"} {
		data, err := defaults.ReadFile(name)
		if err != nil {
			return File{}, fmt.Errorf("read %s: %w", name, err)
		}
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("parse %s: %w", name, err)
		}
		out.Topics = append(out.Topics, f.Topics...)
		out.Themes = append(out.Themes, f.Themes...)
	}
	return out, nil
}

func readFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func validate(f File) error {
	var errs []error

	seen := make(map[string]bool, len(f.Topics))
	for i, t := range f.Topics {
		switch {
		case t.ID == "" || t.Title == "":
			errs = append(errs, fmt.Errorf("topic %d: id and title are required", i))
		case seen[t.ID]:
			errs = append(errs, fmt.Errorf("topic %q: duplicate id", t.ID))
		}
		seen[t.ID] = true
	}

	if len(f.Themes) == 0 {
		errs = append(errs, errors.New("at least one theme is required"))
	}
	seen = make(map[string]bool, len(f.Themes))
	for i, th := range f.Themes {
		switch {
		case th.ID == "" || th.Name == "":
			errs = append(errs, fmt.Errorf("theme %d: id and name are required", i))
		case seen[th.ID]:
			errs = append(errs, fmt.Errorf("theme %q: duplicate id", th.ID))
		}
		seen[th.ID] = true
	}

	return errors.Join(errs...)
}
