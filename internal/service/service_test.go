package service

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/platform/config"
)

const courseJSON = `{
	"description": "d",
	"icon": "budget",
	"difficulty": "beginner",
	"lessons": [
		{"title": "L1", "content": "c", "quiz": [
			{"question": "q", "options": ["a","b","c","d"], "correctAnswerIndex": 3}
		]}
	]
}`

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     driver,
			SQLitePath: filepath.Join(t.TempDir(), "finedu.db"),
		},
		Log: config.LogConfig{Level: "debug", Format: "text"},
	}
}

func TestNew_ReconcilesEmbeddedSeeds(t *testing.T) {
	for _, driver := range []string{config.StoreMemory, config.StoreSQLite} {
		t.Run(driver, func(t *testing.T) {
			mock := ai.NewMockProvider(courseJSON)
			svc, err := New(t.Context(), testConfig(t, driver), slog.Default(),
				WithProvider("mock", mock),
				WithScheduler(catalog.NoDelay{}),
			)
			require.NoError(t, err)
			defer svc.Close()

			stop := svc.StartWorker(t.Context())
			defer stop()

			require.NoError(t, svc.App.Reconcile(t.Context()))
			assert.Equal(t, 3, svc.Catalog.Len())
			assert.Equal(t, 3, mock.Calls())
			assert.Len(t, svc.App.Snapshot().Themes, 4)

			// Generated courses are cached in the store.
			keys, err := svc.Store.Keys("course-")
			require.NoError(t, err)
			assert.Len(t, keys, 3)
		})
	}
}

func TestNew_ReopenedStoreServesCacheBeforeReconcile(t *testing.T) {
	cfg := testConfig(t, config.StoreSQLite)
	mock := ai.NewMockProvider(courseJSON)

	first, err := New(t.Context(), cfg, nil, WithProvider("mock", mock), WithScheduler(catalog.NoDelay{}))
	require.NoError(t, err)
	stop := first.StartWorker(t.Context())
	require.NoError(t, first.App.Reconcile(t.Context()))
	stop()
	first.Close()

	second, err := New(t.Context(), cfg, nil, WithProvider("mock", mock), WithScheduler(catalog.NoDelay{}))
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, 3, second.Catalog.Len())
	_, ok := second.Catalog.Course("orcamento")
	assert.True(t, ok)
	assert.Equal(t, 3, mock.Calls())
}

func TestNew_NoProvider(t *testing.T) {
	_, err := New(t.Context(), testConfig(t, config.StoreMemory), nil)
	assert.ErrorIs(t, err, ai.ErrNoProvider)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(t.Context(), testConfig(t, "mongo"), nil, WithProvider("mock", ai.NewMockProvider("")))
	assert.Error(t, err)
}

func TestReloadSeeds(t *testing.T) {
	mock := ai.NewMockProvider(courseJSON)
	svc, err := New(t.Context(), testConfig(t, config.StoreMemory), nil,
		WithProvider("mock", mock),
		WithScheduler(catalog.NoDelay{}),
	)
	require.NoError(t, err)
	defer svc.Close()
	stop := svc.StartWorker(t.Context())
	defer stop()

	svc.ReloadSeeds(t.Context(), []curriculum.Topic{{ID: "cripto", Title: "Criptomoedas"}})

	_, ok := svc.Catalog.Course("cripto")
	assert.True(t, ok)
	assert.Equal(t, 1, mock.Calls())
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level, format string
		logDebug      bool
		wantPrefix    string
	}{
		{"debug", "text", true, "time="},
		{"info", "json", false, "{"},
		{"WARN", "json", false, "{"},
		{"nonsense", "json", false, "{"},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, config.LogConfig{Level: tt.level, Format: tt.format})

			logger.Debug("debug line")
			if got := buf.Len() > 0; got != tt.logDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.logDebug)
			}

			logger.Error("error line")
			if !bytes.Contains(buf.Bytes(), []byte("error line")) {
				t.Errorf("error line missing from %q", buf.String())
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte(tt.wantPrefix)) {
				t.Errorf("output %q does not start with %q", buf.String(), tt.wantPrefix)
			}
		})
	}
}
