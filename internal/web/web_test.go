package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/app"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/curriculum"
	"github.com/p-n-ai/finedu/internal/generator"
	"github.com/p-n-ai/finedu/internal/kv"
	"github.com/p-n-ai/finedu/internal/persist"
	"github.com/p-n-ai/finedu/internal/platform/metrics"
	"github.com/p-n-ai/finedu/internal/report"
	"github.com/p-n-ai/finedu/internal/web"
)

const courseJSON = `{
	"description": "Organize suas finanças.",
	"icon": "budget",
	"difficulty": "beginner",
	"lessons": [
		{"title": "L1", "content": "c", "quiz": [
			{"question": "q1", "options": ["a","b","c","d"], "correctAnswerIndex": 0}
		]},
		{"title": "L2", "content": "c", "quiz": [
			{"question": "q1", "options": ["a","b","c","d"], "correctAnswerIndex": 0}
		]}
	]
}`

type fakeReady struct{ err error }

func (f fakeReady) HealthCheck(context.Context) error { return f.err }

type testEnv struct {
	srv      *httptest.Server
	app      *app.App
	store    *kv.MemoryStore
	provider *ai.MockProvider
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T, seeds []catalog.Seed, ready web.HealthChecker) *testEnv {
	t.Helper()

	provider := ai.NewMockProvider(courseJSON)
	provider.ImageData = []byte("png")

	courses, err := generator.NewCourseGenerator(provider)
	require.NoError(t, err)

	store := kv.NewMemoryStore()
	syncr := persist.New(store)
	loader := catalog.NewLoader(seeds, courses, syncr, catalog.WithScheduler(catalog.NoDelay{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loader.Run(ctx)
	}()

	m := metrics.New("finedu_test")
	a := app.New(app.Config{
		Catalog:  loader,
		Sync:     syncr,
		Avatars:  generator.NewAvatarGenerator(provider),
		Themes:   []curriculum.Theme{{ID: "emerald", Name: "Esmeralda"}, {ID: "sky", Name: "Céu"}},
		Metrics:  m,
		Location: time.UTC,
	})
	if len(seeds) > 0 {
		require.NoError(t, a.Reconcile(t.Context()))
	}

	srv := httptest.NewServer(web.New(web.Config{App: a, Ready: ready, Metrics: m}).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &testEnv{srv: srv, app: a, store: store, provider: provider, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	return body.Error
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		ready      web.HealthChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz without store check",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "readyz with healthy store",
			ready:      fakeReady{},
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "readyz with unreachable store",
			ready:      fakeReady{err: errors.New("connection refused")},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.ready)
			resp := env.do(t, http.MethodGet, tt.path, "")

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if resp.Header.Get(web.RequestIDHeader) == "" {
				t.Error("response has no request id")
			}
		})
	}
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t, []catalog.Seed{{ID: "orcamento", Title: "Orçamento"}}, nil)

	var snap app.Snapshot
	resp := env.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &snap)
	require.Len(t, snap.Courses, 1)
	assert.Equal(t, "orcamento", snap.Courses[0].ID)

	resp = env.do(t, http.MethodPost, "/api/courses/orcamento/select", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &snap)
	require.NotNil(t, snap.ActiveCourse)

	for lesson := range 2 {
		resp = env.do(t, http.MethodPost, "/api/quiz/start", `{"courseId":"orcamento","lessonIndex":`+strconv.Itoa(lesson)+`}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Completed bool `json:"completed"`
			Passed    bool `json:"passed"`
			Points    int  `json:"points"`
		}
		resp = env.do(t, http.MethodPost, "/api/quiz/complete", `{"score":1,"total":1}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeBody(t, resp, &out)
		assert.True(t, out.Completed)
		assert.True(t, out.Passed)
	}

	assert.Equal(t, 200, env.app.TotalPoints())

	// No quiz is active any more.
	var out struct {
		Completed bool `json:"completed"`
	}
	resp = env.do(t, http.MethodPost, "/api/quiz/complete", `{"score":1,"total":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &out)
	assert.False(t, out.Completed)

	resp = env.do(t, http.MethodPost, "/api/navigation/back", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = app.Snapshot{}
	decodeBody(t, resp, &snap)
	assert.Nil(t, snap.ActiveCourse)
	assert.Equal(t, 1, snap.CompletedCount)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, []catalog.Seed{{ID: "orcamento", Title: "Orçamento"}}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{"empty body", http.MethodPost, "/api/goals", "", http.StatusBadRequest, "request body is empty"},
		{"unknown field", http.MethodPost, "/api/goals", `{"text":"x","extra":1}`, http.StatusBadRequest, "invalid JSON"},
		{"missing text", http.MethodPost, "/api/goals", `{"text":""}`, http.StatusBadRequest, "text is required"},
		{"blank text", http.MethodPost, "/api/goals", `{"text":"   "}`, http.StatusBadRequest, "text is empty"},
		{"missing score", http.MethodPost, "/api/quiz/complete", `{"total":3}`, http.StatusBadRequest, "score is required"},
		{"zero total", http.MethodPost, "/api/quiz/complete", `{"score":0,"total":0}`, http.StatusBadRequest, "total is required"},
		{"score above total", http.MethodPost, "/api/quiz/complete", `{"score":4,"total":3}`, http.StatusBadRequest, "invalid quiz score"},
		{"negative lesson", http.MethodPost, "/api/quiz/start", `{"courseId":"orcamento","lessonIndex":-1}`, http.StatusBadRequest, "lessonIndex must be at least 0"},
		{"unknown lesson", http.MethodPost, "/api/quiz/start", `{"courseId":"orcamento","lessonIndex":9}`, http.StatusNotFound, "not found"},
		{"unknown course", http.MethodPost, "/api/courses/nope/select", "", http.StatusNotFound, "not found"},
		{"bad difficulty", http.MethodPost, "/api/courses", `{"topic":"FII","difficulty":"expert"}`, http.StatusBadRequest, "difficulty must be one of"},
		{"bad goal id", http.MethodPost, "/api/goals/abc/toggle", "", http.StatusBadRequest, "goal id must be an integer"},
		{"unknown goal", http.MethodPost, "/api/goals/7/toggle", "", http.StatusNotFound, "not found"},
		{"unknown theme", http.MethodPut, "/api/theme", `{"themeId":"neon"}`, http.StatusBadRequest, `unknown theme "neon"`},
		{"avatar not an image", http.MethodPut, "/api/avatar", `{"image":"https://x/y.png"}`, http.StatusBadRequest, "image must start with data:image/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if msg := errorMessage(t, resp); !strings.Contains(msg, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.wantErr)
			}
		})
	}
}

func TestRequestCourse(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPost, "/api/courses", `{"topic":"Fundos Imobiliários","difficulty":"intermediate"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	decodeBody(t, resp, &c)
	assert.Equal(t, "user-fundos-imobiliários", c.ID)

	resp = env.do(t, http.MethodPost, "/api/courses", `{"topic":"fundos imobiliários"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, catalog.DuplicateNotice, errorMessage(t, resp))
	assert.Equal(t, 1, env.provider.Calls(), "duplicate makes no generator call")
}

func TestRequestCourse_GenerationFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.provider.Response = `{"lessons": []}`

	resp := env.do(t, http.MethodPost, "/api/courses", `{"topic":"Cripto"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, `Failed to generate course content for "Cripto". Please try again.`, errorMessage(t, resp))

	var snap app.Snapshot
	decodeBody(t, env.do(t, http.MethodGet, "/api/state", ""), &snap)
	assert.Equal(t, `Failed to generate course content for "Cripto". Please try again.`, snap.Status.GenerationError)
	assert.Empty(t, snap.Courses)
}

func TestGoals(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPost, "/api/goals", `{"text":"Guardar 10%"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var g struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	decodeBody(t, resp, &g)
	assert.Equal(t, "Guardar 10%", g.Text)

	var toggled struct {
		Goal struct {
			Completed bool `json:"completed"`
		} `json:"goal"`
		Awarded *struct {
			Points int `json:"points"`
		} `json:"awarded"`
	}
	path := "/api/goals/" + strconv.FormatInt(g.ID, 10) + "/toggle"
	resp = env.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &toggled)
	assert.True(t, toggled.Goal.Completed)
	require.NotNil(t, toggled.Awarded)
	assert.Equal(t, 25, toggled.Awarded.Points)

	toggled.Awarded = nil
	resp = env.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &toggled)
	assert.False(t, toggled.Goal.Completed)
	assert.Nil(t, toggled.Awarded)
	assert.Equal(t, 25, env.app.TotalPoints())
}

func TestThemeChange(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodPut, "/api/theme", `{"themeId":"sky"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap app.Snapshot
	decodeBody(t, resp, &snap)
	assert.Equal(t, "sky", snap.Theme.ID)

	v, ok, err := env.store.Get(persist.KeyTheme)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sky", v)
}

func TestAvatar(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp := env.do(t, http.MethodGet, "/api/avatar", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/avatar/generate", `{"prompt":"um cofrinho sorridente"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var gen struct {
		Image string `json:"image"`
	}
	decodeBody(t, resp, &gen)
	assert.Equal(t, "data:image/png;base64,cG5n", gen.Image)
	require.NotNil(t, env.provider.LastImage)
	assert.Contains(t, env.provider.LastImage.Prompt, "um cofrinho sorridente")

	resp = env.do(t, http.MethodPut, "/api/avatar", `{"image":"`+gen.Image+`"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/avatar", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "png", string(body))

	resp = env.do(t, http.MethodPut, "/api/avatar", `{"image":""}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok, err := env.store.Get(persist.KeyAvatar)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAvatar_GenerationFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.provider.ImageData = nil

	resp := env.do(t, http.MethodPost, "/api/avatar/generate", `{"prompt":"cofre"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, generator.AvatarFailureMessage, errorMessage(t, resp))
}

func TestExportPoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	g, err := env.app.AddGoal("Reserva")
	require.NoError(t, err)
	_, err = env.app.ToggleGoal(g.ID)
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/points/export.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.EventsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Meta Completa", rows[1][1])
	assert.Equal(t, "25", rows[1][2])
}

func TestSnapshotStream(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var snap app.Snapshot
	require.NoError(t, wsjson.Read(ctx, conn, &snap))
	assert.Empty(t, snap.Goals)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(env.metrics.Subscribers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = env.app.AddGoal("Investir")
	require.NoError(t, err)

	for len(snap.Goals) == 0 {
		require.NoError(t, wsjson.Read(ctx, conn, &snap))
	}
	assert.Equal(t, "Investir", snap.Goals[0].Text)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(env.metrics.Subscribers) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodGet, "/api/state", "")

	resp := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `finedu_test_http_requests_total{method="GET",route="GET /api/state",status="200"} 1`)
}
