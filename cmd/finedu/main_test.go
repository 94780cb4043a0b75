package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/finedu/internal/ai"
	"github.com/p-n-ai/finedu/internal/catalog"
	"github.com/p-n-ai/finedu/internal/platform/config"
	"github.com/p-n-ai/finedu/internal/report"
	"github.com/p-n-ai/finedu/internal/service"
)

const courseJSON = `{"description":"d","icon":"budget","difficulty":"beginner","lessons":[{"title":"L","content":"c","quiz":[{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":0}]}]}`

// testOpener opens services over one SQLite file so state survives between
// command invocations.
func testOpener(t *testing.T, mock *ai.MockProvider) opener {
	t.Helper()
	cfg := &config.Config{
		Store: config.StoreConfig{
			Driver:     config.StoreSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "finedu.db"),
		},
	}
	return func(ctx context.Context) (*service.Service, error) {
		return service.New(ctx, cfg, nil,
			service.WithProvider("mock", mock),
			service.WithScheduler(catalog.NoDelay{}),
		)
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestReconcileCmd(t *testing.T) {
	mock := ai.NewMockProvider(courseJSON)
	open := testOpener(t, mock)

	out, err := execute(t, open, "reconcile")
	if err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	for _, id := range []string{"orcamento", "investimentos", "impostos"} {
		if !strings.Contains(out, id) {
			t.Errorf("output missing %q:\n%s", id, out)
		}
	}
	if mock.Calls() != 3 {
		t.Errorf("generator calls = %d, want 3", mock.Calls())
	}

	// The second run reads the cache.
	if _, err := execute(t, open, "reconcile"); err != nil {
		t.Fatalf("second reconcile error = %v", err)
	}
	if mock.Calls() != 3 {
		t.Errorf("generator calls after cached run = %d, want 3", mock.Calls())
	}
}

func TestGenerateCmd(t *testing.T) {
	mock := ai.NewMockProvider(courseJSON)
	open := testOpener(t, mock)

	out, err := execute(t, open, "generate", "Fundos Imobiliários", "--difficulty", "intermediate")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if !strings.Contains(out, "user-fundos-imobiliários") {
		t.Errorf("output = %q, want the on-demand id", out)
	}

	_, err = execute(t, open, "generate", "fundos imobiliários")
	if err == nil || err.Error() != catalog.DuplicateNotice {
		t.Errorf("duplicate generate error = %v, want %q", err, catalog.DuplicateNotice)
	}

	if _, err := execute(t, open, "generate", "Cripto", "--difficulty", "expert"); err == nil {
		t.Error("generate with unknown difficulty should fail")
	}
	if _, err := execute(t, open, "generate"); err == nil {
		t.Error("generate without topic should fail")
	}
}

func TestPointsAndExportCmd(t *testing.T) {
	mock := ai.NewMockProvider(courseJSON)
	open := testOpener(t, mock)

	// Award points through the app, as the server would.
	svc, err := open(t.Context())
	if err != nil {
		t.Fatalf("open error = %v", err)
	}
	g, err := svc.App.AddGoal("Reserva de emergência")
	if err != nil {
		t.Fatalf("AddGoal() error = %v", err)
	}
	if _, err := svc.App.ToggleGoal(g.ID); err != nil {
		t.Fatalf("ToggleGoal() error = %v", err)
	}
	svc.Close()

	out, err := execute(t, open, "points")
	if err != nil {
		t.Fatalf("points error = %v", err)
	}
	if !strings.Contains(out, "Total: 25") {
		t.Errorf("points output = %q, want Total: 25", out)
	}

	path := filepath.Join(t.TempDir(), "pontos.xlsx")
	if _, err := execute(t, open, "export", "--out", path); err != nil {
		t.Fatalf("export error = %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.EventsSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("event rows = %d, want header + 1", len(rows))
	}
}
