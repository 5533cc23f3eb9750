package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-irsensor/migrations"
)

// newTestRepo opens an in-memory database with the real schema.
func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateFillsIDAndTime(t *testing.T) {
	repo := newTestRepo(t)

	e := &Execution{Command: "sudo -n python3 read_ir_sensor.py", Elevated: true, Outcome: "ok"}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(e.ID, "exe-") || len(e.ID) != len("exe-")+8 {
		t.Errorf("ID = %q, want exe-xxxxxxxx", e.ID)
	}
	if e.ExecutedAt.IsZero() || e.ExecutedAt.Location() != time.UTC {
		t.Errorf("ExecutedAt = %v, want UTC now", e.ExecutedAt)
	}
}

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Execution{
		{ExecutedAt: base, Command: "c", Elevated: true, ExitCode: 0, DurationMS: 40, Outcome: "ok", Detected: true, RequestID: "r1"},
		{ExecutedAt: base.Add(500 * time.Millisecond), Command: "c", Elevated: true, ExitCode: 1, DurationMS: 35, Outcome: "probe_error", Error: "GPIO busy"},
		{ExecutedAt: base.Add(2 * time.Second), Command: "c", ExitCode: 0, DurationMS: 20, Outcome: "parse_error", Error: "Invalid JSON response: x", RemoteAddr: "10.0.0.2:1"},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 3 || len(result.Executions) != 3 {
		t.Fatalf("Total = %d, len = %d, want 3", result.Total, len(result.Executions))
	}
	if result.Limit != defaultLimit {
		t.Errorf("Limit = %d, want default %d", result.Limit, defaultLimit)
	}

	// Newest first; sub-second ordering must hold.
	got := result.Executions
	if got[0].Outcome != "parse_error" || got[1].Outcome != "probe_error" || got[2].Outcome != "ok" {
		t.Errorf("order = %s, %s, %s", got[0].Outcome, got[1].Outcome, got[2].Outcome)
	}

	first := got[2]
	if !first.Elevated || !first.Detected || first.RequestID != "r1" || first.DurationMS != 40 {
		t.Errorf("round-tripped row = %+v", first)
	}
	if !first.ExecutedAt.Equal(base) {
		t.Errorf("ExecutedAt = %v, want %v", first.ExecutedAt, base)
	}
	if got[1].Error != "GPIO busy" || got[1].ExitCode != 1 {
		t.Errorf("failure row = %+v", got[1])
	}
	if got[0].RemoteAddr != "10.0.0.2:1" || got[0].Elevated {
		t.Errorf("unelevated row = %+v", got[0])
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"ok", "ok", "exec_error", "ok"} {
		e := &Execution{ExecutedAt: base.Add(time.Duration(i) * time.Minute), Command: "c", Outcome: outcome}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"by outcome", Filter{Outcome: "ok"}, 3, 3},
		{"since", Filter{Since: base.Add(2 * time.Minute)}, 2, 2},
		{"limit", Filter{Limit: 1}, 4, 1},
		{"offset", Filter{Offset: 3}, 4, 1},
		{"limit clamped", Filter{Limit: 10000}, 4, 4},
		{"negative offset", Filter{Offset: -5}, 4, 4},
		{"no match", Filter{Outcome: "internal_error"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal || len(result.Executions) != tt.wantLen {
				t.Errorf("Total = %d, len = %d, want %d/%d",
					result.Total, len(result.Executions), tt.wantTotal, tt.wantLen)
			}
			if result.Limit > maxLimit {
				t.Errorf("Limit = %d exceeds max", result.Limit)
			}
		})
	}
}
