package ops

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hpungsan/cgreduce/internal/db"
	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/run"
)

func insertRun(t *testing.T, f *fixture, id, forcefield string, status run.Status, createdAt int64) {
	t.Helper()
	r := &run.Run{
		ID:          id,
		ForceField:  forcefield,
		InputPath:   "/structures/" + id + ".pdb",
		CatalogPath: "/data/catalog",
		Residues:    3,
		Beads:       7,
		Status:      status,
		CreatedAt:   createdAt,
	}
	if status == run.StatusOK {
		r.Warnings = []diag.Warning{{Code: errors.ErrUnknownResidue, Message: "HOH"}}
	}
	if err := db.InsertRun(f.database, r); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Unix()
	insertRun(t, f, "01A", "attract1", run.StatusOK, now-30)
	insertRun(t, f, "01B", "ATTRACT2", run.StatusOK, now-20)
	insertRun(t, f, "01C", "attract1", run.StatusFailed, now-10)

	out, err := ListRuns(f.database, ListRunsInput{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if out.Sort != "created_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}
	if len(out.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(out.Items))
	}
	for i, want := range []string{"01C", "01B", "01A"} {
		if out.Items[i].ID != want {
			t.Errorf("Items[%d].ID = %q, want %q", i, out.Items[i].ID, want)
		}
	}
	if out.Items[2].WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", out.Items[2].WarningCount)
	}
	if out.Pagination.Limit != DefaultListLimit || out.Pagination.Total != 3 || out.Pagination.HasMore {
		t.Errorf("unexpected pagination %+v", out.Pagination)
	}
}

func TestListRuns_Filters(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Unix()
	insertRun(t, f, "01A", "attract1", run.StatusOK, now-30)
	insertRun(t, f, "01B", "ATTRACT2", run.StatusOK, now-20)
	insertRun(t, f, "01C", "attract1", run.StatusFailed, now-10)

	out, err := ListRuns(f.database, ListRunsInput{ForceField: "attract1"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if out.Pagination.Total != 2 {
		t.Errorf("forcefield filter total = %d, want 2", out.Pagination.Total)
	}

	out, err = ListRuns(f.database, ListRunsInput{Status: "FAILED"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(out.Items) != 1 || out.Items[0].ID != "01C" {
		t.Errorf("status filter returned %+v", out.Items)
	}

	_, err = ListRuns(f.database, ListRunsInput{Status: "pending"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestListRuns_Pagination(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Unix()
	for i := range 5 {
		insertRun(t, f, fmt.Sprintf("01R%d", i), "attract1", run.StatusOK, now-int64(100-i))
	}

	out, err := ListRuns(f.database, ListRunsInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].ID != "01R2" {
		t.Errorf("Items[0].ID = %q, want 01R2", out.Items[0].ID)
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 5 {
		t.Errorf("unexpected pagination %+v", out.Pagination)
	}

	out, err = ListRuns(f.database, ListRunsInput{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if out.Pagination.Limit != MaxListLimit || out.Pagination.Offset != 0 {
		t.Errorf("limits not clamped: %+v", out.Pagination)
	}
}

func TestListRuns_Empty(t *testing.T) {
	f := newFixture(t)

	out, err := ListRuns(f.database, ListRunsInput{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if out.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}

func TestFetchRun(t *testing.T) {
	f := newFixture(t)
	insertRun(t, f, "01A", "attract1", run.StatusOK, time.Now().Unix())
	insertRun(t, f, "01B", "attract1", run.StatusFailed, time.Now().Unix())

	r, err := FetchRun(f.database, FetchRunInput{ID: "01A"})
	if err != nil {
		t.Fatalf("FetchRun failed: %v", err)
	}
	if len(r.Warnings) != 1 || r.Warnings[0].Code != errors.ErrUnknownResidue {
		t.Errorf("Warnings = %+v", r.Warnings)
	}

	r, err = FetchRun(f.database, FetchRunInput{ID: "01B"})
	if err != nil {
		t.Fatalf("FetchRun failed: %v", err)
	}
	if r.Warnings == nil {
		t.Error("Warnings should be an empty slice, not nil")
	}

	if _, err := FetchRun(f.database, FetchRunInput{ID: "missing"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	if _, err := FetchRun(f.database, FetchRunInput{ID: "  "}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestPurgeRuns(t *testing.T) {
	f := newFixture(t)
	now := time.Now().Unix()
	insertRun(t, f, "01OLD", "attract1", run.StatusOK, now-10*86400)
	insertRun(t, f, "01OLD2", "ATTRACT2", run.StatusOK, now-10*86400)
	insertRun(t, f, "01NEW", "attract1", run.StatusOK, now)

	ff := "attract1"
	days := 7
	out, err := PurgeRuns(context.Background(), f.database, PurgeRunsInput{ForceField: &ff, OlderThanDays: &days})
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if out.Purged != 1 {
		t.Errorf("Purged = %d, want 1", out.Purged)
	}
	want := `Permanently deleted 1 run for force field "attract1" (created more than 7 days ago)`
	if out.Message != want {
		t.Errorf("Message = %q, want %q", out.Message, want)
	}

	out, err = PurgeRuns(context.Background(), f.database, PurgeRunsInput{})
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if out.Purged != 2 || out.Message != "Permanently deleted 2 runs" {
		t.Errorf("unexpected result %+v", out)
	}

	out, err = PurgeRuns(context.Background(), f.database, PurgeRunsInput{})
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if out.Purged != 0 || out.Message != "No runs to purge" {
		t.Errorf("unexpected result %+v", out)
	}
}

func TestPurgeRuns_InvalidInput(t *testing.T) {
	f := newFixture(t)

	days := -1
	_, err := PurgeRuns(context.Background(), f.database, PurgeRunsInput{OlderThanDays: &days})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PurgeRuns(ctx, f.database, PurgeRunsInput{})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("expected CANCELLED, got %v", err)
	}
}
