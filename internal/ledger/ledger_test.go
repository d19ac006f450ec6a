package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newJob(project string, startedAt time.Time) *domain.ProcessingJob {
	return &domain.ProcessingJob{
		RunID:     uuid.New(),
		Project:   project,
		ROI:       domain.Bounds{MinLon: -120, MinLat: 34, MaxLon: -118, MaxLat: 36},
		State:     domain.StateDiscovering,
		CreatedAt: startedAt,
	}
}

// Test: a started then finished run round-trips through History.
func TestStartedFinished(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job := newJob("volcano", time.Now().UTC())
	if err := store.Started(ctx, job); err != nil {
		t.Fatalf("Started: %v", err)
	}

	job.State = domain.StateDone
	if err := store.Finished(ctx, job, nil); err != nil {
		t.Fatalf("Finished: %v", err)
	}

	records, err := store.History(ctx, "volcano", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.RunID != job.RunID.String() {
		t.Errorf("RunID = %q, want %q", rec.RunID, job.RunID)
	}
	if rec.State != string(domain.StateDone) {
		t.Errorf("State = %q, want DONE", rec.State)
	}
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

// Test: a failed run records the error text alongside the failed state.
func TestFinished_WithError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job := newJob("volcano", time.Now().UTC())
	if err := store.Started(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.State = domain.StateFailed
	runErr := errors.New("stage ORBIT_RESOLVING: no orbit file for scene late")
	if err := store.Finished(ctx, job, runErr); err != nil {
		t.Fatal(err)
	}

	records, err := store.History(ctx, "volcano", 10)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].State != string(domain.StateFailed) {
		t.Errorf("State = %q, want FAILED", records[0].State)
	}
	if records[0].Error != runErr.Error() {
		t.Errorf("Error = %q, want %q", records[0].Error, runErr)
	}
}

// Test: history returns newest first, honors the limit, and filters by
// project.
func TestHistory(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var jobs []*domain.ProcessingJob
	for i := 0; i < 3; i++ {
		job := newJob("volcano", base.Add(time.Duration(i)*time.Hour))
		jobs = append(jobs, job)
		if err := store.Started(ctx, job); err != nil {
			t.Fatal(err)
		}
	}
	other := newJob("landslide", base.Add(30*time.Minute))
	if err := store.Started(ctx, other); err != nil {
		t.Fatal(err)
	}

	records, err := store.History(ctx, "volcano", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].RunID != jobs[2].RunID.String() || records[1].RunID != jobs[1].RunID.String() {
		t.Error("expected newest-first ordering")
	}

	all, err := store.History(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("got %d records across projects, want 4", len(all))
	}
}

// Test: an unfinished run still appears in history in its last known state.
func TestHistory_UnfinishedRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	job := newJob("volcano", time.Now().UTC())
	if err := store.Started(ctx, job); err != nil {
		t.Fatal(err)
	}

	records, err := store.History(ctx, "volcano", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].State != string(domain.StateDiscovering) {
		t.Errorf("State = %q, want DISCOVERING", records[0].State)
	}
}
