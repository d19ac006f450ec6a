package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/catalog"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/provider"
	"github.com/geoflux/insarpipe/internal/provider/mock"
)

var testROI = domain.Bounds{MinLon: -120, MinLat: 34, MaxLon: -118, MaxLat: 36}

func testWindow() (time.Time, time.Time) {
	return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
}

func scene(id string, acquired time.Time, orbit int) *domain.Scene {
	return &domain.Scene{
		ID:            id,
		AcquiredAt:    acquired,
		Platform:      "S1A",
		AbsoluteOrbit: orbit,
		Frame:         112,
		FileName:      id + ".zip",
	}
}

// Test: search results are deduplicated and sorted by acquisition time.
func TestSearch_DedupeAndSort(t *testing.T) {
	later := time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC)
	earlier := time.Date(2025, 12, 8, 6, 12, 44, 0, time.UTC)

	client := &mock.CatalogClient{
		SearchFn: func(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error) {
			return []*domain.Scene{
				scene("late", later, 51400),
				scene("dup-of-late", later, 51400), // same acquisition, reprocessed
				scene("early", earlier, 51225),
			}, nil
		},
	}
	m := catalog.NewManager(client, t.TempDir(), 2, zap.NewNop())

	start, end := testWindow()
	scenes, err := m.Search(context.Background(), testROI, start, end)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}
	if scenes[0].ID != "early" || scenes[1].ID != "late" {
		t.Errorf("got order %s, %s; want early, late", scenes[0].ID, scenes[1].ID)
	}
}

// Test: a single scene after deduplication is a hard stop, and the count in
// the error reflects the deduplicated set.
func TestSearch_InsufficientScenes(t *testing.T) {
	acquired := time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC)
	client := &mock.CatalogClient{
		SearchFn: func(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error) {
			return []*domain.Scene{
				scene("only", acquired, 51400),
				scene("only-again", acquired, 51400),
			}, nil
		},
	}
	m := catalog.NewManager(client, t.TempDir(), 2, zap.NewNop())

	start, end := testWindow()
	_, err := m.Search(context.Background(), testROI, start, end)

	var insufficient *domain.InsufficientScenesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientScenesError, got %v", err)
	}
	if insufficient.Found != 1 {
		t.Errorf("Found = %d, want 1", insufficient.Found)
	}
}

// Test: input validation rejects a malformed ROI and an inverted date range
// before the catalog is queried.
func TestSearch_InputValidation(t *testing.T) {
	client := &mock.CatalogClient{}
	m := catalog.NewManager(client, t.TempDir(), 2, zap.NewNop())
	start, end := testWindow()

	_, err := m.Search(context.Background(), domain.Bounds{MinLon: 1, MaxLon: -1}, start, end)
	if !errors.Is(err, domain.ErrMalformedROI) {
		t.Errorf("expected ErrMalformedROI, got %v", err)
	}

	_, err = m.Search(context.Background(), testROI, end, start)
	if !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}

	if len(client.SearchCalls) != 0 {
		t.Errorf("catalog queried %d times before validation, want 0", len(client.SearchCalls))
	}
}

// Test: a catalog transport failure is surfaced, not swallowed.
func TestSearch_ClientError(t *testing.T) {
	boom := errors.New("connection refused")
	client := &mock.CatalogClient{
		SearchFn: func(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error) {
			return nil, boom
		},
	}
	m := catalog.NewManager(client, t.TempDir(), 2, zap.NewNop())

	start, end := testWindow()
	if _, err := m.Search(context.Background(), testROI, start, end); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// Test: local scan assembles the scene set from archive filenames, skipping
// files that do not parse, and still enforces the pair minimum.
func TestScanLocal(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"S1A_IW_SLC__1SDV_20251220T061244_20251220T061311_051234_062E15_ABCD.zip",
		"S1A_IW_SLC__1SDV_20251208T061245_20251208T061312_051059_0627F1_EF01.zip",
		"S1X_IW_SLC__1SDV_20251220T061244_20251220T061311_051234_062E15_BAD0.zip", // unknown mission
		"notes.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := catalog.NewManager(&mock.CatalogClient{}, dir, 2, zap.NewNop())
	scenes, err := m.ScanLocal(dir)
	if err != nil {
		t.Fatalf("ScanLocal: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}
	if !scenes[0].AcquiredAt.Before(scenes[1].AcquiredAt) {
		t.Error("expected scenes sorted by acquisition time")
	}
	for _, s := range scenes {
		if s.LocalPath == "" {
			t.Errorf("scene %s has no local path", s.ID)
		}
	}
}

// Test: a directory with one archive fails the pair gate.
func TestScanLocal_Insufficient(t *testing.T) {
	dir := t.TempDir()
	name := "S1A_IW_SLC__1SDV_20251220T061244_20251220T061311_051234_062E15_ABCD.zip"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := catalog.NewManager(&mock.CatalogClient{}, dir, 2, zap.NewNop())
	_, err := m.ScanLocal(dir)
	var insufficient *domain.InsufficientScenesError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientScenesError, got %v", err)
	}
}

// Test: download records the fetched path on each scene and re-verifies
// already-present archives instead of re-fetching them.
func TestDownload(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.zip")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &mock.CatalogClient{
		DownloadFn: func(ctx context.Context, s *domain.Scene, destDir string) (string, error) {
			return filepath.Join(destDir, s.FileName), nil
		},
	}
	m := catalog.NewManager(client, dir, 2, zap.NewNop())

	acquired := time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC)
	fresh := scene("fresh", acquired, 51400)
	present := scene("present", acquired.AddDate(0, 0, -12), 51225)
	present.LocalPath = existing

	if err := m.Download(context.Background(), []*domain.Scene{fresh, present}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if fresh.LocalPath != filepath.Join(dir, "fresh.zip") {
		t.Errorf("fresh.LocalPath = %q", fresh.LocalPath)
	}
	if len(client.DownloadCalls) != 1 || client.DownloadCalls[0] != "fresh" {
		t.Errorf("download calls = %v, want [fresh]", client.DownloadCalls)
	}
}

// Test: a recorded local path that no longer exists fails the stage.
func TestDownload_MissingLocalArchive(t *testing.T) {
	m := catalog.NewManager(&mock.CatalogClient{}, t.TempDir(), 2, zap.NewNop())

	s := scene("gone", time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC), 51400)
	s.LocalPath = filepath.Join(t.TempDir(), "missing.zip")

	if err := m.Download(context.Background(), []*domain.Scene{s}); err == nil {
		t.Fatal("expected error for missing local archive")
	}
}

// Test: the reference scene is the earliest acquisition, and baselines are
// measured from it in whole days.
func TestReferenceAndBaseline(t *testing.T) {
	early := scene("early", time.Date(2025, 12, 8, 6, 12, 45, 0, time.UTC), 51225)
	late := scene("late", time.Date(2025, 12, 20, 6, 12, 44, 0, time.UTC), 51400)

	ref := catalog.Reference([]*domain.Scene{early, late})
	if ref != early {
		t.Fatalf("Reference = %v, want early", ref.ID)
	}
	if days := catalog.TemporalBaselineDays(ref, late); days != 11 {
		t.Errorf("TemporalBaselineDays = %d, want 11", days)
	}
	if catalog.Reference(nil) != nil {
		t.Error("Reference(nil) should be nil")
	}
}
