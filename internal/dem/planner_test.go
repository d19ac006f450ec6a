package dem_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/venicegeo/geojson-go/geojson"
	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/dem"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/provider/mock"
)

var roi = domain.Bounds{MinLon: -120, MinLat: 34, MaxLon: -118, MaxLat: 36}

func footprintScene(id string, b domain.Bounds) *domain.Scene {
	poly := geojson.NewPolygon([][][]float64{{
		{b.MinLon, b.MinLat}, {b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat}, {b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}})
	return &domain.Scene{ID: id, Footprint: poly}
}

// writingStitcher returns a stitch function that creates the output file, as
// the real stitcher does, then reports the given coverage.
func writingStitcher(t *testing.T, coverage func(req domain.Bounds) domain.Bounds) *mock.DemStitcher {
	t.Helper()
	return &mock.DemStitcher{
		StitchFn: func(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error) {
			if err := os.WriteFile(destPath, []byte("raster"), 0o644); err != nil {
				t.Fatal(err)
			}
			return &domain.DemMosaic{Path: destPath, Coverage: coverage(bounds), Dataset: dataset}, nil
		},
	}
}

// Test: the plan is the buffered union of ROI and footprints and strictly
// contains the ROI.
func TestPlan(t *testing.T) {
	p := dem.NewPlanner(&mock.DemStitcher{}, t.TempDir(), "", zap.NewNop())

	scenes := []*domain.Scene{
		footprintScene("a", domain.Bounds{MinLon: -121, MinLat: 33.5, MaxLon: -118.5, MaxLat: 35.5}),
		footprintScene("b", domain.Bounds{MinLon: -119.5, MinLat: 34.5, MaxLon: -117.5, MaxLat: 36.5}),
	}

	plan, err := p.Plan(scenes, roi, 0.2, "glo_30")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := domain.Bounds{MinLon: -121.2, MinLat: 33.3, MaxLon: -117.3, MaxLat: 36.7}
	if plan.Bounds != want {
		t.Errorf("Bounds = %v, want %v", plan.Bounds, want)
	}
	if !plan.Bounds.StrictlyContains(roi) {
		t.Error("plan bounds must strictly contain the ROI")
	}
	if plan.BufferDeg != 0.2 || plan.Dataset != "glo_30" {
		t.Errorf("plan carries %v/%s", plan.BufferDeg, plan.Dataset)
	}
}

// Test: footprint-less scenes fall back to the ROI term of the union, so a
// local-scan set still plans.
func TestPlan_NoFootprints(t *testing.T) {
	p := dem.NewPlanner(&mock.DemStitcher{}, t.TempDir(), "", zap.NewNop())

	scenes := []*domain.Scene{{ID: "a"}, {ID: "b"}}
	plan, err := p.Plan(scenes, roi, 0.2, "glo_30")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Bounds != roi.Buffer(0.2) {
		t.Errorf("Bounds = %v, want buffered ROI", plan.Bounds)
	}
}

// Test: a larger buffer yields a plan strictly containing a smaller one.
func TestPlan_BufferMonotonic(t *testing.T) {
	p := dem.NewPlanner(&mock.DemStitcher{}, t.TempDir(), "", zap.NewNop())
	scenes := []*domain.Scene{{ID: "a"}, {ID: "b"}}

	small, err := p.Plan(scenes, roi, 0.2, "glo_30")
	if err != nil {
		t.Fatal(err)
	}
	large, err := p.Plan(scenes, roi, 0.3, "glo_30")
	if err != nil {
		t.Fatal(err)
	}
	if !large.Bounds.StrictlyContains(small.Bounds) {
		t.Error("expected the larger buffer to strictly contain the smaller")
	}
}

// Test: no scenes, a negative buffer, and a zero buffer are all rejected.
func TestPlan_Invalid(t *testing.T) {
	p := dem.NewPlanner(&mock.DemStitcher{}, t.TempDir(), "", zap.NewNop())

	if _, err := p.Plan(nil, roi, 0.2, "glo_30"); err == nil {
		t.Error("expected error for empty scene set")
	}
	if _, err := p.Plan([]*domain.Scene{{ID: "a"}}, roi, -0.1, "glo_30"); err == nil {
		t.Error("expected error for negative buffer")
	}
	// Zero buffer cannot strictly contain the ROI.
	if _, err := p.Plan([]*domain.Scene{{ID: "a"}}, roi, 0, "glo_30"); err == nil {
		t.Error("expected error for zero buffer")
	}
}

// Test: materialize stitches once and a re-run reuses the mosaic on disk.
func TestMaterialize_Idempotent(t *testing.T) {
	stitcher := writingStitcher(t, func(req domain.Bounds) domain.Bounds { return req })
	p := dem.NewPlanner(stitcher, t.TempDir(), "", zap.NewNop())

	plan := &domain.DemPlan{Bounds: roi.Buffer(0.2), ROI: roi, BufferDeg: 0.2, Dataset: "glo_30"}

	first, err := p.Materialize(context.Background(), plan)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	second, err := p.Materialize(context.Background(), plan)
	if err != nil {
		t.Fatalf("Materialize (cached): %v", err)
	}

	if len(stitcher.StitchCalls) != 1 {
		t.Errorf("stitch calls = %d, want 1", len(stitcher.StitchCalls))
	}
	if first.Path != second.Path {
		t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
	}
}

// Test: a mosaic truncated at the dataset boundary surfaces as a coverage
// error carrying both extents.
func TestMaterialize_CoverageError(t *testing.T) {
	stitcher := writingStitcher(t, func(req domain.Bounds) domain.Bounds {
		truncated := req
		truncated.MaxLat = req.MaxLat - 0.5
		return truncated
	})
	p := dem.NewPlanner(stitcher, t.TempDir(), "", zap.NewNop())

	plan := &domain.DemPlan{Bounds: roi.Buffer(0.2), ROI: roi, BufferDeg: 0.2, Dataset: "glo_30"}
	_, err := p.Materialize(context.Background(), plan)

	var covErr *domain.DemCoverageError
	if !errors.As(err, &covErr) {
		t.Fatalf("expected DemCoverageError, got %v", err)
	}
	if covErr.Want != plan.Bounds {
		t.Errorf("Want = %v, want %v", covErr.Want, plan.Bounds)
	}
	if covErr.Got.Contains(plan.Bounds) {
		t.Error("Got should fall short of the plan bounds")
	}
}

// Test: the fallback dataset is tried when the primary stitch fails.
func TestMaterialize_FallbackDataset(t *testing.T) {
	stitcher := &mock.DemStitcher{
		StitchFn: func(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error) {
			if dataset == "glo_30" {
				return nil, errors.New("tiles unavailable")
			}
			if err := os.WriteFile(destPath, []byte("raster"), 0o644); err != nil {
				t.Fatal(err)
			}
			return &domain.DemMosaic{Path: destPath, Coverage: bounds, Dataset: dataset}, nil
		},
	}
	p := dem.NewPlanner(stitcher, t.TempDir(), "nasadem", zap.NewNop())

	plan := &domain.DemPlan{Bounds: roi.Buffer(0.2), ROI: roi, BufferDeg: 0.2, Dataset: "glo_30"}
	mosaic, err := p.Materialize(context.Background(), plan)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if mosaic.Dataset != "nasadem" {
		t.Errorf("dataset = %q, want nasadem", mosaic.Dataset)
	}
	if len(stitcher.StitchCalls) != 2 {
		t.Errorf("stitch calls = %d, want 2", len(stitcher.StitchCalls))
	}
}

// Test: without a fallback the primary failure is surfaced.
func TestMaterialize_NoFallback(t *testing.T) {
	boom := errors.New("tiles unavailable")
	stitcher := &mock.DemStitcher{
		StitchFn: func(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error) {
			return nil, boom
		},
	}
	p := dem.NewPlanner(stitcher, t.TempDir(), "", zap.NewNop())

	plan := &domain.DemPlan{Bounds: roi.Buffer(0.2), ROI: roi, BufferDeg: 0.2, Dataset: "glo_30"}
	if _, err := p.Materialize(context.Background(), plan); !errors.Is(err, boom) {
		t.Fatalf("expected stitch error, got %v", err)
	}
	if len(stitcher.StitchCalls) != 1 {
		t.Errorf("stitch calls = %d, want 1", len(stitcher.StitchCalls))
	}
}
