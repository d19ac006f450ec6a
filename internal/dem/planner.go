// Package dem plans and materializes the elevation-model footprint for a run.
// The plan covers the union of all scene footprints, not merely the ROI: the
// processing engine needs elevation for the full swath intersection or it
// raises edge artifacts during topographic correction.
package dem

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/provider"
)

// Planner computes and materializes DEM plans. It never escalates the buffer
// itself; a coverage failure is reported to the caller, which owns the retry.
type Planner struct {
	stitcher        provider.DemStitcher
	demDir          string
	fallbackDataset string
	logger          *zap.Logger
}

// NewPlanner creates a DEM planner. fallbackDataset may be empty to disable
// the regional high-resolution fallback.
func NewPlanner(stitcher provider.DemStitcher, demDir, fallbackDataset string, logger *zap.Logger) *Planner {
	return &Planner{
		stitcher:        stitcher,
		demDir:          demDir,
		fallbackDataset: fallbackDataset,
		logger:          logger,
	}
}

// Plan computes the bounding box enclosing the union of all scene footprints
// and the ROI, expanded symmetrically by bufferDeg on every side. The result
// must strictly contain the ROI.
func (p *Planner) Plan(scenes []*domain.Scene, roi domain.Bounds, bufferDeg float64, dataset string) (*domain.DemPlan, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("dem plan: no scenes")
	}
	if bufferDeg < 0 {
		return nil, fmt.Errorf("dem plan: negative buffer %f", bufferDeg)
	}

	union := roi
	for _, scene := range scenes {
		fb, err := scene.FootprintBounds()
		if err != nil {
			// Local-scan scenes carry no footprint; the ROI term keeps the
			// union well-formed for that mode.
			p.logger.Debug("Scene without footprint excluded from union", zap.String("scene_id", scene.ID))
			continue
		}
		union = union.Union(fb)
	}

	bounds := union.Buffer(bufferDeg)
	if !bounds.StrictlyContains(roi) {
		return nil, fmt.Errorf("dem plan bounds [%s] do not strictly contain roi [%s]; buffer too small", bounds, roi)
	}

	p.logger.Info("DEM plan computed",
		zap.String("bounds", bounds.String()),
		zap.Float64("buffer_deg", bufferDeg),
		zap.String("dataset", dataset),
	)
	return &domain.DemPlan{Bounds: bounds, ROI: roi, BufferDeg: bufferDeg, Dataset: dataset}, nil
}

// Materialize acquires and stitches elevation tiles covering the plan. A
// mosaic already on disk whose recorded extent covers the plan is reused
// without re-fetching tiles. After stitching, the mosaic's actual extent is
// verified against the plan; truncation surfaces as DemCoverageError.
func (p *Planner) Materialize(ctx context.Context, plan *domain.DemPlan) (*domain.DemMosaic, error) {
	if err := os.MkdirAll(p.demDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dem dir: %w", err)
	}

	dest := filepath.Join(p.demDir, mosaicName(plan))
	if mosaic := p.loadCached(dest, plan); mosaic != nil {
		p.logger.Info("Covering DEM mosaic already on disk", zap.String("path", dest))
		return mosaic, nil
	}

	mosaic, err := p.stitcher.Stitch(ctx, plan.Bounds, plan.Dataset, dest)
	if err != nil && p.fallbackDataset != "" && p.fallbackDataset != plan.Dataset {
		p.logger.Warn("Primary elevation dataset failed, trying fallback",
			zap.String("primary", plan.Dataset),
			zap.String("fallback", p.fallbackDataset),
			zap.Error(err),
		)
		mosaic, err = p.stitcher.Stitch(ctx, plan.Bounds, p.fallbackDataset, dest)
	}
	if err != nil {
		return nil, fmt.Errorf("dem stitch: %w", err)
	}

	if !mosaic.Satisfies(plan) {
		return nil, &domain.DemCoverageError{Want: plan.Bounds, Got: mosaic.Coverage}
	}

	if err := p.writeSidecar(dest, mosaic); err != nil {
		p.logger.Warn("Failed to record mosaic extent", zap.Error(err))
	}
	return mosaic, nil
}

// sidecar records a mosaic's stitched extent next to the raster so a re-run
// can re-validate coverage without opening the raster itself.
type sidecar struct {
	Coverage domain.Bounds `json:"coverage"`
	Dataset  string        `json:"dataset"`
}

func (p *Planner) loadCached(dest string, plan *domain.DemPlan) *domain.DemMosaic {
	fi, err := os.Stat(dest)
	if err != nil || fi.Size() == 0 {
		return nil
	}
	data, err := os.ReadFile(dest + ".json")
	if err != nil {
		return nil
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil
	}

	mosaic := &domain.DemMosaic{Path: dest, Coverage: sc.Coverage, Dataset: sc.Dataset}
	if !mosaic.Satisfies(plan) {
		return nil
	}
	return mosaic
}

func (p *Planner) writeSidecar(dest string, mosaic *domain.DemMosaic) error {
	data, err := json.Marshal(sidecar{Coverage: mosaic.Coverage, Dataset: mosaic.Dataset})
	if err != nil {
		return err
	}
	return os.WriteFile(dest+".json", data, 0o644)
}

// mosaicName derives a cache filename from the request parameters so distinct
// plans never collide on disk.
func mosaicName(plan *domain.DemPlan) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%f", plan.Bounds, plan.Dataset, plan.BufferDeg)))
	return fmt.Sprintf("dem_%s_%x.wgs84", plan.Dataset, sum[:6])
}
