package pipeline

import (
	"context"
	"time"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/engine"
)

// SceneSource discovers and downloads the validated scene set.
type SceneSource interface {
	// Search queries the catalog for scenes intersecting roi within the date
	// window, deduplicated and sorted by acquisition time ascending.
	Search(ctx context.Context, roi domain.Bounds, start, end time.Time) ([]*domain.Scene, error)

	// ScanLocal assembles the scene set from archives already on disk.
	ScanLocal(dir string) ([]*domain.Scene, error)

	// Download fetches every scene archive, recording local paths.
	Download(ctx context.Context, scenes []*domain.Scene) error
}

// OrbitResolver resolves one orbit file per scene, all or nothing.
type OrbitResolver interface {
	ResolveAll(ctx context.Context, scenes []*domain.Scene) (map[string]*domain.OrbitFile, error)
}

// DemPreparer plans and materializes the elevation mosaic.
type DemPreparer interface {
	Plan(scenes []*domain.Scene, roi domain.Bounds, bufferDeg float64, dataset string) (*domain.DemPlan, error)
	Materialize(ctx context.Context, plan *domain.DemPlan) (*domain.DemMosaic, error)
}

// ConfigWriter renders and persists the engine configuration for a job.
type ConfigWriter interface {
	Write(job *domain.ProcessingJob) error
}

// Engine invokes the external processing engine.
type Engine interface {
	Run(ctx context.Context, req engine.RunRequest) (*engine.RunResult, error)
}

// RunRecorder persists run history. Implemented by the ledger store.
type RunRecorder interface {
	Started(ctx context.Context, job *domain.ProcessingJob) error
	Finished(ctx context.Context, job *domain.ProcessingJob, runErr error) error
}
