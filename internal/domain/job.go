package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineState represents the lifecycle state of a processing run.
type PipelineState string

const (
	StateDiscovering        PipelineState = "DISCOVERING"
	StateOrbitResolving     PipelineState = "ORBIT_RESOLVING"
	StateDemPreparing       PipelineState = "DEM_PREPARING"
	StateConfigBuilding     PipelineState = "CONFIG_BUILDING"
	StateExternalProcessing PipelineState = "EXTERNAL_PROCESSING"
	StateCollecting         PipelineState = "COLLECTING"
	StateDone               PipelineState = "DONE"
	StateFailed             PipelineState = "FAILED"
)

// IsTerminal returns true if the state represents a final state.
func (s PipelineState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ProductKind names an expected output artifact of the processing engine.
type ProductKind string

const (
	ProductUnwrappedDisplacement ProductKind = "unwrapped-displacement"
	ProductCoherence             ProductKind = "coherence"
	ProductPhaseSigma            ProductKind = "phase-sigma"
)

// ProductKinds lists every artifact a successful run must produce.
var ProductKinds = []ProductKind{
	ProductUnwrappedDisplacement,
	ProductCoherence,
	ProductPhaseSigma,
}

// ProcessingJob aggregates everything assembled for one run. It is owned
// exclusively by the coordinator for the run's duration; the persisted
// artifacts (config file, products) outlive it on disk.
type ProcessingJob struct {
	RunID     uuid.UUID
	Project   string
	ROI       Bounds
	StartDate time.Time
	EndDate   time.Time

	State PipelineState

	Scenes    []*Scene
	Reference *Scene
	Orbits    map[string]*OrbitFile // keyed by scene ID
	Plan      *DemPlan
	Mosaic    *DemMosaic

	ConfigPath string
	WorkDir    string
	Products   map[ProductKind]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
