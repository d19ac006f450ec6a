package domain

// DemPlan is the target elevation-model footprint for a run: the union of all
// scene footprints plus a symmetric safety buffer. Never shrunk; a coverage
// failure is answered by re-planning with a larger buffer.
type DemPlan struct {
	Bounds    Bounds
	ROI       Bounds
	BufferDeg float64
	Dataset   string
}

// DemMosaic is a stitched elevation raster on disk.
type DemMosaic struct {
	Path     string
	Coverage Bounds
	Dataset  string
}

// Satisfies reports whether the mosaic's raster extent covers the plan bounds
// exactly or with surplus on all sides.
func (m *DemMosaic) Satisfies(plan *DemPlan) bool {
	return m.Coverage.Contains(plan.Bounds)
}
