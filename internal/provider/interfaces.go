// Package provider defines the interfaces to the external data services the
// pipeline depends on: the scene catalog, the orbit archive, and the
// elevation-tile stitcher. Production implementations live in subpackages;
// tests use the hand mocks in provider/mock.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/geoflux/insarpipe/internal/domain"
)

// ErrOrbitUnavailable is returned by an OrbitSource when the requested tier
// holds no file covering the scene. A tier miss, not a transport failure.
var ErrOrbitUnavailable = errors.New("no orbit file available for this tier")

// SearchQuery describes a catalog search.
type SearchQuery struct {
	ROI   domain.Bounds
	Start time.Time
	End   time.Time

	// FlightDirection optionally restricts the orbit pass direction
	// (ASCENDING or DESCENDING). Empty means both.
	FlightDirection string
}

// CatalogClient queries the scene catalog and downloads scene archives.
type CatalogClient interface {
	// Search returns scene metadata for footprints intersecting the query
	// ROI within the date window. Transport and API failures are surfaced
	// unchanged.
	Search(ctx context.Context, q SearchQuery) ([]*domain.Scene, error)

	// Download fetches the scene archive into destDir and returns the local
	// path. Must be idempotent: an existing complete file is not re-fetched.
	Download(ctx context.Context, scene *domain.Scene, destDir string) (string, error)
}

// OrbitSource fetches one orbit file of the given tier for a scene.
type OrbitSource interface {
	// Fetch downloads an orbit file of type typ whose validity window covers
	// the scene's acquisition time, writing it under destDir. Returns
	// ErrOrbitUnavailable when the tier has nothing covering the scene.
	Fetch(ctx context.Context, scene *domain.Scene, typ domain.OrbitType, destDir string) (*domain.OrbitFile, error)
}

// DemStitcher acquires and stitches elevation tiles covering bounds into a
// single raster at destPath, reporting the actual stitched extent.
type DemStitcher interface {
	Stitch(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error)
}
