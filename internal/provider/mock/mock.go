package mock

import (
	"context"
	"sync"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/provider"
)

// ---- CatalogClient mock ----

var _ provider.CatalogClient = (*CatalogClient)(nil)

// CatalogClient is a test double for provider.CatalogClient.
type CatalogClient struct {
	mu sync.Mutex

	SearchFn   func(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error)
	DownloadFn func(ctx context.Context, scene *domain.Scene, destDir string) (string, error)

	// Recorded calls for assertions.
	SearchCalls   []provider.SearchQuery
	DownloadCalls []string
}

func (m *CatalogClient) Search(ctx context.Context, q provider.SearchQuery) ([]*domain.Scene, error) {
	m.mu.Lock()
	m.SearchCalls = append(m.SearchCalls, q)
	m.mu.Unlock()
	if m.SearchFn != nil {
		return m.SearchFn(ctx, q)
	}
	return nil, nil
}

func (m *CatalogClient) Download(ctx context.Context, scene *domain.Scene, destDir string) (string, error) {
	m.mu.Lock()
	m.DownloadCalls = append(m.DownloadCalls, scene.ID)
	m.mu.Unlock()
	if m.DownloadFn != nil {
		return m.DownloadFn(ctx, scene, destDir)
	}
	return destDir + "/" + scene.FileName, nil
}

// ---- OrbitSource mock ----

var _ provider.OrbitSource = (*OrbitSource)(nil)

// OrbitSource is a test double for provider.OrbitSource.
type OrbitSource struct {
	mu sync.Mutex

	FetchFn func(ctx context.Context, scene *domain.Scene, typ domain.OrbitType, destDir string) (*domain.OrbitFile, error)

	FetchCalls []FetchCall
}

type FetchCall struct {
	SceneID string
	Type    domain.OrbitType
}

func (m *OrbitSource) Fetch(ctx context.Context, scene *domain.Scene, typ domain.OrbitType, destDir string) (*domain.OrbitFile, error) {
	m.mu.Lock()
	m.FetchCalls = append(m.FetchCalls, FetchCall{SceneID: scene.ID, Type: typ})
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, scene, typ, destDir)
	}
	return nil, provider.ErrOrbitUnavailable
}

// CallsFor returns the recorded fetch calls for one scene, in order.
func (m *OrbitSource) CallsFor(sceneID string) []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FetchCall
	for _, c := range m.FetchCalls {
		if c.SceneID == sceneID {
			out = append(out, c)
		}
	}
	return out
}

// ---- DemStitcher mock ----

var _ provider.DemStitcher = (*DemStitcher)(nil)

// DemStitcher is a test double for provider.DemStitcher.
type DemStitcher struct {
	mu sync.Mutex

	StitchFn func(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error)

	StitchCalls []StitchCall
}

type StitchCall struct {
	Bounds  domain.Bounds
	Dataset string
}

func (m *DemStitcher) Stitch(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error) {
	m.mu.Lock()
	m.StitchCalls = append(m.StitchCalls, StitchCall{Bounds: bounds, Dataset: dataset})
	m.mu.Unlock()
	if m.StitchFn != nil {
		return m.StitchFn(ctx, bounds, dataset, destPath)
	}
	return &domain.DemMosaic{Path: destPath, Coverage: bounds, Dataset: dataset}, nil
}
