// Package catalog implements scene discovery and validation: querying the
// catalog for a region and date window, collapsing duplicate acquisitions,
// and gating on the interferometric-pair minimum.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/pool"
	"github.com/geoflux/insarpipe/internal/provider"
)

// localScenePattern matches standard SLC archive names on disk.
const localScenePattern = "S1*_IW_SLC__*.zip"

// Manager discovers and validates scenes for a run.
type Manager struct {
	client      provider.CatalogClient
	downloadDir string
	fetchPool   *pool.FetchPool
	logger      *zap.Logger
}

// NewManager creates a scene catalog manager.
func NewManager(client provider.CatalogClient, downloadDir string, poolSize int, logger *zap.Logger) *Manager {
	return &Manager{
		client:      client,
		downloadDir: downloadDir,
		fetchPool:   pool.New(poolSize, logger),
		logger:      logger,
	}
}

// Search queries the catalog, deduplicates scenes that resolve to the same
// physical acquisition, and returns the result sorted by acquisition time
// ascending. Fewer than two distinct scenes is a hard stop. Catalog failures
// are surfaced, not retried; the coordinator decides whether to retry the
// whole pipeline.
func (m *Manager) Search(ctx context.Context, roi domain.Bounds, start, end time.Time) ([]*domain.Scene, error) {
	if !roi.WellFormed() {
		return nil, domain.ErrMalformedROI
	}
	if start.After(end) {
		return nil, domain.ErrInvalidDateRange
	}

	scenes, err := m.client.Search(ctx, provider.SearchQuery{ROI: roi, Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	scenes = dedupe(scenes)
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].AcquiredAt.Before(scenes[j].AcquiredAt)
	})

	if len(scenes) < 2 {
		return nil, &domain.InsufficientScenesError{Found: len(scenes)}
	}

	reference := Reference(scenes)
	m.logger.Info("Scene set validated",
		zap.Int("scenes", len(scenes)),
		zap.String("reference", reference.ID),
		zap.Int("max_baseline_days", TemporalBaselineDays(reference, scenes[len(scenes)-1])),
	)
	return scenes, nil
}

// ScanLocal builds the scene set from SLC archives already on disk, skipping
// the catalog API entirely. Identity and acquisition time come from the
// filename; path/frame metadata is unavailable in this mode.
func (m *Manager) ScanLocal(dir string) ([]*domain.Scene, error) {
	if dir == "" {
		dir = m.downloadDir
	}

	matches, err := filepath.Glob(filepath.Join(dir, localScenePattern))
	if err != nil {
		return nil, fmt.Errorf("scan local scenes: %w", err)
	}
	sort.Strings(matches)

	var scenes []*domain.Scene
	for _, path := range matches {
		name := filepath.Base(path)
		mission, acquired, err := domain.ParseSceneID(name)
		if err != nil {
			m.logger.Warn("Skipping malformed local file", zap.String("file", name), zap.Error(err))
			continue
		}
		scenes = append(scenes, &domain.Scene{
			ID:         name[:len(name)-len(".zip")],
			AcquiredAt: acquired,
			Platform:   mission,
			FileName:   name,
			LocalPath:  path,
		})
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].AcquiredAt.Before(scenes[j].AcquiredAt)
	})

	if len(scenes) < 2 {
		return nil, &domain.InsufficientScenesError{Found: len(scenes)}
	}

	m.logger.Info("Local scene set assembled", zap.Int("scenes", len(scenes)), zap.String("dir", dir))
	return scenes, nil
}

// Download fetches every scene archive with bounded parallelism and records
// the local path on each scene. One failure aborts the stage; already-present
// archives are verified, not re-fetched.
func (m *Manager) Download(ctx context.Context, scenes []*domain.Scene) error {
	tasks := make([]pool.Task, 0, len(scenes))
	for _, scene := range scenes {
		scene := scene
		if scene.LocalPath != "" {
			if _, err := os.Stat(scene.LocalPath); err != nil {
				return fmt.Errorf("local scene archive missing: %s", scene.LocalPath)
			}
			continue
		}
		tasks = append(tasks, func(ctx context.Context) error {
			path, err := m.client.Download(ctx, scene, m.downloadDir)
			if err != nil {
				return err
			}
			scene.LocalPath = path
			return nil
		})
	}
	return m.fetchPool.Run(ctx, tasks)
}

// Reference returns the reference ("master") scene of the set: the earliest
// acquisition. Every later scene pairs with it.
func Reference(scenes []*domain.Scene) *domain.Scene {
	if len(scenes) == 0 {
		return nil
	}
	return scenes[0]
}

// TemporalBaselineDays returns the pairing offset of a scene from the
// reference, in whole days.
func TemporalBaselineDays(reference, scene *domain.Scene) int {
	return int(scene.AcquiredAt.Sub(reference.AcquiredAt).Hours() / 24)
}

// dedupe collapses scenes that resolve to the same physical acquisition,
// keeping the first occurrence.
func dedupe(scenes []*domain.Scene) []*domain.Scene {
	seen := make(map[string]bool, len(scenes))
	out := scenes[:0]
	for _, s := range scenes {
		key := s.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
