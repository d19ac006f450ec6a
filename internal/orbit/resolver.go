// Package orbit resolves one navigation solution per scene via an ordered
// list of fallback tiers: precise first, restituted second. New tiers can be
// appended to the strategy list without touching call sites.
package orbit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/pool"
	"github.com/geoflux/insarpipe/internal/provider"
)

// Strategy is one fallback tier, tried in list order.
type Strategy struct {
	Name string
	Type domain.OrbitType
}

// DefaultStrategies is the production tier order: precise orbits (published
// weeks after acquisition, high accuracy) before restituted orbits (published
// within hours, lower accuracy).
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "precise", Type: domain.OrbitPrecise},
		{Name: "restituted", Type: domain.OrbitRestituted},
	}
}

// Resolver fetches orbit files for scenes.
type Resolver struct {
	source     provider.OrbitSource
	orbitDir   string
	strategies []Strategy
	fetchPool  *pool.FetchPool
	logger     *zap.Logger
}

// NewResolver creates an orbit resolver using the default tier order.
func NewResolver(source provider.OrbitSource, orbitDir string, poolSize int, logger *zap.Logger) *Resolver {
	return &Resolver{
		source:     source,
		orbitDir:   orbitDir,
		strategies: DefaultStrategies(),
		fetchPool:  pool.New(poolSize, logger),
		logger:     logger,
	}
}

// Resolve produces the orbit file for one scene. A valid file already on disk
// short-circuits the network entirely; otherwise each tier is tried in order
// and a miss of all tiers is fatal for the run.
func (r *Resolver) Resolve(ctx context.Context, scene *domain.Scene) (*domain.OrbitFile, error) {
	sceneDir := filepath.Join(r.orbitDir, scene.ID)

	if cached := r.findLocal(scene, sceneDir); cached != nil {
		r.logger.Debug("Orbit file already present and valid",
			zap.String("scene_id", scene.ID),
			zap.String("type", string(cached.Type)),
		)
		return cached, nil
	}

	var attempts []string
	for _, strat := range r.strategies {
		orbitFile, err := r.source.Fetch(ctx, scene, strat.Type, sceneDir)
		if err != nil {
			if errors.Is(err, provider.ErrOrbitUnavailable) {
				attempts = append(attempts, fmt.Sprintf("%s: not published", strat.Name))
				continue
			}
			if ctx.Err() != nil {
				return nil, err
			}
			// A transport failure on one tier still leaves the next tier
			// worth trying; the reason is kept for the final report.
			r.logger.Warn("Orbit tier fetch failed",
				zap.String("scene_id", scene.ID),
				zap.String("tier", strat.Name),
				zap.Error(err),
			)
			attempts = append(attempts, fmt.Sprintf("%s: %v", strat.Name, err))
			continue
		}

		if !orbitFile.Covers(scene.AcquiredAt) {
			attempts = append(attempts, fmt.Sprintf("%s: validity window misses acquisition", strat.Name))
			continue
		}

		r.logger.Info("Orbit resolved",
			zap.String("scene_id", scene.ID),
			zap.String("tier", strat.Name),
			zap.String("file", filepath.Base(orbitFile.Path)),
		)
		return orbitFile, nil
	}

	return nil, &domain.OrbitNotFoundError{SceneID: scene.ID, Attempts: attempts}
}

// ResolveAll resolves orbits for every scene with bounded parallelism. A
// single scene's failure aborts the stage; no partial orbit set is returned.
func (r *Resolver) ResolveAll(ctx context.Context, scenes []*domain.Scene) (map[string]*domain.OrbitFile, error) {
	var mu sync.Mutex
	orbits := make(map[string]*domain.OrbitFile, len(scenes))

	tasks := make([]pool.Task, 0, len(scenes))
	for _, scene := range scenes {
		scene := scene
		tasks = append(tasks, func(ctx context.Context) error {
			orbitFile, err := r.Resolve(ctx, scene)
			if err != nil {
				return err
			}
			mu.Lock()
			orbits[scene.ID] = orbitFile
			mu.Unlock()
			return nil
		})
	}

	if err := r.fetchPool.Run(ctx, tasks); err != nil {
		return nil, err
	}
	return orbits, nil
}

// findLocal checks the scene-scoped directory for an orbit file whose
// validity window still covers the acquisition. Tiers are checked in strategy
// order so a cached precise file beats a cached restituted one.
func (r *Resolver) findLocal(scene *domain.Scene, sceneDir string) *domain.OrbitFile {
	entries, err := os.ReadDir(sceneDir)
	if err != nil {
		return nil
	}

	for _, strat := range r.strategies {
		for _, entry := range entries {
			name := entry.Name()
			if domain.OrbitTypeFromFilename(name) != strat.Type {
				continue
			}
			from, to, err := domain.ParseOrbitValidity(name)
			if err != nil {
				continue
			}
			candidate := &domain.OrbitFile{
				Type:      strat.Type,
				SceneID:   scene.ID,
				ValidFrom: from,
				ValidTo:   to,
				Path:      filepath.Join(sceneDir, name),
			}
			if candidate.Covers(scene.AcquiredAt) {
				return candidate
			}
		}
	}
	return nil
}
