package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/config"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/engine"
	"github.com/geoflux/insarpipe/internal/metrics"
)

// Deps wires the coordinator to its collaborating components. Recorder may
// be nil when run history is disabled.
type Deps struct {
	Scenes   SceneSource
	Orbits   OrbitResolver
	Dem      DemPreparer
	Config   ConfigWriter
	Engine   Engine
	Recorder RunRecorder
}

// Params describes a single requested run.
type Params struct {
	Project   string
	ROI       domain.Bounds
	StartDate time.Time
	EndDate   time.Time

	// LocalScan switches discovery from the remote catalog to archives
	// already present in LocalDir.
	LocalScan bool
	LocalDir  string
}

// Coordinator drives a processing job through its states in order. Each
// stage must fully succeed before the next begins; the first failure moves
// the job to its failed state and stops the run.
type Coordinator struct {
	deps      Deps
	workRoot  string
	dem       config.DemConfig
	engineCfg config.EngineConfig
	collector *Collector
	logger    *zap.Logger
}

// NewCoordinator creates a pipeline coordinator.
func NewCoordinator(deps Deps, cfg *config.Config, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		deps:      deps,
		workRoot:  cfg.Dirs.Work,
		dem:       cfg.Dem,
		engineCfg: cfg.Engine,
		collector: NewCollector(logger),
		logger:    logger,
	}
}

// Run executes one full processing run and returns the completed job. On
// failure the returned job carries the failed state and the error names the
// stage that broke.
func (c *Coordinator) Run(ctx context.Context, params Params) (*domain.ProcessingJob, error) {
	project := params.Project
	if project == "" {
		project = "default"
	}
	job := &domain.ProcessingJob{
		RunID:     uuid.New(),
		Project:   project,
		ROI:       params.ROI,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		State:     domain.StateDiscovering,
		CreatedAt: time.Now().UTC(),
	}
	// Outputs are partitioned by project so a re-run lands on its
	// predecessor's config and products.
	job.WorkDir = filepath.Join(c.workRoot, project)
	job.UpdatedAt = job.CreatedAt

	c.logger.Info("Run started",
		zap.String("run_id", job.RunID.String()),
		zap.String("project", job.Project),
		zap.String("roi", job.ROI.String()),
	)

	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.Started(ctx, job); err != nil {
			c.logger.Warn("Failed to record run start", zap.Error(err))
		}
	}

	if err := c.discover(ctx, job, params); err != nil {
		return job, c.fail(ctx, job, err)
	}
	if err := c.resolveOrbits(ctx, job); err != nil {
		return job, c.fail(ctx, job, err)
	}
	if err := c.prepareDem(ctx, job); err != nil {
		return job, c.fail(ctx, job, err)
	}
	if err := c.buildConfig(job); err != nil {
		return job, c.fail(ctx, job, err)
	}
	if err := c.process(ctx, job); err != nil {
		return job, c.fail(ctx, job, err)
	}
	if err := c.collect(job); err != nil {
		return job, c.fail(ctx, job, err)
	}

	c.transition(job, domain.StateDone)
	metrics.RunsTotal.WithLabelValues(string(domain.StateDone)).Inc()
	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.Finished(ctx, job, nil); err != nil {
			c.logger.Warn("Failed to record run finish", zap.Error(err))
		}
	}

	c.logger.Info("Run completed",
		zap.String("run_id", job.RunID.String()),
		zap.Int("products", len(job.Products)),
	)
	return job, nil
}

func (c *Coordinator) discover(ctx context.Context, job *domain.ProcessingJob, params Params) error {
	return c.runStage(job, domain.StateDiscovering, func() error {
		var (
			scenes []*domain.Scene
			err    error
		)
		if params.LocalScan {
			scenes, err = c.deps.Scenes.ScanLocal(params.LocalDir)
		} else {
			scenes, err = c.deps.Scenes.Search(ctx, job.ROI, job.StartDate, job.EndDate)
		}
		if err != nil {
			return err
		}
		if !params.LocalScan {
			if err := c.deps.Scenes.Download(ctx, scenes); err != nil {
				return err
			}
		}
		job.Scenes = scenes
		// The earliest acquisition anchors the interferogram.
		job.Reference = scenes[0]
		c.logger.Info("Scene set assembled",
			zap.Int("scenes", len(scenes)),
			zap.String("reference", job.Reference.ID),
		)
		return nil
	})
}

func (c *Coordinator) resolveOrbits(ctx context.Context, job *domain.ProcessingJob) error {
	return c.runStage(job, domain.StateOrbitResolving, func() error {
		orbits, err := c.deps.Orbits.ResolveAll(ctx, job.Scenes)
		if err != nil {
			return err
		}
		job.Orbits = orbits
		return nil
	})
}

// prepareDem plans and materializes the elevation mosaic, widening the
// buffer and replanning when the stitched mosaic falls short of the plan.
func (c *Coordinator) prepareDem(ctx context.Context, job *domain.ProcessingJob) error {
	return c.runStage(job, domain.StateDemPreparing, func() error {
		buffer := c.dem.BufferDeg
		attempts := c.dem.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}

		var lastErr error
		for attempt := 1; attempt <= attempts; attempt++ {
			plan, err := c.deps.Dem.Plan(job.Scenes, job.ROI, buffer, c.dem.Dataset)
			if err != nil {
				return err
			}
			mosaic, err := c.deps.Dem.Materialize(ctx, plan)
			if err == nil {
				job.Plan = plan
				job.Mosaic = mosaic
				return nil
			}

			var covErr *domain.DemCoverageError
			if !errors.As(err, &covErr) {
				return err
			}
			lastErr = err
			if attempt == attempts {
				break
			}
			buffer += c.dem.BufferStepDeg
			metrics.CoverageRetries.Inc()
			c.logger.Warn("Mosaic coverage short of plan, widening buffer",
				zap.Float64("buffer_deg", buffer),
				zap.Int("attempt", attempt+1),
			)
		}
		return lastErr
	})
}

func (c *Coordinator) buildConfig(job *domain.ProcessingJob) error {
	return c.runStage(job, domain.StateConfigBuilding, func() error {
		return c.deps.Config.Write(job)
	})
}

func (c *Coordinator) process(ctx context.Context, job *domain.ProcessingJob) error {
	return c.runStage(job, domain.StateExternalProcessing, func() error {
		res, err := c.deps.Engine.Run(ctx, engine.RunRequest{
			WorkDir:    job.WorkDir,
			ConfigPath: job.ConfigPath,
			Timeout:    c.engineCfg.Timeout,
		})
		if err != nil {
			return err
		}
		c.logger.Info("Engine finished",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("elapsed", res.Elapsed),
		)
		return nil
	})
}

func (c *Coordinator) collect(job *domain.ProcessingJob) error {
	return c.runStage(job, domain.StateCollecting, func() error {
		if err := VerifyOutputLayout(job.WorkDir); err != nil {
			return err
		}
		products, err := c.collector.Collect(job.WorkDir)
		if err != nil {
			return err
		}
		job.Products = products
		return nil
	})
}

// runStage transitions the job into state, times fn, and records the stage
// duration metric whether or not fn succeeds.
func (c *Coordinator) runStage(job *domain.ProcessingJob, state domain.PipelineState, fn func() error) error {
	c.transition(job, state)
	start := time.Now()
	err := fn()
	metrics.StageDuration.WithLabelValues(string(state)).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("stage %s: %w", state, err)
	}
	return nil
}

func (c *Coordinator) transition(job *domain.ProcessingJob, state domain.PipelineState) {
	job.State = state
	job.UpdatedAt = time.Now().UTC()
	c.logger.Debug("State transition",
		zap.String("run_id", job.RunID.String()),
		zap.String("state", string(state)),
	)
}

func (c *Coordinator) fail(ctx context.Context, job *domain.ProcessingJob, err error) error {
	c.transition(job, domain.StateFailed)
	metrics.RunsTotal.WithLabelValues(string(domain.StateFailed)).Inc()
	if c.deps.Recorder != nil {
		if recErr := c.deps.Recorder.Finished(ctx, job, err); recErr != nil {
			c.logger.Warn("Failed to record run failure", zap.Error(recErr))
		}
	}
	c.logger.Error("Run failed",
		zap.String("run_id", job.RunID.String()),
		zap.Error(err),
	)
	return err
}
