package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/auth"
	"github.com/geoflux/insarpipe/internal/catalog"
	"github.com/geoflux/insarpipe/internal/config"
	"github.com/geoflux/insarpipe/internal/dem"
	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/engine"
	"github.com/geoflux/insarpipe/internal/ledger"
	"github.com/geoflux/insarpipe/internal/orbit"
	"github.com/geoflux/insarpipe/internal/pipeline"
	"github.com/geoflux/insarpipe/internal/provider/asf"
	"github.com/geoflux/insarpipe/internal/provider/stitch"
)

const dateLayout = "2006-01-02"

type cliArgs struct {
	roi         domain.Bounds
	start       time.Time
	end         time.Time
	project     string
	workDir     string
	downloadDir string
	orbitDir    string
	demDir      string
	localScan   bool
	localDir    string
	timeout     time.Duration
	history     int
}

func main() {
	os.Exit(run())
}

func run() int {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "insarpipe:", err)
		return domain.ExitUsage
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return domain.ExitFailure
	}
	if args.workDir != "" {
		cfg.Dirs.Work = args.workDir
	}
	if args.downloadDir != "" {
		cfg.Dirs.Download = args.downloadDir
	}
	if args.orbitDir != "" {
		cfg.Dirs.Orbit = args.orbitDir
	}
	if args.demDir != "" {
		cfg.Dirs.Dem = args.demDir
	}
	if args.timeout > 0 {
		cfg.Engine.Timeout = args.timeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open run ledger
	if err := os.MkdirAll(cfg.Dirs.Work, 0o755); err != nil {
		logger.Error("Failed to create work dir", zap.Error(err))
		return domain.ExitFailure
	}
	store, err := ledger.Open(filepath.Join(cfg.Dirs.Work, "insarpipe.db"))
	if err != nil {
		logger.Error("Failed to open run ledger", zap.Error(err))
		return domain.ExitFailure
	}
	defer store.Close()

	if args.history > 0 {
		return printHistory(ctx, store, args.project, args.history)
	}

	// Start Prometheus metrics server
	if cfg.Metrics.Enabled {
		go func() {
			metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	creds := auth.NewProvider(cfg.Auth.NetrcPath, cfg.Auth.Machine, auth.StdinPrompt, logger)

	catalogClient := asf.NewClient(cfg.Search.Endpoint, cfg.Search.Platform, cfg.Search.BeamMode, cfg.Search.Product, creds, logger)
	orbitClient := asf.NewOrbitClient(cfg.Orbit.Endpoint, creds, logger)
	stitcher := stitch.NewCLIStitcher(cfg.Dem.StitcherPath, logger)

	deps := pipeline.Deps{
		Scenes:   catalog.NewManager(catalogClient, cfg.Dirs.Download, cfg.Search.PoolSize, logger),
		Orbits:   orbit.NewResolver(orbitClient, cfg.Dirs.Orbit, cfg.Orbit.PoolSize, logger),
		Dem:      dem.NewPlanner(stitcher, cfg.Dirs.Dem, cfg.Dem.FallbackDataset, logger),
		Config:   engine.NewConfigBuilder(cfg.Engine.AzimuthLooks, cfg.Engine.RangeLooks, cfg.Engine.Unwrapper),
		Engine:   engine.NewRunner(cfg.Engine.Path, logger),
		Recorder: store,
	}

	coordinator := pipeline.NewCoordinator(deps, cfg, logger)

	job, err := coordinator.Run(ctx, pipeline.Params{
		Project:   args.project,
		ROI:       args.roi,
		StartDate: args.start,
		EndDate:   args.end,
		LocalScan: args.localScan,
		LocalDir:  args.localDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "insarpipe: run %s failed: %v\n", job.RunID, err)
		return domain.ExitCode(err)
	}

	fmt.Printf("run %s completed\n", job.RunID)
	for _, kind := range domain.ProductKinds {
		fmt.Printf("  %-24s %s\n", kind, job.Products[kind])
	}
	return domain.ExitOK
}

func parseArgs(argv []string) (*cliArgs, error) {
	fs := flag.NewFlagSet("insarpipe", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	roiFlag := fs.String("roi", "", "region of interest as minLon,minLat,maxLon,maxLat (required)")
	startFlag := fs.String("start", "", "start of the acquisition window, YYYY-MM-DD (required)")
	endFlag := fs.String("end", "", "end of the acquisition window, YYYY-MM-DD (required)")
	project := fs.String("project", "default", "project name for the run ledger")
	workDir := fs.String("work-dir", "", "override the work directory root")
	downloadDir := fs.String("download-dir", "", "override the scene archive directory")
	orbitDir := fs.String("orbit-dir", "", "override the orbit file directory")
	demDir := fs.String("dem-dir", "", "override the elevation mosaic directory")
	localScan := fs.Bool("local-scan", false, "assemble the scene set from local archives instead of the catalog")
	localDir := fs.String("local-dir", "", "directory scanned when -local-scan is set")
	timeout := fs.Duration("timeout", 0, "override the engine run timeout")
	history := fs.Int("history", 0, "print the last N runs for -project and exit")

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	args := &cliArgs{
		project:     *project,
		workDir:     *workDir,
		downloadDir: *downloadDir,
		orbitDir:    *orbitDir,
		demDir:      *demDir,
		localScan:   *localScan,
		localDir:    *localDir,
		timeout:     *timeout,
		history:     *history,
	}
	if args.history > 0 {
		return args, nil
	}

	roi, err := parseROI(*roiFlag)
	if err != nil {
		return nil, err
	}
	args.roi = roi

	if !args.localScan {
		if *startFlag == "" || *endFlag == "" {
			return nil, errors.New("-start and -end are required")
		}
	}
	if *startFlag != "" {
		if args.start, err = time.Parse(dateLayout, *startFlag); err != nil {
			return nil, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if *endFlag != "" {
		if args.end, err = time.Parse(dateLayout, *endFlag); err != nil {
			return nil, fmt.Errorf("invalid -end: %w", err)
		}
	}
	if !args.start.IsZero() && args.start.After(args.end) {
		return nil, domain.ErrInvalidDateRange
	}
	if args.localScan && args.localDir == "" {
		return nil, errors.New("-local-dir is required with -local-scan")
	}
	return args, nil
}

func parseROI(s string) (domain.Bounds, error) {
	if s == "" {
		return domain.Bounds{}, errors.New("-roi is required")
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("%w: want minLon,minLat,maxLon,maxLat", domain.ErrMalformedROI)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("%w: %q", domain.ErrMalformedROI, p)
		}
		vals[i] = v
	}
	b := domain.Bounds{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if !b.WellFormed() {
		return domain.Bounds{}, domain.ErrMalformedROI
	}
	return b, nil
}

func printHistory(ctx context.Context, store *ledger.Store, project string, limit int) int {
	records, err := store.History(ctx, project, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "insarpipe:", err)
		return domain.ExitFailure
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s  %-10s  %s", rec.RunID, rec.State, rec.StartedAt.Format(time.RFC3339))
		if rec.Error != "" {
			line += "  " + rec.Error
		}
		fmt.Println(line)
	}
	return domain.ExitOK
}
