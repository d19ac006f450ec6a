// Package stitch wraps the external elevation-tile stitcher CLI. The raster
// mosaicking itself is out of scope here; the wrapper owns the invocation and
// the extent-reporting contract.
package stitch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
	"github.com/geoflux/insarpipe/internal/provider"
)

// extentPrefix starts the stdout line on which the stitcher reports the
// actual raster extent of the mosaic it wrote:
//
//	EXTENT <minLon> <minLat> <maxLon> <maxLat>
//
// The source tile grid can truncate the request at dataset boundaries, so the
// reported extent is authoritative, not the requested bounds.
const extentPrefix = "EXTENT"

// CLIStitcher runs the stitcher binary as a subprocess.
type CLIStitcher struct {
	binPath string
	logger  *zap.Logger
}

var _ provider.DemStitcher = (*CLIStitcher)(nil)

// NewCLIStitcher creates a stitcher wrapper for the given binary.
func NewCLIStitcher(binPath string, logger *zap.Logger) *CLIStitcher {
	return &CLIStitcher{binPath: binPath, logger: logger}
}

// Stitch invokes the stitcher for the requested bounds and dataset, writing
// the mosaic to destPath, and returns the mosaic with its reported extent.
func (s *CLIStitcher) Stitch(ctx context.Context, bounds domain.Bounds, dataset, destPath string) (*domain.DemMosaic, error) {
	args := []string{
		"--bbox", formatFloat(bounds.MinLon), formatFloat(bounds.MinLat),
		formatFloat(bounds.MaxLon), formatFloat(bounds.MaxLat),
		"--dem-name", dataset,
		"--output", destPath,
	}

	cmd := exec.CommandContext(ctx, s.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Info("Stitching elevation mosaic",
		zap.String("dataset", dataset),
		zap.String("bounds", bounds.String()),
		zap.String("output", destPath),
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("stitcher cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("stitcher failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	coverage, err := parseExtent(stdout.String())
	if err != nil {
		return nil, fmt.Errorf("stitcher output: %w", err)
	}

	return &domain.DemMosaic{Path: destPath, Coverage: coverage, Dataset: dataset}, nil
}

// parseExtent finds the last EXTENT line in the stitcher's stdout.
func parseExtent(out string) (domain.Bounds, error) {
	var line string
	for _, l := range strings.Split(out, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, extentPrefix+" ") {
			line = l
		}
	}
	if line == "" {
		return domain.Bounds{}, fmt.Errorf("no %s line reported", extentPrefix)
	}

	fields := strings.Fields(line)
	if len(fields) != 5 {
		return domain.Bounds{}, fmt.Errorf("malformed extent line %q", line)
	}

	vals := make([]float64, 4)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("malformed extent value %q", f)
		}
		vals[i] = v
	}
	return domain.Bounds{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
