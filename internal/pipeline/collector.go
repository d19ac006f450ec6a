package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
)

// MergedDirName is the engine's merged-products subdirectory inside the work
// directory.
const MergedDirName = "merged"

// productFiles maps each expected product kind to the geocoded file the
// engine writes under merged/.
var productFiles = map[domain.ProductKind]string{
	domain.ProductUnwrappedDisplacement: "filt_topophase.unw.geo",
	domain.ProductCoherence:             "topophase.cor.geo",
	domain.ProductPhaseSigma:            "phsig.cor.geo",
}

// Collector locates the expected output artifacts after a successful engine
// run.
type Collector struct {
	logger *zap.Logger
}

// NewCollector creates a result collector.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger}
}

// Collect maps every expected product kind to its file path under the work
// directory's merged/ subdirectory. The first absent kind fails the
// collection; partial product sets are never returned.
func (c *Collector) Collect(workDir string) (map[domain.ProductKind]string, error) {
	mergedDir := filepath.Join(workDir, MergedDirName)

	products := make(map[domain.ProductKind]string, len(domain.ProductKinds))
	for _, kind := range domain.ProductKinds {
		path := filepath.Join(mergedDir, productFiles[kind])
		fi, err := os.Stat(path)
		if err != nil || fi.Size() == 0 {
			return nil, &domain.MissingProductError{Kind: kind, Dir: mergedDir}
		}
		products[kind] = path
	}

	c.logger.Info("Output products collected",
		zap.Int("products", len(products)),
		zap.String("dir", mergedDir),
	)
	return products, nil
}

// VerifyOutputLayout checks that the engine produced its merged-products
// directory at all. A reported success without it means the engine claimed
// completion but did not produce what the contract requires.
func VerifyOutputLayout(workDir string) error {
	mergedDir := filepath.Join(workDir, MergedDirName)
	entries, err := os.ReadDir(mergedDir)
	if err != nil || len(entries) == 0 {
		return &domain.InconsistentOutputError{Dir: mergedDir}
	}
	return nil
}

// ProductFileName returns the expected file name for a product kind. Exposed
// for the CLI's output summary.
func ProductFileName(kind domain.ProductKind) (string, error) {
	name, ok := productFiles[kind]
	if !ok {
		return "", fmt.Errorf("unknown product kind %q", kind)
	}
	return name, nil
}
