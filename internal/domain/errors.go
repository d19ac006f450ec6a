package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedROI is returned when the region of interest is not a
	// well-formed bounding box (min >= max on an axis).
	ErrMalformedROI = errors.New("region of interest is not a well-formed bounding box")

	// ErrInvalidDateRange is returned when the start date is after the end date.
	ErrInvalidDateRange = errors.New("start date is after end date")
)

// InsufficientScenesError means the catalog returned fewer than the two
// distinct scenes an interferometric pair requires. Hard stop.
type InsufficientScenesError struct {
	Found int
}

func (e *InsufficientScenesError) Error() string {
	return fmt.Sprintf("found %d scene(s), at least 2 required for an interferometric pair", e.Found)
}

// OrbitNotFoundError means no orbit tier produced a file covering a scene's
// acquisition time. Fatal for the run: every scene must carry a navigation
// solution.
type OrbitNotFoundError struct {
	SceneID  string
	Attempts []string
}

func (e *OrbitNotFoundError) Error() string {
	return fmt.Sprintf("no orbit file for scene %s (tried: %s)", e.SceneID, strings.Join(e.Attempts, "; "))
}

// DemCoverageError means the stitched mosaic does not cover the plan bounds,
// typically boundary truncation from the source tile grid.
type DemCoverageError struct {
	Want Bounds
	Got  Bounds
}

func (e *DemCoverageError) Error() string {
	return fmt.Sprintf("elevation mosaic extent [%s] does not cover plan bounds [%s]", e.Got, e.Want)
}

// ExternalProcessorError means the processing engine exited non-zero.
type ExternalProcessorError struct {
	ExitCode int
	Stderr   string
}

func (e *ExternalProcessorError) Error() string {
	msg := fmt.Sprintf("processing engine exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// ExternalProcessorTimeoutError means the engine exceeded the caller's
// deadline and was terminated.
type ExternalProcessorTimeoutError struct {
	Timeout time.Duration
}

func (e *ExternalProcessorTimeoutError) Error() string {
	return fmt.Sprintf("processing engine exceeded the %s timeout and was terminated", e.Timeout)
}

// InconsistentOutputError means the engine reported success but the declared
// output directory does not hold what the contract requires.
type InconsistentOutputError struct {
	Dir string
}

func (e *InconsistentOutputError) Error() string {
	return fmt.Sprintf("engine reported success but output directory %s is missing or empty", e.Dir)
}

// MissingProductError names an expected product kind absent from the engine's
// output directory.
type MissingProductError struct {
	Kind ProductKind
	Dir  string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("expected %s product not found in %s", e.Kind, e.Dir)
}

// AuthenticationError means credentials were absent or rejected before any
// download proceeded.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// Exit codes per failure category, for scripting against the CLI.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitUsage              = 2
	ExitInsufficientScenes = 3
	ExitOrbitNotFound      = 4
	ExitDemCoverage        = 5
	ExitExternalProcessor  = 6
	ExitProcessorTimeout   = 7
	ExitInconsistentOutput = 8
	ExitAuthentication     = 9
)

// ExitCode maps an error from the pipeline to its CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		scenes   *InsufficientScenesError
		orbit    *OrbitNotFoundError
		dem      *DemCoverageError
		proc     *ExternalProcessorError
		timeout  *ExternalProcessorTimeoutError
		output   *InconsistentOutputError
		product  *MissingProductError
		authFail *AuthenticationError
	)
	switch {
	case errors.As(err, &scenes):
		return ExitInsufficientScenes
	case errors.As(err, &orbit):
		return ExitOrbitNotFound
	case errors.As(err, &dem):
		return ExitDemCoverage
	case errors.As(err, &timeout):
		return ExitProcessorTimeout
	case errors.As(err, &proc):
		return ExitExternalProcessor
	case errors.As(err, &output), errors.As(err, &product):
		return ExitInconsistentOutput
	case errors.As(err, &authFail):
		return ExitAuthentication
	case errors.Is(err, ErrMalformedROI), errors.Is(err, ErrInvalidDateRange):
		return ExitUsage
	}
	return ExitFailure
}
