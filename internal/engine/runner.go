package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/geoflux/insarpipe/internal/domain"
)

const (
	// LogFileName is the execution log appended in the work directory; the
	// engine's combined output is teed into it.
	LogFileName = "engine.log"

	// maxStderrBytes caps the captured stderr carried on failure errors.
	maxStderrBytes = 64 * 1024
)

// Runner invokes the processing engine as a blocking subprocess.
type Runner struct {
	enginePath string
	logger     *zap.Logger
}

// NewRunner creates an engine runner for the given binary.
func NewRunner(enginePath string, logger *zap.Logger) *Runner {
	return &Runner{enginePath: enginePath, logger: logger}
}

// RunRequest describes one engine invocation.
type RunRequest struct {
	WorkDir    string
	ConfigPath string

	// Timeout bounds the run; expiry terminates the engine's process group.
	// Zero means no deadline beyond the caller's context.
	Timeout time.Duration
}

// RunResult reports a completed invocation.
type RunResult struct {
	ExitCode int
	Elapsed  time.Duration
}

// Run executes the engine against the given configuration and blocks until it
// exits. A non-zero exit surfaces as ExternalProcessorError with captured
// stderr; deadline expiry kills the process group and surfaces as
// ExternalProcessorTimeoutError. The work directory and its log are left in
// place for diagnosis in every outcome.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	logFile, err := os.OpenFile(filepath.Join(req.WorkDir, LogFileName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open engine log: %w", err)
	}
	defer logFile.Close()
	fmt.Fprintf(logFile, "\n==== engine start %s config=%s ====\n",
		time.Now().UTC().Format(time.RFC3339), req.ConfigPath)

	cmd := exec.CommandContext(runCtx, r.enginePath, req.ConfigPath)
	cmd.Dir = req.WorkDir

	// Own process group so a timeout can terminate the engine's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr limitedBuffer
	stderr.limit = maxStderrBytes
	cmd.Stdout = logFile
	cmd.Stderr = io.MultiWriter(&stderr, logFile)

	r.logger.Info("Invoking processing engine",
		zap.String("engine", r.enginePath),
		zap.String("config", req.ConfigPath),
		zap.Duration("timeout", req.Timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() != nil {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		// The timeout error is only accurate when our own deadline fired;
		// a cancelled or expired caller context is not an engine overrun.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			fmt.Fprintf(logFile, "==== engine killed after %s timeout ====\n", req.Timeout)
			return nil, &domain.ExternalProcessorTimeoutError{Timeout: req.Timeout}
		}
		fmt.Fprintf(logFile, "==== engine run cancelled after %s ====\n", elapsed)
		return nil, fmt.Errorf("engine run cancelled: %w", ctx.Err())
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			fmt.Fprintf(logFile, "==== engine failed with code %d after %s ====\n", exitErr.ExitCode(), elapsed)
			return &RunResult{ExitCode: exitErr.ExitCode(), Elapsed: elapsed},
				&domain.ExternalProcessorError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return nil, fmt.Errorf("invoke engine: %w", runErr)
	}

	fmt.Fprintf(logFile, "==== engine completed in %s ====\n", elapsed)
	r.logger.Info("Processing engine completed", zap.Duration("elapsed", elapsed))
	return &RunResult{ExitCode: 0, Elapsed: elapsed}, nil
}

// limitedBuffer is a bytes.Buffer that stops accepting writes after a limit.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (lb *limitedBuffer) Write(p []byte) (int, error) {
	orig := len(p)
	if lb.truncated {
		return orig, nil // discard silently
	}

	remaining := lb.limit - lb.buf.Len()
	if remaining <= 0 {
		lb.truncated = true
		return orig, nil
	}

	if len(p) > remaining {
		lb.truncated = true
		p = p[:remaining]
	}

	if _, err := lb.buf.Write(p); err != nil {
		return 0, err
	}
	return orig, nil
}

func (lb *limitedBuffer) String() string {
	return lb.buf.String()
}
