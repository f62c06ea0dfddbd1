package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTimeout is returned when a process exceeds its wall-clock budget and is killed
	ErrTimeout = errors.New("process timed out")
	// ErrNonZeroExit is returned when a process exits unsuccessfully
	ErrNonZeroExit = errors.New("process exited with non-zero status")
	// ErrToolMissing is returned when the binary cannot be found or executed
	ErrToolMissing = errors.New("process binary is missing or not executable")
)

// killGrace bounds how long Wait blocks on inherited pipes after the process is killed
const killGrace = 500 * time.Millisecond

// Runner executes external binaries
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)
}

// Gateway runs external tools with a hard timeout per invocation
type Gateway struct {
	logger *zap.Logger
}

var _ Runner = (*Gateway)(nil)

// NewGateway creates a new process gateway
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{logger: logger}
}

// Run executes name with args and returns its stdout. The process is killed once
// timeout elapses, in which case the returned error wraps ErrTimeout.
func (g *Gateway) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		g.logger.Debug("Process completed",
			zap.String("command", name),
			zap.Duration("elapsed", elapsed))
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		g.logger.Warn("Process timed out",
			zap.String("command", name),
			zap.Duration("timeout", timeout))
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, timeout)
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolMissing, name, err)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		g.logger.Warn("Process failed",
			zap.String("command", name),
			zap.Int("exitCode", exitErr.ExitCode()),
			zap.String("stderr", truncate(stderr.String(), 512)))
		return nil, fmt.Errorf("%w: %s exited with %d: %s", ErrNonZeroExit, name, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}

	return nil, fmt.Errorf("failed to run %s: %w", name, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
