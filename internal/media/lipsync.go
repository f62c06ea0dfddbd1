package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/metrics"
	"github.com/satriahrh/studybuddy/internal/process"
)

const (
	defaultRhubarbPath      = "./bin/rhubarb"
	defaultSelfCheckTimeout = 2 * time.Second
)

// Rhubarb recognizers, tried in order on retry
const (
	RecognizerPhonetic     = "phonetic"
	RecognizerPocketSphinx = "pocketSphinx"
)

// ExtractorConfig configures the viseme extractor
type ExtractorConfig struct {
	BinaryPath  string
	Policy      process.RetryPolicy
	Recognizers []string
}

// DefaultExtractorPolicy allows one retry with a shorter budget
var DefaultExtractorPolicy = process.RetryPolicy{
	MaxAttempts: 2,
	Timeouts:    []time.Duration{10 * time.Second, 6 * time.Second},
}

// LipsyncExtractor derives mouth cues from a WAV file with the Rhubarb binary
type LipsyncExtractor struct {
	runner   process.Runner
	cfg      ExtractorConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	disabled atomic.Bool
}

// NewLipsyncExtractor creates an extractor, applying defaults for unset config values
func NewLipsyncExtractor(runner process.Runner, cfg ExtractorConfig, logger *zap.Logger, m *metrics.Metrics) *LipsyncExtractor {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = defaultRhubarbPath
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = DefaultExtractorPolicy
	}
	if len(cfg.Recognizers) == 0 {
		cfg.Recognizers = []string{RecognizerPhonetic, RecognizerPocketSphinx}
	}

	return &LipsyncExtractor{
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// SelfCheck verifies the binary exists, repairs a missing executable bit and runs --version.
// On failure the extractor is disabled so every extraction falls back immediately.
func (e *LipsyncExtractor) SelfCheck(ctx context.Context) error {
	err := e.selfCheck(ctx)
	e.disabled.Store(err != nil)
	return err
}

func (e *LipsyncExtractor) selfCheck(ctx context.Context) error {
	info, err := os.Stat(e.cfg.BinaryPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", process.ErrToolMissing, e.cfg.BinaryPath, err)
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		e.logger.Info("Adding executable permission to lipsync binary", zap.String("path", e.cfg.BinaryPath))
		if err := os.Chmod(e.cfg.BinaryPath, info.Mode().Perm()|0o111); err != nil {
			return fmt.Errorf("%w: failed to chmod %s: %v", process.ErrToolMissing, e.cfg.BinaryPath, err)
		}
	}

	if _, err := e.runner.Run(ctx, defaultSelfCheckTimeout, e.cfg.BinaryPath, "--version"); err != nil {
		return fmt.Errorf("lipsync binary self-check failed: %w", err)
	}

	e.logger.Info("Lipsync binary is executable and working", zap.String("path", e.cfg.BinaryPath))
	return nil
}

// Enabled reports whether extraction will be attempted
func (e *LipsyncExtractor) Enabled() bool {
	return !e.disabled.Load()
}

// Extract runs the binary on wavPath, writing its JSON output to jsonPath.
// A failed or structurally invalid first attempt is retried once with a
// shorter timeout and the next recognizer.
func (e *LipsyncExtractor) Extract(ctx context.Context, wavPath, jsonPath string) (entities.LipsyncTrack, error) {
	if !e.Enabled() {
		return entities.LipsyncTrack{}, fmt.Errorf("%w: extractor disabled", process.ErrToolMissing)
	}
	if err := requireNonEmpty(wavPath); err != nil {
		return entities.LipsyncTrack{}, err
	}

	result := process.Retry(ctx, e.cfg.Policy, func(ctx context.Context, attempt int, timeout time.Duration) (entities.LipsyncTrack, error) {
		recognizer := e.recognizer(attempt)
		e.logger.Debug("Generating lipsync",
			zap.String("wav", wavPath),
			zap.Int("attempt", attempt+1),
			zap.String("recognizer", recognizer))

		_, err := e.runner.Run(ctx, timeout, e.cfg.BinaryPath,
			"-f", "json",
			"-o", jsonPath,
			wavPath,
			"-r", recognizer,
			"--logLevel", "info",
		)
		e.metrics.ProcessRun("rhubarb", err)
		if err != nil {
			e.logger.Warn("Lipsync extraction failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			return entities.LipsyncTrack{}, err
		}

		track, err := ReadTrack(jsonPath)
		if err != nil {
			e.logger.Warn("Lipsync output is invalid",
				zap.Int("attempt", attempt+1),
				zap.String("json", jsonPath),
				zap.Error(err))
			return entities.LipsyncTrack{}, err
		}
		return track, nil
	})

	if result.Exhausted() {
		return entities.LipsyncTrack{}, fmt.Errorf("lipsync extraction gave up after %d attempts: %w", result.Attempts, result.Err)
	}
	return result.Value, nil
}

func (e *LipsyncExtractor) recognizer(attempt int) string {
	if attempt >= len(e.cfg.Recognizers) {
		return e.cfg.Recognizers[len(e.cfg.Recognizers)-1]
	}
	return e.cfg.Recognizers[attempt]
}

// ReadTrack loads and validates a lipsync JSON file
func ReadTrack(path string) (entities.LipsyncTrack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.LipsyncTrack{}, fmt.Errorf("failed to read lipsync file: %w", err)
	}

	var track entities.LipsyncTrack
	if err := json.Unmarshal(data, &track); err != nil {
		return entities.LipsyncTrack{}, fmt.Errorf("failed to parse lipsync file %s: %w", path, err)
	}
	if err := track.Validate(); err != nil {
		return entities.LipsyncTrack{}, err
	}
	return track, nil
}

// WriteTrack stores a lipsync track as JSON
func WriteTrack(path string, track entities.LipsyncTrack) error {
	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("failed to marshal lipsync track: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write lipsync file: %w", err)
	}
	return nil
}
