package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/internal/metrics"
	"github.com/satriahrh/studybuddy/internal/process"
)

const (
	defaultFFmpegPath     = "ffmpeg"
	defaultFFprobePath    = "ffprobe"
	defaultSampleRate     = 16000
	defaultConvertTimeout = 5 * time.Second
	defaultProbeTimeout   = 2 * time.Second
	defaultSilenceTimeout = 2 * time.Second
	defaultSilenceSeconds = 3
)

var (
	// ErrEmptyFile is returned when an input or output artifact has zero bytes
	ErrEmptyFile = errors.New("audio file is empty")
	// ErrInvalidWav is returned when the converted file lacks the RIFF/WAVE markers
	ErrInvalidWav = errors.New("invalid WAV container")
)

// AudioToolsConfig holds paths and budgets for the ffmpeg based helpers
type AudioToolsConfig struct {
	FFmpegPath     string
	FFprobePath    string
	SampleRate     int
	ConvertTimeout time.Duration
	ProbeTimeout   time.Duration
	SilenceTimeout time.Duration
	SilenceSeconds int
}

// AudioTools wraps ffmpeg and ffprobe invocations
type AudioTools struct {
	runner  process.Runner
	cfg     AudioToolsConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAudioTools creates audio helpers, applying defaults for unset config values
func NewAudioTools(runner process.Runner, cfg AudioToolsConfig, logger *zap.Logger, m *metrics.Metrics) *AudioTools {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = defaultFFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = defaultFFprobePath
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = defaultConvertTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = defaultSilenceTimeout
	}
	if cfg.SilenceSeconds <= 0 {
		cfg.SilenceSeconds = defaultSilenceSeconds
	}

	return &AudioTools{
		runner:  runner,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// ConvertToWav normalizes src into mono PCM s16le WAV at the configured sample rate
func (a *AudioTools) ConvertToWav(ctx context.Context, src, dst string) error {
	if err := requireNonEmpty(src); err != nil {
		return err
	}

	a.logger.Debug("Converting audio to WAV", zap.String("src", src), zap.String("dst", dst))

	_, err := a.runner.Run(ctx, a.cfg.ConvertTimeout, a.cfg.FFmpegPath,
		"-y", "-i", src,
		"-ar", strconv.Itoa(a.cfg.SampleRate),
		"-ac", "1",
		"-acodec", "pcm_s16le",
		dst,
		"-v", "warning",
	)
	a.metrics.ProcessRun("ffmpeg_convert", err)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", src, err)
	}

	if err := requireNonEmpty(dst); err != nil {
		return err
	}
	return ValidateWavHeader(dst)
}

// ProbeDuration returns the length of an audio file in seconds
func (a *AudioTools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := a.runner.Run(ctx, a.cfg.ProbeTimeout, a.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	a.metrics.ProcessRun("ffprobe", err)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f for %s", duration, path)
	}
	return duration, nil
}

// GenerateSilence writes a short silent mono track to path
func (a *AudioTools) GenerateSilence(ctx context.Context, path string) error {
	_, err := a.runner.Run(ctx, a.cfg.SilenceTimeout, a.cfg.FFmpegPath,
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", a.cfg.SampleRate),
		"-t", strconv.Itoa(a.cfg.SilenceSeconds),
		path,
	)
	a.metrics.ProcessRun("ffmpeg_silence", err)
	if err != nil {
		return fmt.Errorf("failed to generate silence: %w", err)
	}
	return requireNonEmpty(path)
}

// Available reports whether ffmpeg can be executed
func (a *AudioTools) Available(ctx context.Context) bool {
	_, err := a.runner.Run(ctx, defaultProbeTimeout, a.cfg.FFmpegPath, "-version")
	return err == nil
}

// ValidateWavHeader checks the fixed RIFF....WAVE markers of a WAV container
func ValidateWavHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidWav, path, err)
	}

	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return fmt.Errorf("%w: %s", ErrInvalidWav, path)
	}
	return nil
}

func requireNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return nil
}
