package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/media"
	"github.com/satriahrh/studybuddy/internal/metrics"
)

// ErrEmptyAudio is returned when the speech provider produced no usable file
var ErrEmptyAudio = errors.New("synthesized audio is missing or empty")

// AudioConverter normalizes audio and produces silent placeholders
type AudioConverter interface {
	ConvertToWav(ctx context.Context, src, dst string) error
	GenerateSilence(ctx context.Context, path string) error
}

// VisemeExtractor derives a mouth cue track from a WAV file
type VisemeExtractor interface {
	Extract(ctx context.Context, wavPath, jsonPath string) (entities.LipsyncTrack, error)
}

// FallbackBuilder writes a schematic track when extraction is unavailable
type FallbackBuilder interface {
	Build(ctx context.Context, jsonPath, audioPath, text string) (entities.LipsyncTrack, error)
}

// ContentStore is the content-addressed audio + lipsync cache
type ContentStore interface {
	Lookup(text string) cache.Entry
	Store(key, audioPath, lipsyncPath string) error
	Invalidate(key string)
}

// ProcessorConfig holds the working directory for per-request files
type ProcessorConfig struct {
	WorkDir string
}

// Processor turns one reply segment into a segment carrying audio and lipsync
type Processor struct {
	cfg       ProcessorConfig
	tts       repositories.TextToSpeech
	audio     AudioConverter
	extractor VisemeExtractor
	fallback  FallbackBuilder
	store     ContentStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

var _ SegmentProcessor = (*Processor)(nil)

// NewProcessor creates a message processor
func NewProcessor(
	cfg ProcessorConfig,
	tts repositories.TextToSpeech,
	audio AudioConverter,
	extractor VisemeExtractor,
	fallback FallbackBuilder,
	store ContentStore,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Processor {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "audios"
		logger.Info("Using default working directory", zap.String("dir", cfg.WorkDir))
	}

	return &Processor{
		cfg:       cfg,
		tts:       tts,
		audio:     audio,
		extractor: extractor,
		fallback:  fallback,
		store:     store,
		logger:    logger,
		metrics:   m,
	}
}

// WorkingBase returns the working file prefix for a segment, without extension
func (p *Processor) WorkingBase(sessionID string, index int) string {
	return filepath.Join(p.cfg.WorkDir, fmt.Sprintf("message_%s_%d", sessionID, index))
}

// Process never fails: every path ends in a segment with some audio (possibly
// empty) and a playable lipsync track.
func (p *Processor) Process(ctx context.Context, segment entities.ReplySegment, sessionID string, index int) entities.ReplySegment {
	start := time.Now()
	defer func() { p.metrics.ObserveSegment(time.Since(start)) }()

	if strings.TrimSpace(segment.Text) == "" {
		return segment.Placeholder()
	}

	entry := p.store.Lookup(segment.Text)
	if entry.Hit {
		p.logger.Debug("Using cached audio and lipsync", zap.Int("index", index), zap.String("key", entry.Key))
		out, err := p.encode(segment, entry.AudioPath, entry.LipsyncPath)
		if err == nil {
			return out
		}
		p.logger.Warn("Cached files could not be read, regenerating",
			zap.String("key", entry.Key),
			zap.Error(err))
		p.store.Invalidate(entry.Key)
	}

	base := p.WorkingBase(sessionID, index)
	audioPath := base + ".mp3"
	wavPath := base + ".wav"
	lipsyncPath := base + ".json"

	synthesized := true
	if err := p.synthesize(ctx, segment.Text, audioPath); err != nil {
		synthesized = false
		p.metrics.Fallback("synthesize")
		p.logger.Error("Speech synthesis failed, using silent audio",
			zap.Int("index", index),
			zap.Error(err))

		if err := p.audio.GenerateSilence(ctx, audioPath); err != nil {
			p.logger.Error("Failed to create silent audio", zap.Error(err))
		}
	}

	if _, err := p.visemes(ctx, audioPath, wavPath, lipsyncPath); err != nil {
		p.logger.Info("Creating fallback lipsync",
			zap.Int("index", index),
			zap.Error(err))
		if _, err := p.fallback.Build(ctx, lipsyncPath, audioPath, segment.Text); err != nil {
			p.logger.Error("Failed to write fallback lipsync", zap.Error(err))
		}
	}

	if synthesized {
		if err := p.store.Store(entry.Key, audioPath, lipsyncPath); err != nil {
			p.logger.Error("Failed to cache files", zap.Int("index", index), zap.Error(err))
		}
	}

	out, err := p.encode(segment, audioPath, lipsyncPath)
	if err != nil {
		p.logger.Error("Failed to encode segment, returning placeholder",
			zap.Int("index", index),
			zap.Error(err))
		return p.degraded(ctx, segment, audioPath, lipsyncPath)
	}
	return out
}

func (p *Processor) synthesize(ctx context.Context, text, audioPath string) error {
	if err := p.tts.SynthesizeToFile(ctx, text, audioPath); err != nil {
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyAudio, err)
	}
	if info.Size() == 0 {
		return ErrEmptyAudio
	}
	return nil
}

func (p *Processor) visemes(ctx context.Context, audioPath, wavPath, lipsyncPath string) (entities.LipsyncTrack, error) {
	if err := p.audio.ConvertToWav(ctx, audioPath, wavPath); err != nil {
		p.metrics.Fallback("convert")
		return entities.LipsyncTrack{}, fmt.Errorf("conversion failed: %w", err)
	}

	track, err := p.extractor.Extract(ctx, wavPath, lipsyncPath)
	if err != nil {
		p.metrics.Fallback("extract")
		return entities.LipsyncTrack{}, err
	}
	return track, nil
}

// encode reads the audio as base64 and the lipsync as a validated track
func (p *Processor) encode(segment entities.ReplySegment, audioPath, lipsyncPath string) (entities.ReplySegment, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return segment, fmt.Errorf("failed to read audio file: %w", err)
	}

	track, err := media.ReadTrack(lipsyncPath)
	if err != nil {
		return segment, err
	}

	return segment.WithMedia(base64.StdEncoding.EncodeToString(data), track), nil
}

// degraded salvages whatever can still be read after encode failed
func (p *Processor) degraded(ctx context.Context, segment entities.ReplySegment, audioPath, lipsyncPath string) entities.ReplySegment {
	audio := ""
	if data, err := os.ReadFile(audioPath); err == nil {
		audio = base64.StdEncoding.EncodeToString(data)
	}

	if track, err := media.ReadTrack(lipsyncPath); err == nil {
		return segment.WithMedia(audio, track)
	}
	if track, err := p.fallback.Build(ctx, lipsyncPath, audioPath, segment.Text); err == nil {
		return segment.WithMedia(audio, track)
	}
	return segment.WithMedia(audio, entities.PlaceholderTrack())
}
