package media

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
)

// DurationProber measures audio length in seconds
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// FallbackSynthesizer writes the schematic four-cue track when real extraction is unavailable
type FallbackSynthesizer struct {
	prober DurationProber
	logger *zap.Logger
}

func NewFallbackSynthesizer(prober DurationProber, logger *zap.Logger) *FallbackSynthesizer {
	return &FallbackSynthesizer{prober: prober, logger: logger}
}

// Build writes a fallback track to jsonPath and returns it. The duration comes from
// probing audioPath when present, then from the text length, then the default.
// The returned track is usable even when the write fails.
func (f *FallbackSynthesizer) Build(ctx context.Context, jsonPath, audioPath, text string) (entities.LipsyncTrack, error) {
	track := entities.FallbackTrack(f.Duration(ctx, audioPath, text))

	if err := WriteTrack(jsonPath, track); err != nil {
		f.logger.Error("Failed to create fallback lipsync file",
			zap.String("json", jsonPath),
			zap.Error(err))
		return track, err
	}
	return track, nil
}

// Duration estimates how long the fallback track should run
func (f *FallbackSynthesizer) Duration(ctx context.Context, audioPath, text string) float64 {
	if audioPath != "" && f.prober != nil {
		if _, err := os.Stat(audioPath); err == nil {
			if d, err := f.prober.ProbeDuration(ctx, audioPath); err == nil {
				return d
			}
		}
	}
	return entities.EstimateDuration(text)
}
