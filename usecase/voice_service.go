package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

// VoiceService lists provider voices, remembering the first successful answer
type VoiceService struct {
	tts    repositories.TextToSpeech
	logger *zap.Logger

	mu     sync.Mutex
	voices []repositories.Voice
}

// NewVoiceService creates a new voice service
func NewVoiceService(tts repositories.TextToSpeech, logger *zap.Logger) *VoiceService {
	return &VoiceService{tts: tts, logger: logger}
}

// Voices returns the cached voice list, fetching it on first use
func (s *VoiceService) Voices(ctx context.Context) ([]repositories.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voices != nil {
		return s.voices, nil
	}

	voices, err := s.tts.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voices: %w", err)
	}
	if voices == nil {
		voices = []repositories.Voice{}
	}

	s.logger.Info("Fetched voice list", zap.Int("count", len(voices)))
	s.voices = voices
	return voices, nil
}
