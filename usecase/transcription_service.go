package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

// ErrTranscriptionUnavailable is returned when no speech recognizer is wired
var ErrTranscriptionUnavailable = errors.New("transcription is not available")

// Setup probe values
const (
	StatusConfigured    = "configured"
	StatusNotConfigured = "not configured"
	StatusInstalled     = "installed"
	StatusNotInstalled  = "not installed"
)

// ToolChecker reports whether the audio toolchain is usable
type ToolChecker interface {
	Available(ctx context.Context) bool
}

// TranscriptionConfig lists which recognizers have credentials
type TranscriptionConfig struct {
	OpenAIAPIKey     string
	WhisperModelPath string
	GoogleCredsPath  string
}

// SetupStatus is the transcription capability report
type SetupStatus struct {
	OpenAIAPI              string `json:"openai_api"`
	WhisperLocal           string `json:"whisper_local"`
	GoogleSpeech           string `json:"google_speech"`
	FFmpeg                 string `json:"ffmpeg"`
	TranscriptionAvailable bool   `json:"transcription_available"`
}

// TranscriptionService converts recorded speech to text and reports setup status
type TranscriptionService struct {
	stt    repositories.SpeechToText
	tools  ToolChecker
	config TranscriptionConfig
	logger *zap.Logger
}

// NewTranscriptionService creates a new transcription service. stt may be nil.
func NewTranscriptionService(stt repositories.SpeechToText, tools ToolChecker, config TranscriptionConfig, logger *zap.Logger) *TranscriptionService {
	return &TranscriptionService{
		stt:    stt,
		tools:  tools,
		config: config,
		logger: logger,
	}
}

// CheckSetup reports which transcription paths are usable
func (s *TranscriptionService) CheckSetup(ctx context.Context) SetupStatus {
	status := SetupStatus{
		OpenAIAPI:    configured(s.config.OpenAIAPIKey),
		WhisperLocal: configured(s.config.WhisperModelPath),
		GoogleSpeech: configured(s.config.GoogleCredsPath),
		FFmpeg:       StatusNotInstalled,
	}
	if s.tools != nil && s.tools.Available(ctx) {
		status.FFmpeg = StatusInstalled
	}

	// only the recognizer backs /transcribe; the other fields are informational
	status.TranscriptionAvailable = s.stt != nil
	return status
}

// Transcribe converts audio to text
func (s *TranscriptionService) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	if s.stt == nil {
		return "", ErrTranscriptionUnavailable
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("failed to transcribe: empty audio")
	}

	text, err := s.stt.TranscribeAudio(ctx, audio, config)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe: %w", err)
	}

	s.logger.Info("Transcribed audio", zap.Int("bytes", len(audio)), zap.Int("chars", len(text)))
	return text, nil
}

func configured(value string) string {
	if value != "" {
		return StatusConfigured
	}
	return StatusNotConfigured
}
