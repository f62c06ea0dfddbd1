package tts

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

// MockTextToSpeech writes a fake mp3 payload instead of calling a provider
type MockTextToSpeech struct {
	logger *zap.Logger

	mu    sync.Mutex
	calls []string

	// Err makes every synthesis fail
	Err error
	// EmptyOutput writes a zero-byte file
	EmptyOutput bool
	// Delays holds a per-text artificial latency
	Delays map[string]time.Duration
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

// SynthesizeToFile implements repositories.TextToSpeech
func (m *MockTextToSpeech) SynthesizeToFile(ctx context.Context, text, path string) error {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	delay := m.Delays[text]
	m.mu.Unlock()

	m.logger.Info("Mock synthesizing speech", zap.Int("textLength", len(text)), zap.String("path", path))

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if m.Err != nil {
		return m.Err
	}

	payload := []byte(fmt.Sprintf("ID3 mock audio for %q", text))
	if m.EmptyOutput {
		payload = nil
	}
	return os.WriteFile(path, payload, 0o644)
}

// Voices implements repositories.TextToSpeech
func (m *MockTextToSpeech) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{"voice_id": "mock-voice", "name": "Mock"},
	}, nil
}

// Calls returns the texts synthesized so far
func (m *MockTextToSpeech) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
