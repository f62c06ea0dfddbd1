package repositories

import "context"

// TextToSpeech abstracts text-to-speech services
type TextToSpeech interface {
	// SynthesizeToFile renders text as audio and writes it to path
	SynthesizeToFile(ctx context.Context, text, path string) error
	// Voices lists the voices offered by the provider
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice is a provider voice description passed through to the frontend
type Voice map[string]interface{}
