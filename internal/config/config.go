package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM providers
const (
	ProviderLlama  = "llama"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Config holds process level settings. Adapter specific settings are read by
// each adapter's New<X>ConfigFromEnv helper.
type Config struct {
	Port string

	LLMProvider string

	AudioDir   string
	CacheDir   string
	UploadsDir string

	FFmpegPath  string
	FFprobePath string
	RhubarbPath string

	MaxCacheSize     int
	UseResponseCache bool
	SweepInterval    time.Duration

	// Credentials whose presence changes behavior, not just adapter wiring
	LlamaAPIKey      string
	GeminiAPIKey     string
	ElevenLabsAPIKey string

	// Reported by the transcription setup probe
	OpenAIAPIKey     string
	WhisperModelPath string
	GoogleCredsPath  string
}

// Load reads an optional .env file and then the environment
func Load() (Config, error) {
	// A missing .env file is normal in production
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment, applying defaults
func FromEnv() (Config, error) {
	cfg := Config{
		Port:             getEnv("PORT", "3000"),
		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", ProviderLlama)),
		AudioDir:         getEnv("AUDIO_DIR", "audios"),
		CacheDir:         getEnv("CACHE_DIR", "cache"),
		UploadsDir:       getEnv("UPLOADS_DIR", "uploads"),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		RhubarbPath:      getEnv("RHUBARB_PATH", "./bin/rhubarb"),
		LlamaAPIKey:      os.Getenv("LLAMA_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVEN_LABS_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		WhisperModelPath: os.Getenv("WHISPER_MODEL_PATH"),
		GoogleCredsPath:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}

	var err error
	if cfg.MaxCacheSize, err = getInt("MAX_CACHE_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.UseResponseCache, err = getBool("USE_RESPONSE_CACHE", false); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderLlama, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("MAX_CACHE_SIZE must be positive, got %d", c.MaxCacheSize)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

// HasCredentials reports whether both the language model and speech provider keys are present
func (c Config) HasCredentials() bool {
	if c.ElevenLabsAPIKey == "" {
		return false
	}
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	case ProviderMock:
		return true
	default:
		return c.LlamaAPIKey != ""
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
