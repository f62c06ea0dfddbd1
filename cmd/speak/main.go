// Command speak runs one sentence through the media pipeline and writes the
// resulting audio and lipsync next to each other.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/adapters/tts"
	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/config"
	"github.com/satriahrh/studybuddy/internal/media"
	"github.com/satriahrh/studybuddy/internal/pipeline"
	"github.com/satriahrh/studybuddy/internal/process"
)

func main() {
	godotenv.Load()

	text := flag.String("text", "Recursion is when a function calls itself on a smaller piece of the problem.", "text to speak")
	out := flag.String("out", "speak_output", "output path without extension")
	play := flag.Bool("play", os.Getenv("NO_AUTOPLAY") != "true", "play the audio when done")
	showVoices := flag.Bool("voices", os.Getenv("SHOW_VOICES") == "true", "list provider voices")
	flag.Parse()

	// Create logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var speech repositories.TextToSpeech = tts.NewMockTextToSpeech(logger)
	if cfg.ElevenLabsAPIKey != "" {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to create TTS service", zap.Error(err))
		}
		speech = elevenLabs
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, using mock text-to-speech")
	}

	workDir, err := os.MkdirTemp("", "speak-")
	if err != nil {
		logger.Fatal("Failed to create work directory", zap.Error(err))
	}
	defer os.RemoveAll(workDir)

	gateway := process.NewGateway(logger)
	tools := media.NewAudioTools(gateway, media.AudioToolsConfig{FFmpegPath: cfg.FFmpegPath, FFprobePath: cfg.FFprobePath}, logger, nil)
	extractor := media.NewLipsyncExtractor(gateway, media.ExtractorConfig{BinaryPath: cfg.RhubarbPath}, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := extractor.SelfCheck(ctx); err != nil {
		logger.Warn("Lipsync extractor unavailable, using schematic lipsync", zap.Error(err))
	}

	contentCache, err := cache.NewContentCache(filepath.Join(workDir, "cache"), 1, logger, nil)
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}

	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{WorkDir: workDir},
		speech, tools, extractor, media.NewFallbackSynthesizer(tools, logger), contentCache, logger, nil)

	logger.Info("Speaking", zap.String("text", *text))
	segment := processor.Process(ctx, entities.ReplySegment{
		Text:             *text,
		FacialExpression: entities.ExpressionSmile,
		Animation:        entities.AnimationTalking0,
	}, "speak", 0)

	audioPath, err := writeSegment(*out, segment)
	if err != nil {
		logger.Fatal("Failed to write output", zap.Error(err))
	}

	fmt.Printf("Audio: %s\nLipsync: %s.json (%d cues, %.2fs)\n",
		audioPath, *out, len(segment.Lipsync.MouthCues), segment.Lipsync.Duration())

	if *play && audioPath != "" {
		if err := playAudioFile(audioPath, logger); err != nil {
			logger.Warn("Failed to play audio automatically", zap.Error(err))
		}
	}

	if *showVoices {
		voices, err := speech.Voices(ctx)
		if err != nil {
			logger.Warn("Failed to get available voices", zap.Error(err))
			return
		}
		fmt.Printf("\nAvailable voices (%d):\n", len(voices))
		for i, voice := range voices {
			if i >= 10 {
				fmt.Printf("... and %d more voices\n", len(voices)-10)
				break
			}
			fmt.Printf("  - %v (ID: %v)\n", voice["name"], voice["voice_id"])
		}
	}
}

func writeSegment(base string, segment entities.ReplySegment) (string, error) {
	track, err := json.MarshalIndent(segment.Lipsync, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lipsync: %w", err)
	}
	if err := os.WriteFile(base+".json", track, 0o644); err != nil {
		return "", fmt.Errorf("failed to write lipsync: %w", err)
	}

	if segment.Audio == "" {
		return "", nil
	}
	audio, err := base64.StdEncoding.DecodeString(segment.Audio)
	if err != nil {
		return "", fmt.Errorf("failed to decode audio: %w", err)
	}
	audioPath := base + ".mp3"
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return audioPath, nil
}

// playAudioFile tries the first available mp3 player
func playAudioFile(filename string, logger *zap.Logger) error {
	players := [][]string{
		{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		{"mpg123", "-q"},
		{"afplay"},
	}

	for _, player := range players {
		if _, err := exec.LookPath(player[0]); err != nil {
			continue
		}
		args := append(player[1:], filename)
		logger.Info("Attempting to play audio", zap.String("player", player[0]), zap.Strings("args", args))
		if err := exec.Command(player[0], args...).Run(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no suitable audio player found")
}
