package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/adapters/llm"
	"github.com/satriahrh/studybuddy/adapters/mermaid"
	"github.com/satriahrh/studybuddy/adapters/stt"
	"github.com/satriahrh/studybuddy/adapters/tts"
	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/internal/api"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/config"
	"github.com/satriahrh/studybuddy/internal/media"
	"github.com/satriahrh/studybuddy/internal/metrics"
	"github.com/satriahrh/studybuddy/internal/pipeline"
	"github.com/satriahrh/studybuddy/internal/process"
	"github.com/satriahrh/studybuddy/internal/sweeper"
	"github.com/satriahrh/studybuddy/internal/websocket"
	"github.com/satriahrh/studybuddy/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		logger.Fatal("Failed to create audio directory", zap.Error(err))
	}

	m := metrics.New("studybuddy")

	// Initialize adapters
	languageModel := newLanguageModel(cfg, logger)
	textToSpeech := newTextToSpeech(cfg, logger)
	renderer := mermaid.NewHTTPRenderer(mermaid.NewRendererConfigFromEnv(), logger)

	var speechToText repositories.SpeechToText
	if cfg.GoogleCredsPath != "" {
		google, err := stt.NewGoogleSpeechToText(context.Background(), logger)
		if err != nil {
			logger.Warn("Google Speech unavailable, transcription disabled", zap.Error(err))
		} else {
			defer google.Close()
			speechToText = google
		}
	}

	// Media pipeline
	gateway := process.NewGateway(logger)
	tools := media.NewAudioTools(gateway, media.AudioToolsConfig{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
	}, logger, m)
	extractor := media.NewLipsyncExtractor(gateway, media.ExtractorConfig{BinaryPath: cfg.RhubarbPath}, logger, m)
	fallback := media.NewFallbackSynthesizer(tools, logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := extractor.SelfCheck(startupCtx); err != nil {
		logger.Warn("Lipsync extractor unavailable, every segment will use schematic lipsync", zap.Error(err))
	}
	if !tools.Available(startupCtx) {
		logger.Warn("ffmpeg is not available, audio conversion will fall back")
	}
	cancelStartup()

	contentCache, err := cache.NewContentCache(cfg.CacheDir, cfg.MaxCacheSize, logger, m)
	if err != nil {
		logger.Fatal("Failed to create content cache", zap.Error(err))
	}
	requestCache := cache.NewBoundedCache[[]entities.ReplySegment]("request", cfg.MaxCacheSize)
	responseCache := cache.NewBoundedCache[entities.ChatResponse]("response", cfg.MaxCacheSize)

	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{WorkDir: cfg.AudioDir},
		textToSpeech, tools, extractor, fallback, contentCache, logger, m)
	batcher := pipeline.NewBatcher(processor, pipeline.BatchConfig{}, logger)

	// Initialize usecase services
	chatService := usecase.NewChatService(languageModel, requestCache, usecase.ChatConfig{}, logger, m)
	diagramService := usecase.NewDiagramService(languageModel, renderer, usecase.DiagramConfig{UploadsDir: cfg.UploadsDir}, logger)
	conversationService := usecase.NewConversationService(
		chatService,
		diagramService,
		batcher,
		usecase.LoadPreloaded(cfg.AudioDir, logger),
		responseCache,
		usecase.ConversationConfig{
			UseResponseCache: cfg.UseResponseCache,
			HasCredentials:   cfg.HasCredentials(),
		},
		logger,
	)
	voiceService := usecase.NewVoiceService(textToSpeech, logger)
	transcriptionService := usecase.NewTranscriptionService(speechToText, tools, usecase.TranscriptionConfig{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		WhisperModelPath: cfg.WhisperModelPath,
		GoogleCredsPath:  cfg.GoogleCredsPath,
	}, logger)

	// Retention
	retention := sweeper.New(sweeper.Config{
		WorkingDir: cfg.AudioDir,
		CacheDir:   cfg.CacheDir,
		Interval:   cfg.SweepInterval,
	}, []sweeper.Trimmer{contentCache.Index(), requestCache, responseCache}, logger, m)
	retention.Start()

	// Initialize WebSocket hub with conversation service
	var transcriber websocket.Transcriber
	if speechToText != nil {
		transcriber = transcriptionService
	}
	hub := websocket.NewHub(conversationService, transcriber, logger)
	go hub.Run()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, api.Services{
		Conversation:  conversationService,
		Replier:       chatService,
		Diagrams:      diagramService,
		Voices:        voiceService,
		Transcription: transcriptionService,
		Metrics:       m.Handler(),
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("llmProvider", cfg.LLMProvider),
		zap.Bool("credentials", cfg.HasCredentials()),
		zap.Bool("lipsyncExtractor", extractor.Enabled()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	hub.Stop()
	retention.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLanguageModel(cfg config.Config, logger *zap.Logger) repositories.LargeLanguageModel {
	switch cfg.LLMProvider {
	case config.ProviderMock:
		logger.Info("Using mock language model")
		return llm.NewMockLLM()

	case config.ProviderGemini:
		gemini, err := llm.NewGeminiLLM(context.Background(), llm.NewGeminiConfigFromEnv(), logger)
		if err != nil {
			logger.Warn("Gemini unavailable, using mock language model", zap.Error(err))
			return llm.NewMockLLM()
		}
		return gemini

	default:
		openai, err := llm.NewOpenAILLM(llm.NewOpenAIConfigFromEnv(), logger)
		if err != nil {
			logger.Warn("Llama endpoint unavailable, using mock language model", zap.Error(err))
			return llm.NewMockLLM()
		}
		return openai
	}
}

func newTextToSpeech(cfg config.Config, logger *zap.Logger) repositories.TextToSpeech {
	if cfg.ElevenLabsAPIKey == "" {
		logger.Warn("ELEVEN_LABS_API_KEY not set, using mock text-to-speech")
		return tts.NewMockTextToSpeech(logger)
	}

	elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("ElevenLabs unavailable, using mock text-to-speech", zap.Error(err))
		return tts.NewMockTextToSpeech(logger)
	}
	return elevenLabs
}
