package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/internal/websocket"
	"github.com/satriahrh/studybuddy/usecase"
)

// Conversation answers full chat turns
type Conversation interface {
	Chat(ctx context.Context, req usecase.ChatRequest) (entities.ChatResponse, error)
}

// Replier returns tutor reply segments without media
type Replier interface {
	Reply(ctx context.Context, message string) []entities.ReplySegment
}

// DiagramRenderer renders the current diagram
type DiagramRenderer interface {
	RenderCurrent(ctx context.Context) (usecase.RenderedDiagram, error)
}

// VoiceLister lists provider voices
type VoiceLister interface {
	Voices(ctx context.Context) ([]repositories.Voice, error)
}

// Transcription reports setup status and transcribes speech
type Transcription interface {
	CheckSetup(ctx context.Context) usecase.SetupStatus
	Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error)
}

// Services bundles the handlers' dependencies
type Services struct {
	Conversation  Conversation
	Replier       Replier
	Diagrams      DiagramRenderer
	Voices        VoiceLister
	Transcription Transcription
	Metrics       http.Handler
}

type handlers struct {
	svc    Services
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, svc Services, logger *zap.Logger) {
	h := &handlers{svc: svc, logger: logger}

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Hello World!")
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "studybuddy-server",
		})
	})

	if svc.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(svc.Metrics))
	}

	e.POST("/chat", h.chat)
	e.POST("/api/llama", h.llama)
	e.GET("/voices", h.voices)
	e.POST("/getMermaidDiagram", h.mermaidDiagram)
	e.GET("/check-transcription-setup", h.transcriptionSetup)
	e.POST("/transcribe", h.transcribe)

	if hub != nil {
		e.GET("/ws", func(c echo.Context) error {
			return websocket.HandleWebSocket(hub, c, logger)
		})
	}
}

func (h *handlers) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	resp, err := h.svc.Conversation.Chat(c.Request().Context(), usecase.ChatRequest{
		Message:        req.Message,
		RequestDiagram: req.RequestDiagram,
	})
	if err != nil {
		h.logger.Error("Failed to answer chat", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, resp)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) llama(c echo.Context) error {
	var req LlamaRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	message, ok := req.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_message",
			Message: "Invalid message. Please provide a non-empty string.",
		})
	}

	return c.JSON(http.StatusOK, LlamaResponse{
		Response: h.svc.Replier.Reply(c.Request().Context(), message),
	})
}

func (h *handlers) voices(c echo.Context) error {
	voices, err := h.svc.Voices.Voices(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to fetch voices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "voices_unavailable",
			Message: "Failed to fetch voices",
		})
	}
	return c.JSON(http.StatusOK, voices)
}

func (h *handlers) mermaidDiagram(c echo.Context) error {
	diagram, err := h.svc.Diagrams.RenderCurrent(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to render Mermaid diagram", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, DiagramResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, DiagramResponse{
		Success:     true,
		MermaidCode: diagram.Code,
		SVGContent:  diagram.SVG,
	})
}

func (h *handlers) transcriptionSetup(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Transcription.CheckSetup(c.Request().Context()))
}

func (h *handlers) transcribe(c echo.Context) error {
	var req TranscribeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil || len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_audio",
			Message: "audio must be non-empty base64",
		})
	}

	h.logger.Info("Transcription request received", zap.Int("bytes", len(audio)))

	text, err := h.svc.Transcription.Transcribe(c.Request().Context(), audio, repositories.AudioConfig{
		SampleRate: req.SampleRate,
		Encoding:   req.Encoding,
		Language:   req.Language,
	})
	if errors.Is(err, usecase.ErrTranscriptionUnavailable) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "transcription_unavailable",
			Message: "Transcription is not configured",
		})
	}
	if err != nil {
		h.logger.Error("Failed to transcribe audio", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "transcription_failed",
			Message: "Failed to transcribe audio",
		})
	}

	return c.JSON(http.StatusOK, TranscribeResponse{Text: text})
}
