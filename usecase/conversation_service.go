package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/cache"
)

// SegmentBatcher runs the media pipeline over a whole reply
type SegmentBatcher interface {
	ProcessAll(ctx context.Context, segments []entities.ReplySegment, sessionID string) []entities.ReplySegment
}

// ChatRequest is one user turn
type ChatRequest struct {
	Message        string
	RequestDiagram bool
}

// ConversationConfig holds configuration for the conversation service
type ConversationConfig struct {
	UseResponseCache bool
	HasCredentials   bool
}

// ConversationService orchestrates the conversation flow
type ConversationService struct {
	chat      *ChatService
	diagrams  *DiagramService
	batcher   SegmentBatcher
	preloaded *Preloaded
	responses *cache.BoundedCache[entities.ChatResponse]
	config    ConversationConfig
	logger    *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	chat *ChatService,
	diagrams *DiagramService,
	batcher SegmentBatcher,
	preloaded *Preloaded,
	responses *cache.BoundedCache[entities.ChatResponse],
	config ConversationConfig,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		chat:      chat,
		diagrams:  diagrams,
		batcher:   batcher,
		preloaded: preloaded,
		responses: responses,
		config:    config,
		logger:    logger,
	}
}

// Chat answers a user turn. On error the returned response is the preloaded failure bundle.
func (s *ConversationService) Chat(ctx context.Context, req ChatRequest) (resp entities.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while answering chat", zap.Any("panic", r))
			resp = s.preloaded.Failure()
			err = fmt.Errorf("failed to answer chat: %v", r)
		}
	}()

	message := strings.TrimSpace(req.Message)
	key := responseKey(message, req.RequestDiagram)

	if s.config.UseResponseCache {
		if cached, ok := s.responses.Get(key); ok {
			s.logger.Debug("Serving cached chat response", zap.String("key", key))
			return cloneResponse(cached), nil
		}
	}

	if message == "" {
		return s.preloaded.Greeting(), nil
	}

	if !s.config.HasCredentials {
		s.logger.Warn("Provider credentials are missing, serving API key reminder")
		return s.preloaded.APIWarning(), nil
	}

	sessionID := uuid.NewString()
	logger := s.logger.With(zap.String("sessionID", sessionID))

	segments := s.chat.Reply(ctx, message)
	logger.Info("Received tutor reply", zap.Int("segments", len(segments)))

	var (
		processed []entities.ReplySegment
		diagram   *string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		processed = s.batcher.ProcessAll(gctx, segments, sessionID)
		return nil
	})
	if req.RequestDiagram || WantsDiagram(message) {
		g.Go(func() error {
			code := s.diagrams.Generate(gctx, entities.JoinSegmentText(segments))
			diagram = &code
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Error("Chat request cancelled", zap.Error(err))
		return s.preloaded.Failure(), fmt.Errorf("failed to answer chat: %w", err)
	}

	for i := range processed {
		processed[i] = finalizeSegment(processed[i])
	}

	resp = entities.ChatResponse{Messages: processed, MermaidDiagram: diagram}
	if s.config.UseResponseCache {
		s.responses.Set(key, cloneResponse(resp))
	}
	return resp, nil
}

// finalizeSegment guarantees every outgoing segment has a playable track and a string audio field
func finalizeSegment(segment entities.ReplySegment) entities.ReplySegment {
	if segment.Lipsync == nil || segment.Lipsync.Validate() != nil {
		track := entities.FallbackTrack(finalDuration(segment.Text))
		segment.Lipsync = &track
	}
	return segment
}

// finalDuration treats missing text as ten characters
func finalDuration(text string) float64 {
	if text == "" {
		text = strings.Repeat(" ", 10)
	}
	return entities.EstimateDuration(text)
}

// responseKey keeps diagram requests apart from plain ones for the same message
func responseKey(message string, requestDiagram bool) string {
	if requestDiagram {
		return cache.RequestKey(message + "|diagram")
	}
	return cache.RequestKey(message)
}

func cloneResponse(resp entities.ChatResponse) entities.ChatResponse {
	out := entities.ChatResponse{Messages: entities.CloneSegments(resp.Messages)}
	if resp.MermaidDiagram != nil {
		code := *resp.MermaidDiagram
		out.MermaidDiagram = &code
	}
	return out
}
