package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/metrics"
)

const tutorPrompt = `You are a highly knowledgeable and friendly Virtual Tutor, helping students prepare for their exams.
You provide step-by-step explanations, breaking down complex concepts with simple analogies and examples.
You act like a real tutor, engaging with the student rather than just reading text.

- **JSON Output Format:**
Always return a JSON object {"messages": [...]} with **a maximum of 3 messages**.
Each message includes:
- text: (A detailed, engaging explanation)
- facialExpression: one of smile, sad, angry, surprised, funnyFace, default.
- animation: one of talking_0, talking_1, talking_2, idle, laughing_slowly, silly_dance, telling_secret.`

// Default sampling parameters for tutor replies
const (
	DefaultReplyTemperature      = 0.7
	DefaultReplyMaxTokens        = 2048
	DefaultReplyTopP             = 0.9
	DefaultReplyFrequencyPenalty = 0.2
	DefaultReplyPresencePenalty  = 0.4
	DefaultReplyTimeout          = 7 * time.Second
)

// ChatConfig holds configuration for tutor replies
type ChatConfig struct {
	Timeout time.Duration
}

// ChatService turns a user message into tutor reply segments
type ChatService struct {
	llm      repositories.LargeLanguageModel
	requests *cache.BoundedCache[[]entities.ReplySegment]
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewChatService creates a new chat service. Replies are memoized in requests.
func NewChatService(
	llm repositories.LargeLanguageModel,
	requests *cache.BoundedCache[[]entities.ReplySegment],
	config ChatConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ChatService {
	if config.Timeout <= 0 {
		config.Timeout = DefaultReplyTimeout
	}

	return &ChatService{
		llm:      llm,
		requests: requests,
		timeout:  config.Timeout,
		logger:   logger,
		metrics:  m,
	}
}

// Reply returns at most entities.MaxReplySegments segments for message.
// It never fails: unusable output becomes a cached apology, transport errors an uncached one.
func (s *ChatService) Reply(ctx context.Context, message string) []entities.ReplySegment {
	key := cache.RequestKey(message)
	if cached, ok := s.requests.Get(key); ok {
		s.metrics.LLMRequest("cached")
		return entities.CloneSegments(cached)
	}

	userMessage := message
	if userMessage == "" {
		userMessage = "Hello"
	}

	content, err := s.llm.Complete(ctx, repositories.CompletionRequest{
		SystemPrompt:     tutorPrompt,
		UserMessage:      userMessage,
		Temperature:      DefaultReplyTemperature,
		TopP:             DefaultReplyTopP,
		FrequencyPenalty: DefaultReplyFrequencyPenalty,
		PresencePenalty:  DefaultReplyPresencePenalty,
		MaxTokens:        DefaultReplyMaxTokens,
		Format:           repositories.ResponseFormatJSON,
		Timeout:          s.timeout,
	})
	if err != nil {
		s.logger.Error("Language model request failed", zap.Error(err))
		s.metrics.LLMRequest("error")
		return []entities.ReplySegment{connectionTrouble()}
	}

	segments, err := entities.ParseReplySegments(content)
	if err != nil {
		s.logger.Error("Failed to parse language model reply",
			zap.Error(err),
			zap.Int("contentLength", len(content)))
		s.metrics.LLMRequest("malformed")
		segments = []entities.ReplySegment{understandingTrouble()}
	} else {
		s.metrics.LLMRequest("ok")
	}

	s.requests.Set(key, entities.CloneSegments(segments))
	return segments
}

func understandingTrouble() entities.ReplySegment {
	return entities.ReplySegment{
		Text:             "I'm having trouble understanding right now. Could you ask me something else?",
		FacialExpression: entities.ExpressionSad,
		Animation:        entities.AnimationIdle,
	}
}

func connectionTrouble() entities.ReplySegment {
	return entities.ReplySegment{
		Text:             "I'm having trouble connecting right now. Could you try again?",
		FacialExpression: entities.ExpressionSad,
		Animation:        entities.AnimationIdle,
	}
}
