package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/repositories"
)

const (
	defaultOpenAIBaseURL = "https://api.groq.com/openai/v1/"
	defaultOpenAIModel   = "llama-3.3-70b-versatile"
	defaultHTTPTimeout   = 30 * time.Second
)

// OpenAIConfig configures any OpenAI compatible chat completion endpoint (Groq by default)
// Required fields:
// - APIKey: provider API key
// Optional fields with defaults:
// - BaseURL: API base URL (default: "https://api.groq.com/openai/v1/"); a full
//   ".../chat/completions" URL is accepted and trimmed
// - Model: model id (default: "llama-3.3-70b-versatile")
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAILLM implements LargeLanguageModel over the chat completions API
type OpenAILLM struct {
	client oai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	return nil
}

// NewOpenAIConfigFromEnv reads LLAMA_API_KEY, LLAMA_API_URL and LLAMA_MODEL
func NewOpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  os.Getenv("LLAMA_API_KEY"),
		BaseURL: os.Getenv("LLAMA_API_URL"),
		Model:   os.Getenv("LLAMA_MODEL"),
	}
}

// NewOpenAILLM creates a chat completion client
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	baseURL := normalizeBaseURL(config.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
		logger.Info("Using default LLM base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}

	client := oai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout}),
		option.WithMaxRetries(0),
	)

	return &OpenAILLM{client: client, model: model, logger: logger}, nil
}

// Complete implements repositories.LargeLanguageModel
func (o *OpenAILLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	params := o.buildParams(req)

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in chat completion response")
	}

	content := resp.Choices[0].Message.Content
	o.logger.Debug("Chat completion received",
		zap.String("model", o.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("totalTokens", resp.Usage.TotalTokens))

	return content, nil
}

func (o *OpenAILLM) buildParams(req repositories.CompletionRequest) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, oai.UserMessage(req.UserMessage))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.model),
		Messages: messages,
	}

	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = param.NewOpt(req.TopP)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = param.NewOpt(req.FrequencyPenalty)
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = param.NewOpt(req.PresencePenalty)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	switch req.Format {
	case repositories.ResponseFormatJSON:
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	case repositories.ResponseFormatText:
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfText: &shared.ResponseFormatTextParam{},
		}
	}

	return params
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, "/chat/completions")
	return raw + "/"
}
