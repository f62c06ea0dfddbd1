package usecase

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/studybuddy/adapters/llm"
	"github.com/satriahrh/studybuddy/adapters/mermaid"
	"github.com/satriahrh/studybuddy/adapters/tts"
	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/media"
	"github.com/satriahrh/studybuddy/internal/pipeline"
	"github.com/satriahrh/studybuddy/internal/process/processtest"
)

type conversationHarness struct {
	service   *ConversationService
	llm       *llm.MockLLM
	tts       *tts.MockTextToSpeech
	runner    *processtest.Runner
	responses *cache.BoundedCache[entities.ChatResponse]
	audioDir  string
}

func newConversationHarness(t *testing.T, config ConversationConfig) *conversationHarness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	root := t.TempDir()
	audioDir := filepath.Join(root, "audios")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))

	contentCache, err := cache.NewContentCache(filepath.Join(root, "cache"), 100, logger, nil)
	require.NoError(t, err)

	runner := &processtest.Runner{}
	tools := media.NewAudioTools(runner, media.AudioToolsConfig{}, logger, nil)
	extractor := media.NewLipsyncExtractor(runner, media.ExtractorConfig{BinaryPath: "rhubarb"}, logger, nil)
	fallback := media.NewFallbackSynthesizer(tools, logger)
	speech := tts.NewMockTextToSpeech(logger)
	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{WorkDir: audioDir}, speech, tools, extractor, fallback, contentCache, logger, nil)
	batcher := pipeline.NewBatcher(processor, pipeline.BatchConfig{GroupPause: -1}, logger)

	model := llm.NewMockLLM()
	chat := NewChatService(model, cache.NewBoundedCache[[]entities.ReplySegment]("request", 100), ChatConfig{}, logger, nil)
	diagrams := NewDiagramService(model, &mermaid.MockRenderer{}, DiagramConfig{UploadsDir: filepath.Join(root, "uploads")}, logger)
	responses := cache.NewBoundedCache[entities.ChatResponse]("response", 100)

	return &conversationHarness{
		service:   NewConversationService(chat, diagrams, batcher, LoadPreloaded(audioDir, logger), responses, config, logger),
		llm:       model,
		tts:       speech,
		runner:    runner,
		responses: responses,
		audioDir:  audioDir,
	}
}

func TestConversationService_EmptyMessageIsGreeting(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true})

	resp, err := h.service.Chat(context.Background(), ChatRequest{Message: "  "})
	require.NoError(t, err)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Hey dear... How was your day?", resp.Messages[0].Text)
	assert.Nil(t, resp.MermaidDiagram)
	assert.Empty(t, h.llm.Requests())
	assert.Empty(t, h.tts.Calls())
	assert.Empty(t, h.runner.Calls())
}

func TestConversationService_MissingCredentialsIsWarning(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{})

	resp, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)

	require.Len(t, resp.Messages, 2)
	assert.Contains(t, resp.Messages[0].Text, "API keys")
	assert.Equal(t, entities.ExpressionAngry, resp.Messages[0].FacialExpression)
	assert.Equal(t, entities.AnimationLaughingSlowly, resp.Messages[1].Animation)
	assert.Empty(t, h.llm.Requests())
	for _, m := range resp.Messages {
		require.NotNil(t, m.Lipsync)
		assert.NoError(t, m.Lipsync.Validate())
	}
}

func TestConversationService_ExplainRecursion(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true})

	resp, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Messages)
	assert.LessOrEqual(t, len(resp.Messages), entities.MaxReplySegments)
	for _, m := range resp.Messages {
		audio, err := base64.StdEncoding.DecodeString(m.Audio)
		require.NoError(t, err)
		assert.NotEmpty(t, audio)
		require.NotNil(t, m.Lipsync)
		assert.NoError(t, m.Lipsync.Validate())
	}
	assert.Nil(t, resp.MermaidDiagram, "no diagram without keyword or flag")
	assert.Len(t, h.tts.Calls(), len(resp.Messages))
}

func TestConversationService_DiagramOnKeywordOrFlag(t *testing.T) {
	tests := []struct {
		name string
		req  ChatRequest
	}{
		{"keyword", ChatRequest{Message: "Draw a diagram of recursion"}},
		{"flag", ChatRequest{Message: "Explain recursion", RequestDiagram: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newConversationHarness(t, ConversationConfig{HasCredentials: true})

			resp, err := h.service.Chat(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, resp.MermaidDiagram)
			assert.Contains(t, *resp.MermaidDiagram, "graph TD")
		})
	}
}

func TestConversationService_ToolFailureStillPlayable(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true})
	h.runner.FailConvert = assert.AnError
	h.runner.FailExtract = assert.AnError

	resp, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)

	for _, m := range resp.Messages {
		require.NotNil(t, m.Lipsync)
		assert.Len(t, m.Lipsync.MouthCues, 4)
	}
}

func TestConversationService_ResponseCache(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true, UseResponseCache: true})

	first, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.responses.Len())

	ttsCalls := len(h.tts.Calls())
	second, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.tts.Calls(), ttsCalls)
	assert.Len(t, h.llm.Requests(), 1)
}

func TestConversationService_ResponseCacheHonorsDiagramFlag(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true, UseResponseCache: true})

	plain, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)
	assert.Nil(t, plain.MermaidDiagram)

	withDiagram, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion", RequestDiagram: true})
	require.NoError(t, err)
	require.NotNil(t, withDiagram.MermaidDiagram)
	assert.Contains(t, *withDiagram.MermaidDiagram, "graph TD")
	assert.Equal(t, 2, h.responses.Len())

	again, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion", RequestDiagram: true})
	require.NoError(t, err)
	assert.Equal(t, withDiagram, again)

	plainAgain, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)
	assert.Nil(t, plainAgain.MermaidDiagram)
}

func TestConversationService_ResponseCacheOffByDefault(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true})

	_, err := h.service.Chat(context.Background(), ChatRequest{Message: "Explain recursion"})
	require.NoError(t, err)
	assert.Equal(t, 0, h.responses.Len())
}

func TestConversationService_CancelledContextIsFailure(t *testing.T) {
	h := newConversationHarness(t, ConversationConfig{HasCredentials: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := h.service.Chat(ctx, ChatRequest{Message: "Explain recursion"})
	require.Error(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Contains(t, resp.Messages[0].Text, "error connecting to my brain")
}

func TestFinalizeSegment(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		duration float64
	}{
		{"missing text", "", 3},
		{"short text", "Hi", 3},
		{"long text", string(make([]byte, 500)), 10},
		{"medium text", string(make([]byte, 100)), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := finalizeSegment(entities.ReplySegment{Text: tt.text})
			require.NotNil(t, out.Lipsync)
			require.Len(t, out.Lipsync.MouthCues, 4)
			assert.InDelta(t, tt.duration, out.Lipsync.Duration(), 1e-9)
		})
	}

	valid := entities.PlaceholderTrack()
	kept := finalizeSegment(entities.ReplySegment{Text: "x", Lipsync: &valid})
	assert.Same(t, &valid, kept.Lipsync)
}

func TestLoadPreloaded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro_0.wav"), processtest.WavHeader, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro_0.json"), []byte(processtest.CuesJSON), 0o644))

	p := LoadPreloaded(dir, zaptest.NewLogger(t))

	greeting := p.Greeting().Messages
	require.Len(t, greeting, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(processtest.WavHeader), greeting[0].Audio)
	assert.Len(t, greeting[0].Lipsync.MouthCues, 2)

	warning := p.APIWarning().Messages
	require.Len(t, warning, 2)
	for _, m := range warning {
		assert.Empty(t, m.Audio)
		assert.Len(t, m.Lipsync.MouthCues, 4)
	}

	failure := p.Failure().Messages
	require.Len(t, failure, 1)
	assert.Equal(t, entities.AnimationSillyDance, failure[0].Animation)
}
