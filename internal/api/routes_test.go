package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/studybuddy/adapters/llm"
	"github.com/satriahrh/studybuddy/adapters/mermaid"
	"github.com/satriahrh/studybuddy/adapters/stt"
	"github.com/satriahrh/studybuddy/adapters/tts"
	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/cache"
	"github.com/satriahrh/studybuddy/internal/metrics"
	"github.com/satriahrh/studybuddy/usecase"
)

type stubConversation struct {
	last usecase.ChatRequest
	err  error
}

func (s *stubConversation) Chat(ctx context.Context, req usecase.ChatRequest) (entities.ChatResponse, error) {
	s.last = req
	track := entities.PlaceholderTrack()
	return entities.ChatResponse{Messages: []entities.ReplySegment{{Text: "ok", Lipsync: &track}}}, s.err
}

type alwaysAvailable struct{}

func (alwaysAvailable) Available(ctx context.Context) bool { return true }

type testServer struct {
	echo         *echo.Echo
	conversation *stubConversation
	llm          *llm.MockLLM
	renderer     *mermaid.MockRenderer
	diagrams     *usecase.DiagramService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	model := llm.NewMockLLM()
	renderer := &mermaid.MockRenderer{}
	diagrams := usecase.NewDiagramService(model, renderer, usecase.DiagramConfig{UploadsDir: t.TempDir()}, logger)
	chat := usecase.NewChatService(model, cache.NewBoundedCache[[]entities.ReplySegment]("request", 10), usecase.ChatConfig{}, logger, nil)
	conversation := &stubConversation{}

	e := echo.New()
	InitRoutes(e, nil, Services{
		Conversation:  conversation,
		Replier:       chat,
		Diagrams:      diagrams,
		Voices:        usecase.NewVoiceService(tts.NewMockTextToSpeech(logger), logger),
		Transcription: usecase.NewTranscriptionService(stt.NewMockSpeechToText(logger), alwaysAvailable{}, usecase.TranscriptionConfig{OpenAIAPIKey: "sk"}, logger),
		Metrics:       metrics.New("test").Handler(),
	}, logger)

	return &testServer{echo: e, conversation: conversation, llm: model, renderer: renderer, diagrams: diagrams}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())

	rec = s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestChat(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/chat", `{"message":"Explain recursion","requestDiagram":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Explain recursion", s.conversation.last.Message)
	assert.True(t, s.conversation.last.RequestDiagram)

	body := decode(t, rec)
	assert.Len(t, body["messages"], 1)
	v, ok := body["mermaidDiagram"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestChat_EmptyBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/chat", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", s.conversation.last.Message)
}

func TestChat_FailureIsServerError(t *testing.T) {
	s := newTestServer(t)
	s.conversation.err = errors.New("boom")

	rec := s.do(http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, decode(t, rec)["messages"], 1)
}

func TestLlama(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/llama", `{"message":"Explain recursion"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body LlamaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Response, 2)
	assert.Empty(t, body.Response[0].Audio)
}

func TestLlama_InvalidMessage(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, `{"message":42}`, `{"message":["a"]}`} {
		rec := s.do(http.MethodPost, "/api/llama", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "non-empty string", body)
	}
	assert.Empty(t, s.llm.Requests())
}

func TestVoices(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/voices", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var voices []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voices))
	require.Len(t, voices, 1)
	assert.Equal(t, "mock-voice", voices[0]["voice_id"])
}

func TestGetMermaidDiagram(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/getMermaidDiagram", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body DiagramResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, usecase.InitialDiagram, body.MermaidCode)
	assert.Contains(t, body.SVGContent, "<svg")

	s.renderer.Err = errors.New("renderer down")
	rec = s.do(http.MethodPost, "/getMermaidDiagram", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body = DiagramResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "renderer down")
}

func TestCheckTranscriptionSetup(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/check-transcription-setup", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "configured", body["openai_api"])
	assert.Equal(t, "not configured", body["whisper_local"])
	assert.Equal(t, "installed", body["ffmpeg"])
	assert.Equal(t, true, body["transcription_available"])
}

func TestTranscribe(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/transcribe", `{"audio":"SGVsbG8=","encoding":"LINEAR16"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello", decode(t, rec)["text"])

	rec = s.do(http.MethodPost, "/transcribe", `{"audio":"***"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
