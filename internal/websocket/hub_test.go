package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/usecase"
)

// MockConversation records chat requests and answers with a single segment
type MockConversation struct {
	mu       sync.Mutex
	requests []usecase.ChatRequest
	err      error
}

func (m *MockConversation) Chat(ctx context.Context, req usecase.ChatRequest) (entities.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	track := entities.PlaceholderTrack()
	resp := entities.ChatResponse{Messages: []entities.ReplySegment{{
		Text:             "echo: " + req.Message,
		FacialExpression: entities.ExpressionSmile,
		Animation:        entities.AnimationTalking0,
		Lipsync:          &track,
	}}}
	if req.RequestDiagram {
		code := "graph TD\n A --> B"
		resp.MermaidDiagram = &code
	}
	return resp, m.err
}

func (m *MockConversation) Requests() []usecase.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]usecase.ChatRequest(nil), m.requests...)
}

type MockTranscriber struct{}

func (MockTranscriber) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	if string(audio) == "fail" {
		return "", errors.New("recognizer offline")
	}
	return "Explain recursion", nil
}

func setupTestServer(t *testing.T, conversation Conversation, transcriber Transcriber) (*Hub, string) {
	t.Helper()
	logger := zap.NewNop()

	hub := NewHub(conversation, transcriber, logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, logger)
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame), "frame %s", data)
	return frame
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(&MockConversation{}, nil, zap.NewNop())

	require.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ChatRoundTrip(t *testing.T) {
	conversation := &MockConversation{}
	_, url := setupTestServer(t, conversation, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":           "chat",
		"message_id":     "m-1",
		"message":        "Explain recursion",
		"requestDiagram": true,
	}))

	frame := readFrame(t, conn)
	require.Equal(t, string(MessageTypeChatResponse), frame["type"])
	assert.Equal(t, "m-1", frame["message_id"])
	assert.NotNil(t, frame["mermaidDiagram"], "diagram was requested")

	messages, ok := frame["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "echo: Explain recursion", first["text"])

	reqs := conversation.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].RequestDiagram)
}

func TestHub_ChatFailureCarriesError(t *testing.T) {
	_, url := setupTestServer(t, &MockConversation{err: errors.New("boom")}, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "chat", "message": "hi"}))

	frame := readFrame(t, conn)
	assert.NotEmpty(t, frame["error"])
	assert.IsType(t, []interface{}{}, frame["messages"])
}

func TestHub_PingPong(t *testing.T) {
	_, url := setupTestServer(t, &MockConversation{}, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ping", "data": "hello"}))

	frame := readFrame(t, conn)
	assert.Equal(t, string(MessageTypePong), frame["type"])
	assert.Equal(t, "hello", frame["data"])
}

func TestHub_InvalidMessage(t *testing.T) {
	_, url := setupTestServer(t, &MockConversation{}, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))

	frame := readFrame(t, conn)
	assert.Equal(t, string(MessageTypeError), frame["type"])
	assert.Equal(t, "invalid_message", frame["error_code"])
}

func TestHub_TranscribeThenAnswer(t *testing.T) {
	conversation := &MockConversation{}
	_, url := setupTestServer(t, conversation, MockTranscriber{})
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":        "transcribe",
		"audio_data":  base64.StdEncoding.EncodeToString([]byte("pcm bytes")),
		"sample_rate": 16000,
		"encoding":    "LINEAR16",
	}))

	transcription := readFrame(t, conn)
	assert.Equal(t, string(MessageTypeTranscription), transcription["type"])
	assert.Equal(t, "Explain recursion", transcription["text"])

	answer := readFrame(t, conn)
	assert.Equal(t, string(MessageTypeChatResponse), answer["type"])
}

func TestHub_TranscribeUnavailable(t *testing.T) {
	_, url := setupTestServer(t, &MockConversation{}, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":       "transcribe",
		"audio_data": base64.StdEncoding.EncodeToString([]byte("pcm bytes")),
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "transcription_unavailable", frame["error_code"])
}

func TestHub_ClientLifecycle(t *testing.T) {
	hub, url := setupTestServer(t, &MockConversation{}, nil)
	conn := dial(t, url)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub, url := setupTestServer(t, &MockConversation{}, nil)
	conn := dial(t, url)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Stop()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection should be closed after Stop")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}
