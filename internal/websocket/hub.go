package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/domain/repositories"
	"github.com/satriahrh/studybuddy/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024 // recorded utterances arrive base64 encoded

	// Time allowed for one chat turn including media generation.
	turnTimeout = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Conversation answers chat turns
type Conversation interface {
	Chat(ctx context.Context, req usecase.ChatRequest) (entities.ChatResponse, error)
}

// Transcriber converts recorded speech to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error)
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	stopChan chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	conversation Conversation
	transcriber  Transcriber
	validator    *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. transcriber may be nil.
func NewHub(conversation Conversation, transcriber Transcriber, logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		stopChan:     make(chan struct{}),
		conversation: conversation,
		transcriber:  transcriber,
		validator:    NewMessageValidator(),
		logger:       logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.markClosed()
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-h.stopChan:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.cancel()
				client.markClosed()
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// Stop closes every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	id string

	// Cancelled when the connection closes so in-flight turns stop early
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("clientID", id)),
	}

	select {
	case client.hub.register <- client:
	case <-hub.stopChan:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.markClosed()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.reply(CreateErrorMessage("unsupported_frame", "Only text frames are accepted", ""))
			continue
		}

		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage validates a frame and dispatches it
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", "Message could not be processed", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *ChatMessage:
		go c.answer(m.MessageID, usecase.ChatRequest{Message: m.Message, RequestDiagram: m.RequestDiagram})
	case *TranscribeMessage:
		go c.transcribeAndAnswer(m)
	case *PingMessage:
		c.reply(CreatePongMessage(m.Data))
	}
}

func (c *Client) answer(messageID string, req usecase.ChatRequest) {
	ctx, cancel := context.WithTimeout(c.ctx, turnTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.hub.conversation.Chat(ctx, req)

	errText := ""
	if err != nil {
		c.logger.Error("Chat turn failed", zap.Error(err))
		errText = "Internal server error"
	}

	c.logger.Info("Chat turn answered",
		zap.Int("segments", len(resp.Messages)),
		zap.Duration("elapsed", time.Since(start)))
	c.reply(CreateChatResponseMessage(messageID, resp, errText))
}

func (c *Client) transcribeAndAnswer(m *TranscribeMessage) {
	if c.hub.transcriber == nil {
		c.reply(CreateErrorMessage("transcription_unavailable", "Transcription is not configured", ""))
		return
	}

	audio, err := base64.StdEncoding.DecodeString(m.AudioData)
	if err != nil {
		c.reply(CreateErrorMessage("invalid_audio", "audio_data must be base64", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, turnTimeout)
	defer cancel()

	text, err := c.hub.transcriber.Transcribe(ctx, audio, repositories.AudioConfig{
		SampleRate: m.SampleRate,
		Encoding:   m.Encoding,
		Language:   m.Language,
	})
	if err != nil {
		c.logger.Error("Transcription failed", zap.Error(err))
		c.reply(CreateErrorMessage("transcription_failed", "Could not transcribe audio", err.Error()))
		return
	}

	c.reply(CreateTranscriptionMessage(m.MessageID, text))
	c.answer(m.MessageID, usecase.ChatRequest{Message: text, RequestDiagram: m.RequestDiagram})
}

// reply queues a message for the write pump, dropping it if the client is gone or stalled
func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
