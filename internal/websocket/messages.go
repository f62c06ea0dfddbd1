package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/studybuddy/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeChat          MessageType = "chat"
	MessageTypeChatResponse  MessageType = "chat_response"
	MessageTypeTranscribe    MessageType = "transcribe"
	MessageTypeTranscription MessageType = "transcription"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ChatMessage is one user turn typed into the avatar UI
type ChatMessage struct {
	BaseMessage
	Message        string `json:"message"`
	RequestDiagram bool   `json:"requestDiagram"`
}

// ChatResponseMessage carries the avatar's answer to a ChatMessage
type ChatResponseMessage struct {
	BaseMessage
	Messages       []entities.ReplySegment `json:"messages"`
	MermaidDiagram *string                 `json:"mermaidDiagram"`
	Error          string                  `json:"error,omitempty"`
}

// TranscribeMessage carries recorded speech to be transcribed and answered
type TranscribeMessage struct {
	BaseMessage
	AudioData      string `json:"audio_data"` // base64 encoded
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	Language       string `json:"language,omitempty"`
	RequestDiagram bool   `json:"requestDiagram"`
}

// TranscriptionMessage echoes the recognized text before the chat response
type TranscriptionMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeChat:
		var msg ChatMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid chat message: %w", err)
		}
		stamp(&msg.BaseMessage)
		return &msg, nil

	case MessageTypeTranscribe:
		var msg TranscribeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcribe message: %w", err)
		}
		if err := v.validateTranscribe(&msg); err != nil {
			return nil, err
		}
		stamp(&msg.BaseMessage)
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		stamp(&msg.BaseMessage)
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateTranscribe validates transcribe message fields
func (v *MessageValidator) validateTranscribe(msg *TranscribeMessage) error {
	if msg.AudioData == "" {
		return fmt.Errorf("audio_data is required")
	}
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}

	validEncodings := map[string]bool{
		"": true, "WAV": true, "LINEAR16": true, "FLAC": true, "MULAW": true, "OGG_OPUS": true, "WEBM_OPUS": true,
	}
	if !validEncodings[strings.ToUpper(msg.Encoding)] {
		return fmt.Errorf("encoding must be one of: WAV, LINEAR16, FLAC, MULAW, OGG_OPUS, WEBM_OPUS")
	}

	return nil
}

func stamp(base *BaseMessage) {
	if base.Timestamp == "" {
		base.Timestamp = time.Now().Format(time.RFC3339)
	}
}

func newBase(t MessageType, messageID string) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: messageID,
	}
}

// CreateChatResponseMessage wraps a chat response for the socket
func CreateChatResponseMessage(messageID string, resp entities.ChatResponse, errText string) *ChatResponseMessage {
	return &ChatResponseMessage{
		BaseMessage:    newBase(MessageTypeChatResponse, messageID),
		Messages:       resp.Messages,
		MermaidDiagram: resp.MermaidDiagram,
		Error:          errText,
	}
}

// CreateTranscriptionMessage creates a transcription echo
func CreateTranscriptionMessage(messageID, text string) *TranscriptionMessage {
	return &TranscriptionMessage{
		BaseMessage: newBase(MessageTypeTranscription, messageID),
		Text:        text,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, ""),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong, ""),
		Data:        data,
	}
}
