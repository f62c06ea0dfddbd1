package api

import "github.com/satriahrh/studybuddy/domain/entities"

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message        string `json:"message"`
	RequestDiagram bool   `json:"requestDiagram"`
}

// LlamaRequest is the body of POST /api/llama. Message is left untyped so
// non-string values can be rejected explicitly.
type LlamaRequest struct {
	Message interface{} `json:"message"`
}

// LlamaResponse carries the parsed reply segments without media
type LlamaResponse struct {
	Response []entities.ReplySegment `json:"response"`
}

// DiagramResponse is the body returned by POST /getMermaidDiagram
type DiagramResponse struct {
	Success     bool   `json:"success"`
	MermaidCode string `json:"mermaidCode,omitempty"`
	SVGContent  string `json:"svgContent,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TranscribeRequest is the body of POST /transcribe
type TranscribeRequest struct {
	Audio      string `json:"audio"` // base64 encoded
	SampleRate int    `json:"sampleRate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// TranscribeResponse carries the recognized text
type TranscribeResponse struct {
	Text string `json:"text"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
