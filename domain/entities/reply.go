package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxReplySegments caps how many segments a single model reply may produce
const MaxReplySegments = 3

// ErrMalformedReply is returned when model output cannot be turned into reply segments
var ErrMalformedReply = errors.New("malformed model reply")

type rawSegment struct {
	Text             *string `json:"text"`
	FacialExpression string  `json:"facialExpression"`
	Animation        string  `json:"animation"`
}

// ParseReplySegments converts the JSON content of a model reply into segments.
// Accepted shapes are {"messages": [...]}, a bare array, or a single segment object.
// Items without a string "text" field are dropped; at most MaxReplySegments are kept.
func ParseReplySegments(content string) ([]ReplySegment, error) {
	raw := bytes.TrimSpace([]byte(stripCodeFence(content)))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedReply)
	}

	if raw[0] == '{' {
		var envelope struct {
			Messages json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if len(envelope.Messages) > 0 && !bytes.Equal(envelope.Messages, []byte("null")) {
			raw = bytes.TrimSpace(envelope.Messages)
		}
	}

	var items []json.RawMessage
	switch {
	case len(raw) > 0 && raw[0] == '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
	case len(raw) > 0 && raw[0] == '{':
		items = []json.RawMessage{raw}
	default:
		return nil, fmt.Errorf("%w: unexpected JSON value", ErrMalformedReply)
	}

	segments := make([]ReplySegment, 0, MaxReplySegments)
	for _, item := range items {
		if len(segments) == MaxReplySegments {
			break
		}

		var rs rawSegment
		if err := json.Unmarshal(item, &rs); err != nil || rs.Text == nil {
			continue
		}

		segments = append(segments, ReplySegment{
			Text:             strings.TrimSpace(*rs.Text),
			FacialExpression: NormalizeExpression(rs.FacialExpression),
			Animation:        NormalizeAnimation(rs.Animation),
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no usable segments", ErrMalformedReply)
	}

	return segments, nil
}

// JoinSegmentText concatenates the non-blank text of all segments
func JoinSegmentText(segments []ReplySegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}
