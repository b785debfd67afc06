package domain

import (
	"encoding/json"
	"strings"
)

// MessagePart is an atomic unit of message content.
type MessagePart struct {
	ContentType string          `json:"content_type,omitempty"` // defaults to text/plain
	Content     string          `json:"content,omitempty"`
	ContentURL  string          `json:"content_url,omitempty"`
	Name        string          `json:"name,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// IsText reports whether the part carries plain text.
func (p MessagePart) IsText() bool {
	return p.ContentType == "" || p.ContentType == ContentTypeText
}

// Message is an ordered sequence of parts exchanged between an agent and
// an external party.
type Message struct {
	Role  string        `json:"role"`
	Parts []MessagePart `json:"parts"`
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:  role,
		Parts: []MessagePart{{ContentType: ContentTypeText, Content: text}},
	}
}

// Text concatenates the content of all text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.IsText() {
			b.WriteString(p.Content)
		}
	}
	return b.String()
}

// IsEmpty reports whether the message has no parts.
func (m Message) IsEmpty() bool {
	return len(m.Parts) == 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := Message{Role: m.Role}
	if m.Parts != nil {
		out.Parts = make([]MessagePart, len(m.Parts))
		for i, p := range m.Parts {
			if p.Metadata != nil {
				p.Metadata = append(json.RawMessage(nil), p.Metadata...)
			}
			out.Parts[i] = p
		}
	}
	return out
}

// CloneMessages deep-copies a slice of messages.
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
