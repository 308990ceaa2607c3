// Package line provides the LINE Messaging API client, the inbound webhook
// event model and request signature verification.
package line

import (
	"encoding/json"
	"fmt"
)

// Event and message type discriminators used by the webhook payload.
const (
	EventTypeFollow  = "follow"
	EventTypeMessage = "message"

	MessageTypeText = "text"

	SourceTypeUser  = "user"
	SourceTypeGroup = "group"
	SourceTypeRoom  = "room"
)

// WebhookBody is the envelope delivered to the webhook endpoint.
type WebhookBody struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is a single inbound webhook event. Only follow and text-message
// events carry routing semantics; everything else is skipped upstream.
type Event struct {
	Type           string          `json:"type"`
	WebhookEventID string          `json:"webhookEventId,omitempty"`
	ReplyToken     string          `json:"replyToken,omitempty"`
	Source         Source          `json:"source"`
	Message        *MessageContent `json:"message,omitempty"`
}

// Source identifies where an event originated.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// MessageContent is the message part of a message event.
type MessageContent struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsTextMessage reports whether the event is a text message event.
func (e *Event) IsTextMessage() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeText
}

// FromGroup reports whether the event originated in a group chat.
func (e *Event) FromGroup() bool {
	return e.Source.Type == SourceTypeGroup
}

// ParseWebhookBody decodes a webhook delivery. Signature verification must
// happen on the raw bytes before this is called.
func ParseWebhookBody(raw []byte) (*WebhookBody, error) {
	var body WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	return &body, nil
}
