package messaging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw webhook body,
// keyed with the channel secret.
const SignatureHeader = "X-Line-Signature"

// Event types delivered by the webhook source.
const (
	EventTypeMessage = "message"
	EventTypeFollow  = "follow"
)

// Event is one entry of a webhook delivery batch.
type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken"`
	Source     Source   `json:"source"`
	Timestamp  int64    `json:"timestamp"`
	Message    *Message `json:"message,omitempty"`
}

// Source identifies the external account that produced an event.
type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Message is the message attachment of a message event.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

type webhookBody struct {
	Events []Event `json:"events"`
}

// Sign computes the base64 HMAC-SHA256 signature over body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether signature matches Sign(secret, body),
// in constant time.
func ValidateSignature(secret, signature string, body []byte) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// ParseEvents decodes a webhook delivery batch.
func ParseEvents(body []byte) ([]Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("messaging: parse webhook body: %w", err)
	}
	return wb.Events, nil
}
