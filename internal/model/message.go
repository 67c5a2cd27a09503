package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// MessageStatus tracks a raw message through the pipeline.
type MessageStatus string

// Message status values.
const (
	MessageUnprocessed MessageStatus = "unprocessed"
	MessageProcessed   MessageStatus = "processed"
	MessageFailed      MessageStatus = "failed"
	MessageReview      MessageStatus = "review"
)

// RawMessage is the persisted copy of one provider message.
type RawMessage struct {
	ReceivedAt        time.Time     `json:"received_at"`
	ProcessedAt       *time.Time    `json:"processed_at,omitempty"`
	AccountID         string        `json:"account_id"`
	ProviderMessageID string        `json:"provider_message_id"`
	ThreadID          string        `json:"thread_id"`
	Sender            string        `json:"sender"`
	Subject           string        `json:"subject"`
	Body              string        `json:"body"`
	Status            MessageStatus `json:"status"`
	LastError         string        `json:"last_error,omitempty"`
	ID                int64         `json:"id"`
	Attempts          int           `json:"attempts"`
}

// BodyHash returns the hash of the whitespace-normalized body.
func (m RawMessage) BodyHash() string {
	normalized := strings.Join(strings.Fields(m.Body), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NaturalKey is the durable identity of the transaction derived from this message.
func (m RawMessage) NaturalKey() string {
	sum := sha256.Sum256([]byte(m.AccountID + "|" + m.ProviderMessageID + "|" + m.BodyHash()))
	return hex.EncodeToString(sum[:])
}

// MailEvent is one message as delivered by a mailbox provider.
type MailEvent struct {
	ReceivedAt        time.Time
	ProviderMessageID string
	ThreadID          string
	Sender            string
	Subject           string
	Body              string
}

// ToRawMessage converts the event into an unprocessed raw message for accountID.
func (e MailEvent) ToRawMessage(accountID string) RawMessage {
	return RawMessage{
		AccountID:         accountID,
		ProviderMessageID: e.ProviderMessageID,
		ThreadID:          e.ThreadID,
		Sender:            e.Sender,
		Subject:           e.Subject,
		ReceivedAt:        e.ReceivedAt,
		Body:              e.Body,
		Status:            MessageUnprocessed,
	}
}
