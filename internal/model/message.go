package model

import (
	"time"

	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// MaxContentRunes is the content limit enforced by the messages contract,
// measured in Unicode scalar values rather than bytes.
const MaxContentRunes = 280

type MessageID uint64

// Message is an immutable ledger record. Recipient is set iff the message
// is a direct message.
type Message struct {
	ID        MessageID            `json:"id"`
	Author    principal.Principal  `json:"author"`
	Content   string               `json:"content"`
	IsPublic  bool                 `json:"isPublic"`
	Recipient *principal.Principal `json:"recipient,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Reaction is keyed by (message, reactor, emoji); the contract enforces at
// most one per key.
type Reaction struct {
	MessageID MessageID           `json:"messageId"`
	Reactor   principal.Principal `json:"reactor"`
	Emoji     string              `json:"emoji"`
	Timestamp time.Time           `json:"timestamp"`
}
