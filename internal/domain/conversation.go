package domain

import "time"

// Conversation status values as persisted in the conversas table.
const (
	StatusActive   = "ativa"
	StatusArchived = "arquivada"
)

// Conversation is a derived grouping of messages sharing a routing identity.
// It is rebuilt from the message set on every change, never edited in place;
// only Flagged and Status live independently in the store.
type Conversation struct {
	ID              string    `json:"id_conversa"`
	DisplayName     string    `json:"nome_contato"`
	LastMessageBody string    `json:"ultima_mensagem"`
	LastMessageAt   time.Time `json:"timestamp"`
	Status          string    `json:"status"`
	Flagged         bool      `json:"importante"`
	Messages        []Message `json:"mensagens,omitempty"`
}

// ConversationSummary is the persisted conversas row. The table is a cache of
// the reconstructed state plus the two store-owned fields (status, importante).
type ConversationSummary struct {
	ID              string    `json:"id_conversa" db:"id_conversa"`
	DisplayName     string    `json:"nome_contato" db:"nome_contato"`
	LastMessageBody string    `json:"ultima_mensagem" db:"ultima_mensagem"`
	LastMessageAt   time.Time `json:"timestamp" db:"timestamp"`
	Status          string    `json:"status" db:"status"`
	Flagged         bool      `json:"importante" db:"importante"`
}

// Summary projects the conversation onto its persisted row shape.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:              c.ID,
		DisplayName:     c.DisplayName,
		LastMessageBody: c.LastMessageBody,
		LastMessageAt:   c.LastMessageAt,
		Status:          c.Status,
		Flagged:         c.Flagged,
	}
}
