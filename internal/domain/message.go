// Package domain defines the message and conversation model shared by all
// WhatsHub components. Field tags follow the hosted store's table shapes
// (mensagens / conversas).
package domain

import "time"

// Well-known sender values. Anything else is treated as a contact's
// display name pushed by the upstream channel.
const (
	SenderOperator = "operador"
	SenderContact  = "contato"
	SenderSystem   = "sistema"
)

// Message is a single inbound or outbound message. Messages are immutable
// once stored; they are never edited or deleted by the hub.
type Message struct {
	ID string `json:"id" db:"id"`

	// ConversationRef is the explicit conversation foreign key, when the
	// producer supplied one. Often empty for operator replies.
	ConversationRef string `json:"id_conversa_fk,omitempty" db:"id_conversa_fk"`

	// RawAddress is an opaque routable address as delivered by the channel,
	// e.g. "5551979312345@s.whatsapp.net". A phone number may or may not be
	// derivable from it.
	RawAddress string `json:"id_conversa,omitempty" db:"id_conversa"`

	Sender    string    `json:"remetente" db:"remetente"`
	Body      string    `json:"conteudo" db:"conteudo"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// FromOperator reports whether the message was sent by the dashboard operator.
func (m Message) FromOperator() bool { return m.Sender == SenderOperator }

// NamedSender reports whether Sender carries a real contact name rather than
// one of the well-known role values.
func (m Message) NamedSender() bool {
	return m.Sender != "" && m.Sender != SenderOperator && m.Sender != SenderContact && m.Sender != SenderSystem
}
