// Package notify fans new-message events out to the configured sinks.
package notify

import (
	"context"
	"time"

	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
)

// Event is the payload raised for every newly observed inbound message.
type Event struct {
	ConversationID string    `json:"id_conversa"`
	MessageID      string    `json:"id_mensagem"`
	Sender         string    `json:"remetente"`
	Body           string    `json:"conteudo"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventFrom builds an Event for a message within its conversation.
func EventFrom(conversationID string, m domain.Message) Event {
	return Event{
		ConversationID: conversationID,
		MessageID:      m.ID,
		Sender:         m.Sender,
		Body:           m.Body,
		Timestamp:      m.Timestamp,
	}
}

// Notifier receives new-message events. Implementations must not block
// the caller beyond a short publish.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// LogNotifier writes events to the log. Always present so operators see
// inbound traffic even with no broker configured.
type LogNotifier struct {
	log *logging.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.Sub("notify")}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info().
		Str("conversation", ev.ConversationID).
		Str("message", ev.MessageID).
		Str("sender", ev.Sender).
		Msg("new message")
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// Multi dispatches each event to every sink. A failing sink is logged
// and skipped; notification delivery is best-effort.
type Multi struct {
	sinks []Notifier
	log   *logging.Logger
}

// NewMulti combines notifiers into one.
func NewMulti(log *logging.Logger, sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks, log: log.Sub("notify")}
}

func (m *Multi) Notify(ctx context.Context, ev Event) error {
	for _, s := range m.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			m.log.Warn().Err(err).Str("message", ev.MessageID).Msg("notifier sink failed")
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
