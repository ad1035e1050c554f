package store

import (
	"context"
	"fmt"
	"time"

	"github.com/expansionAgency/whatshub/internal/domain"
)

// messageRow mirrors the mensagens table with text timestamps.
type messageRow struct {
	ID              string `db:"id"`
	ConversationRef string `db:"id_conversa_fk"`
	RawAddress      string `db:"id_conversa"`
	Sender          string `db:"remetente"`
	Body            string `db:"conteudo"`
	Timestamp       string `db:"timestamp"`
}

func (r messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:              r.ID,
		ConversationRef: r.ConversationRef,
		RawAddress:      r.RawAddress,
		Sender:          r.Sender,
		Body:            r.Body,
		Timestamp:       parseTime(r.Timestamp),
	}
}

const messageColumns = "id, id_conversa_fk, id_conversa, remetente, conteudo, timestamp"

// InsertMessage stores a message and publishes it on the change feed.
func (db *DB) InsertMessage(ctx context.Context, m domain.Message) error {
	_, err := db.sqlx.ExecContext(ctx, db.rebind(
		`INSERT INTO mensagens (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		m.ID, m.ConversationRef, m.RawAddress, m.Sender, m.Body, formatTime(m.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	db.feed.publish(m)
	return nil
}

// Messages returns every stored message, ascending by timestamp.
func (db *DB) Messages(ctx context.Context) ([]domain.Message, error) {
	return db.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM mensagens ORDER BY timestamp ASC, id ASC`)
}

// MessagesSince returns messages at or after the given instant, ascending
// by timestamp.
func (db *DB) MessagesSince(ctx context.Context, since time.Time) ([]domain.Message, error) {
	return db.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM mensagens WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		formatTime(since))
}

// MessagesByConversation returns the messages linked to one conversation
// by explicit reference, ascending by timestamp.
func (db *DB) MessagesByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return db.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM mensagens WHERE id_conversa_fk = ? ORDER BY timestamp ASC, id ASC`,
		conversationID)
}

func (db *DB) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	var rows []messageRow
	if err := db.sqlx.SelectContext(ctx, &rows, db.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	out := make([]domain.Message, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
