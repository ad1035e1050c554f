package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/expansionAgency/whatshub/internal/domain"
)

// ErrNotFound is returned when a conversation id has no row.
var ErrNotFound = errors.New("store: not found")

type conversationRow struct {
	ID              string `db:"id_conversa"`
	DisplayName     string `db:"nome_contato"`
	LastMessageBody string `db:"ultima_mensagem"`
	Timestamp       string `db:"timestamp"`
	Status          string `db:"status"`
	Flagged         bool   `db:"importante"`
}

func (r conversationRow) toDomain() domain.ConversationSummary {
	return domain.ConversationSummary{
		ID:              r.ID,
		DisplayName:     r.DisplayName,
		LastMessageBody: r.LastMessageBody,
		LastMessageAt:   parseTime(r.Timestamp),
		Status:          r.Status,
		Flagged:         r.Flagged,
	}
}

const conversationColumns = "id_conversa, nome_contato, ultima_mensagem, timestamp, status, importante"

// UpsertConversation writes a conversation summary, refreshing the name,
// last message, and timestamp of an existing row. Status and the flagged
// marker are store-owned and preserved on update.
func (db *DB) UpsertConversation(ctx context.Context, c domain.ConversationSummary) error {
	status := c.Status
	if status == "" {
		status = domain.StatusActive
	}
	_, err := db.sqlx.ExecContext(ctx, db.rebind(`
		INSERT INTO conversas (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id_conversa) DO UPDATE SET
			nome_contato = excluded.nome_contato,
			ultima_mensagem = excluded.ultima_mensagem,
			timestamp = excluded.timestamp`),
		c.ID, c.DisplayName, c.LastMessageBody, formatTime(c.LastMessageAt), status, c.Flagged,
	)
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", c.ID, err)
	}
	return nil
}

// Conversations returns all conversation summaries, most recent first.
func (db *DB) Conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var rows []conversationRow
	err := db.sqlx.SelectContext(ctx, &rows,
		`SELECT `+conversationColumns+` FROM conversas ORDER BY timestamp DESC, id_conversa ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	out := make([]domain.ConversationSummary, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ConversationsSince returns summaries with activity at or after the given
// instant, most recent first.
func (db *DB) ConversationsSince(ctx context.Context, since time.Time) ([]domain.ConversationSummary, error) {
	var rows []conversationRow
	err := db.sqlx.SelectContext(ctx, &rows, db.rebind(
		`SELECT `+conversationColumns+` FROM conversas WHERE timestamp >= ? ORDER BY timestamp DESC, id_conversa ASC`),
		formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	out := make([]domain.ConversationSummary, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// GetConversation fetches a single summary by id.
func (db *DB) GetConversation(ctx context.Context, id string) (domain.ConversationSummary, error) {
	var row conversationRow
	err := db.sqlx.GetContext(ctx, &row, db.rebind(
		`SELECT `+conversationColumns+` FROM conversas WHERE id_conversa = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConversationSummary{}, ErrNotFound
	}
	if err != nil {
		return domain.ConversationSummary{}, fmt.Errorf("querying conversation %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// ToggleFlagged flips the importante marker and returns the new value.
func (db *DB) ToggleFlagged(ctx context.Context, id string) (bool, error) {
	current, err := db.GetConversation(ctx, id)
	if err != nil {
		return false, err
	}
	next := !current.Flagged
	_, err = db.sqlx.ExecContext(ctx, db.rebind(
		`UPDATE conversas SET importante = ? WHERE id_conversa = ?`), next, id)
	if err != nil {
		return false, fmt.Errorf("toggling flag on %s: %w", id, err)
	}
	return next, nil
}

// SetStatus updates a conversation's lifecycle status.
func (db *DB) SetStatus(ctx context.Context, id, status string) error {
	res, err := db.sqlx.ExecContext(ctx, db.rebind(
		`UPDATE conversas SET status = ? WHERE id_conversa = ?`), status, id)
	if err != nil {
		return fmt.Errorf("setting status on %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
