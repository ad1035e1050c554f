package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open("sqlite", ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func sampleMessage(id string, at time.Time) domain.Message {
	return domain.Message{
		ID:              id,
		ConversationRef: "whatsapp_5551979312345",
		RawAddress:      "5551979312345@s.whatsapp.net",
		Sender:          domain.SenderContact,
		Body:            "corpo " + id,
		Timestamp:       at,
	}
}

// --- DB/Migration tests ---

func TestOpenInMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.Feed())
}

func TestOpenUnknownDriver(t *testing.T) {
	log := logging.New(nil, "silent")
	_, err := Open("oracle", "dsn", log)
	require.Error(t, err)
}

func TestMigrationsApplied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sqlx.Get(&count, "SELECT COUNT(*) FROM schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

// --- Message tests ---

func TestInsertAndListMessages(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertMessage(ctx, sampleMessage("m2", t0.Add(time.Minute))))
	require.NoError(t, db.InsertMessage(ctx, sampleMessage("m1", t0)))

	msgs, err := db.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Ascending by timestamp regardless of insert order.
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, t0, msgs[0].Timestamp)
	assert.Equal(t, domain.SenderContact, msgs[0].Sender)
	assert.Equal(t, "5551979312345@s.whatsapp.net", msgs[0].RawAddress)
}

func TestInsertMessageDuplicateID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertMessage(ctx, sampleMessage("m1", t0)))
	assert.Error(t, db.InsertMessage(ctx, sampleMessage("m1", t0)))
}

func TestMessagesSince(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertMessage(ctx, sampleMessage("old", t0)))
	require.NoError(t, db.InsertMessage(ctx, sampleMessage("new", t0.Add(time.Hour))))

	msgs, err := db.MessagesSince(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].ID)
}

func TestMessagesByConversation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := sampleMessage("m1", t0)
	require.NoError(t, db.InsertMessage(ctx, m))
	other := sampleMessage("m2", t0)
	other.ConversationRef = "whatsapp_5511988887777"
	require.NoError(t, db.InsertMessage(ctx, other))

	msgs, err := db.MessagesByConversation(ctx, "whatsapp_5551979312345")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

// --- Conversation tests ---

func TestUpsertConversationPreservesFlag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c := domain.ConversationSummary{
		ID:              "whatsapp_5551979312345",
		DisplayName:     "+5551979312345",
		LastMessageBody: "oi",
		LastMessageAt:   t0,
	}
	require.NoError(t, db.UpsertConversation(ctx, c))

	flagged, err := db.ToggleFlagged(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, flagged)

	// A later upsert refreshes the summary but keeps importante.
	c.DisplayName = "Maria Silva"
	c.LastMessageBody = "tudo bem?"
	c.LastMessageAt = t0.Add(time.Minute)
	require.NoError(t, db.UpsertConversation(ctx, c))

	got, err := db.GetConversation(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", got.DisplayName)
	assert.Equal(t, "tudo bem?", got.LastMessageBody)
	assert.True(t, got.Flagged)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestConversationsOrderedDescending(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertConversation(ctx, domain.ConversationSummary{
		ID: "a", LastMessageAt: t0,
	}))
	require.NoError(t, db.UpsertConversation(ctx, domain.ConversationSummary{
		ID: "b", LastMessageAt: t0.Add(time.Hour),
	}))

	convs, err := db.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "b", convs[0].ID)
	assert.Equal(t, "a", convs[1].ID)
}

func TestGetConversationNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleFlaggedNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.ToggleFlagged(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertConversation(ctx, domain.ConversationSummary{ID: "a", LastMessageAt: t0}))
	require.NoError(t, db.SetStatus(ctx, "a", domain.StatusArchived))

	got, err := db.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, got.Status)

	assert.ErrorIs(t, db.SetStatus(ctx, "missing", domain.StatusArchived), ErrNotFound)
}

// --- Feed tests ---

func TestFeedDeliversInserts(t *testing.T) {
	db := testDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := db.Feed().Subscribe(ctx)
	require.NoError(t, db.InsertMessage(context.Background(), sampleMessage("m1", t0)))

	select {
	case m := <-ch:
		assert.Equal(t, "m1", m.ID)
	case <-time.After(time.Second):
		t.Fatal("no feed event received")
	}
}

func TestFeedUnsubscribeOnCancel(t *testing.T) {
	db := testDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := db.Feed().Subscribe(ctx)
	cancel()

	// Channel closes once the cancellation is observed.
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
