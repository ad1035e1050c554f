package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSONTags(t *testing.T) {
	msg := Message{
		ID:              "m1",
		ConversationRef: "conv-1",
		RawAddress:      "5551979312345@s.whatsapp.net",
		Sender:          SenderContact,
		Body:            "Oi",
		Timestamp:       time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "m1", raw["id"])
	assert.Equal(t, "conv-1", raw["id_conversa_fk"])
	assert.Equal(t, "5551979312345@s.whatsapp.net", raw["id_conversa"])
	assert.Equal(t, "contato", raw["remetente"])
	assert.Equal(t, "Oi", raw["conteudo"])
}

func TestMessageOptionalFieldsOmitted(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m1", Sender: SenderOperator, Body: "x"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "id_conversa_fk")
	assert.NotContains(t, raw, "id_conversa")
}

func TestFromOperator(t *testing.T) {
	assert.True(t, Message{Sender: SenderOperator}.FromOperator())
	assert.False(t, Message{Sender: SenderContact}.FromOperator())
	assert.False(t, Message{Sender: "Bruno Silva"}.FromOperator())
}

func TestNamedSender(t *testing.T) {
	tests := []struct {
		sender string
		want   bool
	}{
		{SenderOperator, false},
		{SenderContact, false},
		{SenderSystem, false},
		{"", false},
		{"Bruno Silva", true},
	}
	for _, tt := range tests {
		t.Run(tt.sender, func(t *testing.T) {
			assert.Equal(t, tt.want, Message{Sender: tt.sender}.NamedSender())
		})
	}
}

func TestConversationSummary(t *testing.T) {
	conv := Conversation{
		ID:              "whatsapp_5511999887766",
		DisplayName:     "João Silva",
		LastMessageBody: "Obrigado!",
		LastMessageAt:   time.Now(),
		Status:          StatusActive,
		Flagged:         true,
		Messages:        []Message{{ID: "m1"}},
	}

	sum := conv.Summary()
	assert.Equal(t, conv.ID, sum.ID)
	assert.Equal(t, conv.DisplayName, sum.DisplayName)
	assert.Equal(t, conv.LastMessageBody, sum.LastMessageBody)
	assert.True(t, sum.Flagged)
	assert.Equal(t, StatusActive, sum.Status)
}
