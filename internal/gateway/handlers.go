package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/outbound"
	"github.com/expansionAgency/whatshub/internal/store"
	"github.com/expansionAgency/whatshub/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     version.Version,
		"feed_status": string(s.coord.Status()),
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// --- dashboard ---

// periodStart returns the beginning of the requested reporting period.
// Weeks start on Monday.
func periodStart(now time.Time, period string) (time.Time, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch period {
	case "", "day":
		return day, true
	case "week":
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return day.AddDate(0, 0, -(weekday - 1)), true
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	case "year":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), true
	default:
		return time.Time{}, false
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	since, ok := periodStart(time.Now(), r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, "period must be one of day, week, month, year")
		return
	}

	msgs, err := s.db.MessagesSince(r.Context(), since)
	if err != nil {
		s.log.Error().Err(err).Msg("dashboard messages query failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	convs, err := s.db.ConversationsSince(r.Context(), since)
	if err != nil {
		s.log.Error().Err(err).Msg("dashboard conversations query failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mensagens": msgs,
		"conversas": convs,
	})
}

// --- conversations ---

// conversationList builds the summary view: the reconstruction is
// authoritative, the conversas table only contributes the store-owned
// status and importante fields.
func (s *Server) conversationList(r *http.Request) []domain.ConversationSummary {
	if cached, ok := s.cache.Get(conversationsCacheKey); ok {
		return cached.([]domain.ConversationSummary)
	}

	stored := map[string]domain.ConversationSummary{}
	if rows, err := s.db.Conversations(r.Context()); err == nil {
		for _, c := range rows {
			stored[c.ID] = c
		}
	} else {
		s.log.Warn().Err(err).Msg("conversas overlay query failed")
	}

	convs := s.coord.Conversations()
	out := make([]domain.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := c.Summary()
		if row, ok := stored[c.ID]; ok {
			summary.Status = row.Status
			summary.Flagged = row.Flagged
		}
		out = append(out, summary)
	}

	s.cache.Set(conversationsCacheKey, out, conversationsCacheTTL)
	return out
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conversationList(r))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if conv, ok := s.coord.Conversation(id); ok {
		writeJSON(w, http.StatusOK, conv.Messages)
		return
	}

	// Not in the live view; fall back to the store's explicit links.
	msgs, err := s.db.MessagesByConversation(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("conversation", id).Msg("messages query failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleToggleImportant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	flagged, err := s.db.ToggleFlagged(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversa não encontrada")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("conversation", id).Msg("toggle importante failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	s.cache.Delete(conversationsCacheKey)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "importante": flagged})
}

// --- send ---

type sendRequest struct {
	ConversationID string `json:"id_conversa"`
	Body           string `json:"mensagem"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.sender.Send(r.Context(), req.ConversationID, req.Body)
	if errors.Is(err, outbound.ErrMissingConversation) || errors.Is(err, outbound.ErrEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("send failed")
		writeError(w, http.StatusInternalServerError, "send failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}

// --- inbound webhook ---

type inboundRequest struct {
	ID             string `json:"id"`
	ConversationID string `json:"id_conversa"`
	ContactName    string `json:"nome_contato"`
	Sender         string `json:"remetente"`
	Body           string `json:"conteudo"`
	Timestamp      string `json:"timestamp"`
}

func (s *Server) handleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.webhookLimiter.allow(r.RemoteAddr) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" || req.ContactName == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "id_conversa, nome_contato and conteudo are required")
		return
	}

	msg := domain.Message{
		ID:        req.ID,
		Sender:    req.Sender,
		Body:      req.Body,
		Timestamp: time.Now(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Sender == "" {
		msg.Sender = domain.SenderContact
	}
	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			msg.Timestamp = ts
		}
	}

	// The webhook's id_conversa is the channel's raw address when it
	// contains a routable number, otherwise an explicit reference.
	groupID := req.ConversationID
	if strings.Contains(req.ConversationID, "@") {
		msg.RawAddress = req.ConversationID
	} else {
		msg.ConversationRef = req.ConversationID
	}
	if number, ok := s.policy.ExtractNumber(msg.RawAddress, msg.ConversationRef); ok {
		groupID = s.policy.GroupPrefix + number
		msg.ConversationRef = groupID
	}

	if err := s.db.InsertMessage(r.Context(), msg); err != nil {
		s.log.Error().Err(err).Str("message", msg.ID).Msg("inbound insert failed")
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	if err := s.db.UpsertConversation(r.Context(), domain.ConversationSummary{
		ID:              groupID,
		DisplayName:     req.ContactName,
		LastMessageBody: msg.Body,
		LastMessageAt:   msg.Timestamp,
	}); err != nil {
		s.log.Warn().Err(err).Str("conversation", groupID).Msg("inbound conversa upsert failed")
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": msg})
}
