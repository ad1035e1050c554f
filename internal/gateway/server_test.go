package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expansionAgency/whatshub/internal/config"
	"github.com/expansionAgency/whatshub/internal/convo"
	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/live"
	"github.com/expansionAgency/whatshub/internal/logging"
	"github.com/expansionAgency/whatshub/internal/metrics"
	"github.com/expansionAgency/whatshub/internal/outbound"
	"github.com/expansionAgency/whatshub/internal/store"
)

var t0 = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *httptest.Server
	db    *store.DB
	coord *live.Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logging.New(nil, "silent")
	cfg := config.Defaults()
	m := metrics.New()

	db, err := store.Open("sqlite", ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	coord := live.NewCoordinator(live.Options{
		Store:         db,
		Reconstructor: convo.New(convo.DefaultPolicy()),
		Metrics:       m,
		Log:           log,
		PollInterval:  10 * time.Millisecond,
	})
	require.NoError(t, coord.LoadInitial(context.Background()))

	sender := outbound.NewSender(outbound.Config{}, convo.DefaultPolicy(), coord, db, m, log)

	s := New(cfg, log, coord, sender, db, m)
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, db: db, coord: coord}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func seedMessage(t *testing.T, e *testEnv, id string, at time.Time) {
	t.Helper()
	require.NoError(t, e.db.InsertMessage(context.Background(), domain.Message{
		ID:              id,
		ConversationRef: "whatsapp_5551979312345",
		RawAddress:      "5551979312345@s.whatsapp.net",
		Sender:          domain.SenderContact,
		Body:            "corpo " + id,
		Timestamp:       at,
	}))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, out["feed_status"])
}

func TestNotFound(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/health")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestConversationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedMessage(t, e, "m1", t0)
	require.NoError(t, e.coord.LoadInitial(context.Background()))

	resp, body := e.get(t, "/api/conversas")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out []domain.ConversationSummary
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "whatsapp_5551979312345", out[0].ID)
	assert.Equal(t, "+5551979312345", out[0].DisplayName)
}

func TestMessagesEndpoint(t *testing.T) {
	e := newTestEnv(t)
	seedMessage(t, e, "m1", t0)
	seedMessage(t, e, "m2", t0.Add(time.Minute))
	require.NoError(t, e.coord.LoadInitial(context.Background()))

	resp, body := e.get(t, "/api/mensagens/whatsapp_5551979312345")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out []domain.Message
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestMessagesEndpointUnknownConversation(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/api/mensagens/whatsapp_0000000000")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestToggleImportant(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.UpsertConversation(context.Background(), domain.ConversationSummary{
		ID: "whatsapp_5551979312345", LastMessageAt: t0,
	}))

	resp, body := e.post(t, "/api/conversas/whatsapp_5551979312345/toggle-importante", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		OK         bool `json:"ok"`
		Importante bool `json:"importante"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.OK)
	assert.True(t, out.Importante)

	resp, body = e.post(t, "/api/conversas/whatsapp_5551979312345/toggle-importante", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Importante)
}

func TestToggleImportantNotFound(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.post(t, "/api/conversas/missing/toggle-importante", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendValidationError(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.post(t, "/api/send", map[string]string{
		"id_conversa": "whatsapp_5551979312345",
		"mensagem":    "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out["error"])
}

func TestSendHappyPath(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.post(t, "/api/send", map[string]string{
		"id_conversa": "whatsapp_5551979312345",
		"mensagem":    "Olá!",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		OK      bool           `json:"ok"`
		Message domain.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.OK)
	assert.Equal(t, domain.SenderOperator, out.Message.Sender)

	// Optimistic append landed in the live view.
	assert.Len(t, e.coord.Snapshot(), 1)
}

func TestInboundWebhook(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.post(t, "/api/webhook/whatsapp", map[string]string{
		"id_conversa":  "5551979312345@s.whatsapp.net",
		"nome_contato": "Maria Silva",
		"conteudo":     "Oi, tudo bem?",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		OK      bool           `json:"ok"`
		Message domain.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.OK)
	assert.Equal(t, domain.SenderContact, out.Message.Sender)
	assert.NotEmpty(t, out.Message.ID)

	conv, err := e.db.GetConversation(context.Background(), "whatsapp_5551979312345")
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", conv.DisplayName)
	assert.Equal(t, "Oi, tudo bem?", conv.LastMessageBody)

	msgs, err := e.db.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "5551979312345@s.whatsapp.net", msgs[0].RawAddress)
}

func TestInboundWebhookValidation(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.post(t, "/api/webhook/whatsapp", map[string]string{
		"conteudo": "sem conversa",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.post(t, "/api/webhook/whatsapp", map[string]string{
		"id_conversa": "5551979312345@s.whatsapp.net",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A payload without a contact name must not create a conversa.
	resp, _ = e.post(t, "/api/webhook/whatsapp", map[string]string{
		"id_conversa": "5551979312345@s.whatsapp.net",
		"conteudo":    "sem nome",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, err := e.db.GetConversation(context.Background(), "whatsapp_5551979312345")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDashboardPeriods(t *testing.T) {
	e := newTestEnv(t)
	seedMessage(t, e, "recent", time.Now())

	for _, period := range []string{"day", "week", "month", "year"} {
		resp, body := e.get(t, "/api/dashboard?period="+period)
		assert.Equal(t, http.StatusOK, resp.StatusCode, period)

		var out struct {
			Mensagens []domain.Message              `json:"mensagens"`
			Conversas []domain.ConversationSummary `json:"conversas"`
		}
		require.NoError(t, json.Unmarshal(body, &out), period)
		assert.Len(t, out.Mensagens, 1, period)
	}

	resp, _ := e.get(t, "/api/dashboard?period=decade")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceholderPages(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/financas", "/api/relatorios", "/api/analytics", "/api/calendario"} {
		resp, body := e.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.True(t, json.Valid(body), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "whatshub_")
}

func TestWebSocketReceivesBroadcast(t *testing.T) {
	e := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// An inbound message triggers a reconstruction broadcast.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.coord.Start(ctx, e.db.Feed().Subscribe(ctx))
	seedMessage(t, e, "m1", t0)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type          string                 `json:"type"`
		Conversations []*domain.Conversation `json:"conversas"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "conversas", ev.Type)
	require.Len(t, ev.Conversations, 1)
	assert.Equal(t, "whatsapp_5551979312345", ev.Conversations[0].ID)
}

func TestPeriodStartWeekIsMonday(t *testing.T) {
	// 2025-03-13 is a Thursday; the week began Monday the 10th.
	thursday := time.Date(2025, 3, 13, 15, 30, 0, 0, time.UTC)
	start, ok := periodStart(thursday, "week")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)

	// On a Sunday the week still starts the previous Monday.
	sunday := time.Date(2025, 3, 16, 8, 0, 0, 0, time.UTC)
	start, ok = periodStart(sunday, "week")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		cfg  config.ServerConfig
		want string
	}{
		{config.ServerConfig{Bind: "loopback", Port: 4000}, "127.0.0.1:4000"},
		{config.ServerConfig{Bind: "lan", Port: 4000}, "0.0.0.0:4000"},
		{config.ServerConfig{Bind: "custom", CustomBindHost: "10.0.0.5", Port: 4000}, "10.0.0.5:4000"},
		{config.ServerConfig{Bind: "custom", Port: 4000}, "0.0.0.0:4000"},
		{config.ServerConfig{Bind: "", Port: 4000}, "127.0.0.1:4000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
	}
}

func TestWebhookRateLimiter(t *testing.T) {
	l := newIPRateLimiter(1, 2)
	addr := "203.0.113.7:5511"

	assert.True(t, l.allow(addr))
	assert.True(t, l.allow(addr))
	assert.False(t, l.allow(addr))

	// A different IP has its own budget.
	assert.True(t, l.allow("203.0.113.8:1000"))
}

func TestStartAndShutdown(t *testing.T) {
	log := logging.New(nil, "silent")
	cfg := config.Defaults()
	cfg.Server.Port = 0
	m := metrics.New()

	db, err := store.Open("sqlite", ":memory:", log)
	require.NoError(t, err)
	defer db.Close()

	coord := live.NewCoordinator(live.Options{
		Store:         db,
		Reconstructor: convo.New(convo.DefaultPolicy()),
		Metrics:       m,
		Log:           log,
	})
	require.NoError(t, coord.LoadInitial(context.Background()))
	sender := outbound.NewSender(outbound.Config{}, convo.DefaultPolicy(), coord, db, m, log)
	s := New(cfg, log, coord, sender, db, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCORSHeaders(t *testing.T) {
	log := logging.New(nil, "silent")
	cfg := config.Defaults()
	cfg.Server.AllowedOrigins = []string{"http://dashboard.local"}
	m := metrics.New()

	db, err := store.Open("sqlite", ":memory:", log)
	require.NoError(t, err)
	defer db.Close()
	coord := live.NewCoordinator(live.Options{
		Store:         db,
		Reconstructor: convo.New(convo.DefaultPolicy()),
		Log:           log,
	})
	require.NoError(t, coord.LoadInitial(context.Background()))
	sender := outbound.NewSender(outbound.Config{}, convo.DefaultPolicy(), coord, db, m, log)
	s := New(cfg, log, coord, sender, db, m)

	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://dashboard.local", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebhookIngestFeedsLiveView(t *testing.T) {
	e := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.coord.Start(ctx, e.db.Feed().Subscribe(ctx))

	resp, _ := e.post(t, "/api/webhook/whatsapp", map[string]string{
		"id_conversa":  "5551979312345@s.whatsapp.net",
		"nome_contato": "Maria Silva",
		"conteudo":     "oi",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(e.coord.Snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	convs := e.coord.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "whatsapp_5551979312345", convs[0].ID)
}
