package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/conversas", s.handleConversations)
	mux.HandleFunc("GET /api/mensagens/{id}", s.handleMessages)
	mux.HandleFunc("POST /api/conversas/{id}/toggle-importante", s.handleToggleImportant)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("POST /api/webhook/whatsapp", s.handleInboundWebhook)

	// Auxiliary dashboard pages, static placeholder data only.
	mux.HandleFunc("GET /api/financas", s.handleFinance)
	mux.HandleFunc("GET /api/relatorios", s.handleReports)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/calendario", s.handleCalendar)

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, s.coord.Acknowledge)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}
