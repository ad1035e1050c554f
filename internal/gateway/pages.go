package gateway

import "net/http"

// The auxiliary dashboard pages carry fixed demo data: they exist so the
// navigation shell has something to render, not to report real numbers.

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"saldo":    15420.50,
		"receitas": 8200.00,
		"despesas": 4310.75,
		"lancamentos": []map[string]any{
			{"descricao": "Assinatura CRM", "valor": -289.90, "categoria": "software"},
			{"descricao": "Consultoria", "valor": 3500.00, "categoria": "serviços"},
			{"descricao": "Anúncios", "valor": -1250.00, "categoria": "marketing"},
		},
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"atendimentos": []map[string]any{
			{"mes": "janeiro", "total": 128},
			{"mes": "fevereiro", "total": 154},
			{"mes": "março", "total": 171},
		},
		"tempoMedioResposta": "4m32s",
		"satisfacao":         4.6,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"visitas":   []int{320, 410, 380, 520, 490, 610, 580},
		"conversao": 0.12,
		"origem": map[string]int{
			"orgânico": 45,
			"anúncios": 35,
			"indicação": 20,
		},
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"eventos": []map[string]any{
			{"titulo": "Reunião de equipe", "data": "2025-03-11", "hora": "09:00"},
			{"titulo": "Follow-up clientes", "data": "2025-03-12", "hora": "14:00"},
			{"titulo": "Fechamento mensal", "data": "2025-03-31", "hora": "17:00"},
		},
	})
}
