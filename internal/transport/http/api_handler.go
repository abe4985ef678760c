package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"quizmaster-service/internal/app"
)

// APIHandler serves the read-only JSON endpoints backed by persisted results.
type APIHandler struct {
	service *app.QuizService
}

func NewAPIHandler(service *app.QuizService) *APIHandler {
	return &APIHandler{service: service}
}

// Leaderboard handles GET /leaderboard?quiz=<title>&limit=<n>.
func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	quizTitle := r.URL.Query().Get("quiz")
	if quizTitle == "" {
		http.Error(w, "missing quiz", http.StatusBadRequest)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := h.service.Leaderboard(r.Context(), quizTitle, limit)
	if err != nil {
		log.Printf("leaderboard query failed: %v", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

// History handles GET /history?userId=<id>.
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	results, err := h.service.UserHistory(r.Context(), userID)
	if err != nil {
		log.Printf("history query failed: %v", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
