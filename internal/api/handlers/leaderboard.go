package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/puddingmeetup/server/internal/api/problem"
	"github.com/puddingmeetup/server/internal/domain/leaderboard"
)

type LeaderboardHandler struct {
	Service *leaderboard.Service
	Env     string
}

func NewLeaderboardHandler(service *leaderboard.Service, env string) *LeaderboardHandler {
	return &LeaderboardHandler{Service: service, Env: env}
}

type leaderboardResponse struct {
	Period  string              `json:"period"`
	Entries []leaderboard.Entry `json:"entries"`
}

func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
				problem.WithErrors(map[string]any{"limit": "must be a positive integer"}))
			return
		}
		limit = parsed
	}

	entries, err := h.Service.Compute(r.Context(), period, limit)
	if err != nil {
		var periodErr *leaderboard.PeriodError
		if errors.As(err, &periodErr) {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
				problem.WithErrors(map[string]any{"period": "must be \"week\" or \"all\""}))
			return
		}
		writeUnavailable(w, r, err, h.Env)
		return
	}

	if period == "" {
		period = leaderboard.PeriodAll
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Period: period, Entries: entries})
}
