package rewards

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/quizforge/rewards/internal/auth"
	"github.com/quizforge/rewards/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the rewards API on an authenticated router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/rewards", h.GetSummary).Methods("GET")
	r.HandleFunc("/rewards/attempts", h.SubmitAttempt).Methods("POST")
	r.HandleFunc("/rewards/achievements", h.ListAchievements).Methods("GET")
	r.HandleFunc("/rewards/milestones/pending", h.PendingMilestones).Methods("GET")
	r.HandleFunc("/rewards/milestones/{id}/shown", h.MarkMilestoneShown).Methods("POST")
	r.HandleFunc("/rewards/challenges", h.DailyChallenges).Methods("GET")
	r.HandleFunc("/rewards/challenges/{id}/claim", h.ClaimChallenge).Methods("POST")
	r.HandleFunc("/rewards/redeem", h.Redeem).Methods("POST")
	r.HandleFunc("/rewards/leaderboard", h.Leaderboard).Methods("GET")
	r.HandleFunc("/notifications", h.Notifications).Methods("GET")
	r.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
}

// ── Rewards State ───────────────────────────────────────

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Summary(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get rewards")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.ProcessAttempt(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "Failed to process attempt")
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Achievements(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get achievements")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Redeem(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "Failed to redeem points")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Milestones ──────────────────────────────────────────

func (h *Handler) PendingMilestones(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.PendingMilestones(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get milestones")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) MarkMilestoneShown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkMilestoneShown(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeError(w, err, "Failed to update milestone")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Daily Challenges ────────────────────────────────────

func (h *Handler) DailyChallenges(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.DailyChallenges(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get daily challenges")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClaimChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.ClaimChallenge(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, err, "Failed to claim challenge")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Leaderboard ─────────────────────────────────────────

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := intQueryParam(r.URL.Query(), "limit", 20)

	resp, err := h.service.GetLeaderboard(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		writeError(w, err, "Failed to get leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ── Notifications ───────────────────────────────────────

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Notifications(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get notifications")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkNotificationRead(r.Context(), auth.UserID(r.Context()), id); err != nil {
		writeError(w, err, "Failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ─────────────────────────────────────────────

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps engine errors to statuses. Anything unrecognized is a 500
// with a generic message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	case errors.Is(err, ErrAlreadyClaimed):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Reward already claimed"})
	case errors.Is(err, ErrInsufficientPoints):
		writeJSON(w, http.StatusPaymentRequired, models.ErrorResponse{Error: "Insufficient points"})
	case errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
	}
}

func intQueryParam(q url.Values, key string, fallback int) int {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
