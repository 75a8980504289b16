package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilapp/vigil/internal/middleware"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

type BreakHandler struct {
	breaks *store.BreakStore
	logger *slog.Logger
}

func NewBreakHandler(bs *store.BreakStore, logger *slog.Logger) *BreakHandler {
	return &BreakHandler{breaks: bs, logger: logger}
}

type breakRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Create schedules a break for the authenticated sender. Both dates are
// inclusive; pings already generated inside the range are not rewritten,
// only future generation sees the break.
func (h *BreakHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req breakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := time.Parse(model.DateLayout, req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse(model.DateLayout, req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if req.EndDate < req.StartDate {
		writeError(w, http.StatusBadRequest, "end_date before start_date")
		return
	}

	brk, err := h.breaks.Create(userID, req.StartDate, req.EndDate)
	if err != nil {
		h.logger.Error("create break", "sender_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create break")
		return
	}
	writeJSON(w, http.StatusCreated, brk)
}

// List returns the authenticated sender's breaks.
func (h *BreakHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	brks, err := h.breaks.ListBySender(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list breaks")
		return
	}
	if brks == nil {
		brks = []model.Break{}
	}
	writeJSON(w, http.StatusOK, brks)
}

// Cancel marks a break canceled so it no longer excuses check-ins.
func (h *BreakHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	brk, err := h.breaks.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get break")
		return
	}
	if brk == nil || brk.SenderID != userID {
		writeError(w, http.StatusNotFound, "break not found")
		return
	}

	if err := h.breaks.UpdateStatus(id, model.BreakCanceled); err != nil {
		h.logger.Error("cancel break", "break_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel break")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.BreakCanceled)})
}
