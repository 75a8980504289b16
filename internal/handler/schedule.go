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

type ScheduleHandler struct {
	schedules *store.ScheduleStore
	logger    *slog.Logger
}

func NewScheduleHandler(ss *store.ScheduleStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: ss, logger: logger}
}

type scheduleRequest struct {
	CheckinTime string `json:"checkin_time"`
	Timezone    string `json:"timezone"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// Upsert creates or replaces the authenticated sender's daily schedule.
// The check-in time is wall-clock in the sender's zone; the generator
// resolves it to an instant per day, so DST shifts need no rewrite here.
func (h *ScheduleHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := time.Parse(model.TimeLayout, req.CheckinTime); err != nil {
		writeError(w, http.StatusBadRequest, "checkin_time must be HH:MM:SS")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "invalid timezone")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	sched, err := h.schedules.Upsert(userID, req.CheckinTime, req.Timezone, enabled)
	if err != nil {
		h.logger.Error("upsert schedule", "sender_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return
	}

	writeJSON(w, http.StatusOK, sched)
}

// Get returns the authenticated sender's schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sched, err := h.schedules.GetBySender(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	if sched == nil {
		writeError(w, http.StatusNotFound, "no schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

// UpdateTimezone syncs the schedule's zone when the sender's device reports
// a move. Future pings keep the same wall-clock time in the new zone.
func (h *ScheduleHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "invalid timezone")
		return
	}

	if err := h.schedules.UpdateTimezone(userID, req.Timezone); err != nil {
		h.logger.Error("update timezone", "sender_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update timezone")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"timezone": req.Timezone})
}
