package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/vigilapp/vigil/internal/events"
	"github.com/vigilapp/vigil/internal/middleware"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/ping"
	"github.com/vigilapp/vigil/internal/store"
)

type PingHandler struct {
	generator *ping.Generator
	completer *ping.Completer
	sweeper   *ping.Sweeper
	streaks   *ping.StreakCalculator
	pings     *store.PingStore
	hub       *events.Hub
	logger    *slog.Logger
}

func NewPingHandler(
	gen *ping.Generator,
	comp *ping.Completer,
	sw *ping.Sweeper,
	streaks *ping.StreakCalculator,
	ps *store.PingStore,
	hub *events.Hub,
	logger *slog.Logger,
) *PingHandler {
	return &PingHandler{
		generator: gen,
		completer: comp,
		sweeper:   sw,
		streaks:   streaks,
		pings:     ps,
		hub:       hub,
		logger:    logger,
	}
}

// Generate runs ping generation, by default for the current day. An optional
// date query parameter targets another day, which backfills after downtime.
func (h *PingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var target *time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		t, err := time.Parse(model.DateLayout, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		target = &t
	}

	report, err := h.generator.Run(target)
	if err != nil {
		h.logger.Error("generation run", "error", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type completeRequest struct {
	Method    string   `json:"method"`
	PingID    *int64   `json:"ping_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Complete records a check-in for the authenticated sender.
func (h *PingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Method == "" {
		req.Method = string(model.CompletionTap)
	}

	result, err := h.completer.Complete(ping.CompleteRequest{
		SenderID:  userID,
		Method:    model.CompletionMethod(req.Method),
		PingID:    req.PingID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	switch {
	case errors.Is(err, ping.ErrLocationRequired), errors.Is(err, ping.ErrUnknownMethod):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ping.ErrPingNotFound):
		writeError(w, http.StatusNotFound, "ping not found")
		return
	case err != nil:
		h.logger.Error("complete check-in", "sender_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "check-in failed")
		return
	}

	if result.CompletedCount > 0 {
		h.hub.Broadcast(events.NewEvent("ping", "completed", userID, map[string]any{
			"completed": result.CompletedCount,
			"late":      result.LateCount,
		}))
	}

	writeJSON(w, http.StatusOK, result)
}

// Sweep runs one missed-detection pass.
func (h *PingHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	missed, err := h.sweeper.Run()
	if err != nil {
		h.logger.Error("sweep run", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	if missed > 0 {
		h.hub.Broadcast(events.NewEvent("ping", "missed", 0, map[string]any{"missed": missed}))
	}

	writeJSON(w, http.StatusOK, map[string]int{"missed": missed})
}

// Streak returns the authenticated sender's current streak, optionally
// scoped to one receiver.
func (h *PingHandler) Streak(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var receiverID *int64
	if s := r.URL.Query().Get("receiver_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid receiver_id")
			return
		}
		receiverID = &id
	}

	result, err := h.streaks.Calculate(userID, receiverID)
	if err != nil {
		h.logger.Error("calculate streak", "sender_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "streak calculation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// List returns the authenticated sender's recent pings, newest first.
func (h *PingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	pings, err := h.pings.ListRecentBySender(userID, nil, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pings")
		return
	}
	if pings == nil {
		pings = []model.Ping{}
	}
	writeJSON(w, http.StatusOK, pings)
}
