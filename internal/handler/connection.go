package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigilapp/vigil/internal/events"
	"github.com/vigilapp/vigil/internal/middleware"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

type ConnectionHandler struct {
	connections *store.ConnectionStore
	hub         *events.Hub
	logger      *slog.Logger
}

func NewConnectionHandler(cs *store.ConnectionStore, hub *events.Hub, logger *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: cs, hub: hub, logger: logger}
}

type connectionRequest struct {
	ReceiverID int64 `json:"receiver_id"`
}

// Create starts a pending connection from the authenticated sender to a
// receiver. The receiver activates it by setting the status.
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ReceiverID == 0 || req.ReceiverID == userID {
		writeError(w, http.StatusBadRequest, "invalid receiver_id")
		return
	}

	conn, err := h.connections.Create(userID, req.ReceiverID)
	if err != nil {
		h.logger.Error("create connection", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create connection")
		return
	}

	h.hub.Publish([]int64{req.ReceiverID}, events.NewEvent("connection", "created", userID, nil))
	writeJSON(w, http.StatusCreated, conn)
}

// List returns every connection the authenticated user participates in,
// from either side.
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conns, err := h.connections.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	if conns == nil {
		conns = []model.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

type connectionStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a connection between pending, active, and paused.
func (h *ConnectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	conn, err := h.connections.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get connection")
		return
	}
	if conn == nil || (conn.SenderID != userID && conn.ReceiverID != userID) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	var req connectionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status := model.ConnectionStatus(req.Status)
	switch status {
	case model.ConnectionPending, model.ConnectionActive, model.ConnectionPaused:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.connections.UpdateStatus(id, status); err != nil {
		h.logger.Error("update connection status", "connection_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update connection")
		return
	}

	h.hub.Publish([]int64{conn.SenderID, conn.ReceiverID},
		events.NewEvent("connection", string(status), conn.SenderID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// Delete soft-deletes a connection. History stays; pings dated after today
// are removed so nothing fires for a dead pairing.
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	conn, err := h.connections.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get connection")
		return
	}
	if conn == nil || (conn.SenderID != userID && conn.ReceiverID != userID) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	today := time.Now().UTC().Format(model.DateLayout)
	if err := h.connections.SoftDelete(id, today); err != nil {
		h.logger.Error("soft-delete connection", "connection_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete connection")
		return
	}

	h.hub.Publish([]int64{conn.SenderID, conn.ReceiverID},
		events.NewEvent("connection", "deleted", conn.SenderID, nil))
	w.WriteHeader(http.StatusNoContent)
}
