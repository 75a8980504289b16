package handler

import (
	"log/slog"
	"net/http"

	"github.com/vigilapp/vigil/internal/entitlement"
	"github.com/vigilapp/vigil/internal/middleware"
)

type EntitlementHandler struct {
	gate   *entitlement.Gate
	logger *slog.Logger
}

func NewEntitlementHandler(gate *entitlement.Gate, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{gate: gate, logger: logger}
}

// Check returns the authenticated receiver's subscription standing as the
// gate sees it, including any lazy expiry applied on this read.
func (h *EntitlementHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.gate.Check(userID)
	if err != nil {
		h.logger.Error("entitlement check", "receiver_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "entitlement check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
