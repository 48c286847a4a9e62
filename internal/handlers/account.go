package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// AccountLifecycle schedules and cancels account deletion. *account.Manager implements it.
type AccountLifecycle interface {
	AccountStatusReader
	ScheduleDeletion(ctx context.Context, ownerID string) (models.AccountStatusView, error)
	CancelDeletion(ctx context.Context, ownerID string) error
}

// AccountHandler handles account lifecycle requests
type AccountHandler struct {
	accounts AccountLifecycle
	logger   *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountLifecycle, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, logger: logger}
}

// RegisterRoutes registers account routes on a router with the /account prefix
func (h *AccountHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetStatus).Methods("GET")
	r.HandleFunc("/deletion", h.ScheduleDeletion).Methods("POST")
	r.HandleFunc("/deletion", h.CancelDeletion).Methods("DELETE")
}

// GetStatus returns the lifecycle status and days remaining
func (h *AccountHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	view, err := h.accounts.GetStatus(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ScheduleDeletion arms deletion 30 days from now. Repeating it re-arms.
func (h *AccountHandler) ScheduleDeletion(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	view, err := h.accounts.ScheduleDeletion(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CancelDeletion reactivates the account and returns its status
func (h *AccountHandler) CancelDeletion(w http.ResponseWriter, r *http.Request) {
	ownerID := request.OwnerID(r)
	if ownerID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	ctx := r.Context()
	if err := h.accounts.CancelDeletion(ctx, ownerID); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	view, err := h.accounts.GetStatus(ctx, ownerID)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
