package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"github.com/benvon/tag-a-log/internal/services/identity"
	"github.com/benvon/tag-a-log/internal/services/oidc"
	"github.com/gorilla/mux"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// IdentityService signs users up, in and out. *identity.Service implements it.
type IdentityService interface {
	SignUp(ctx context.Context, creds models.Credentials) (*identity.Result, error)
	SignIn(ctx context.Context, creds models.Credentials) (*identity.Result, error)
	FederatedSignIn(ctx context.Context, idToken string) (*identity.Result, error)
	SignOut(ctx context.Context, claims *models.JWTClaims) error
}

// AccountStatusReader projects an account's lifecycle state. *account.Manager implements it.
type AccountStatusReader interface {
	GetStatus(ctx context.Context, ownerID string) (models.AccountStatusView, error)
}

// CodeExchanger runs the authorization code flow. *oidc.Client implements it.
type CodeExchanger interface {
	LoginConfig(state string) *oidc.LoginConfig
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	identities IdentityService
	accounts   AccountStatusReader
	exchanger  CodeExchanger
	logger     *zap.Logger
}

// NewAuthHandler creates a new auth handler. exchanger is nil when federated
// sign-in is not configured.
func NewAuthHandler(identities IdentityService, accounts AccountStatusReader, exchanger CodeExchanger, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{identities: identities, accounts: accounts, exchanger: exchanger, logger: logger}
}

// RegisterPublicRoutes registers the sign-in routes on a router with the
// /api/v1/auth prefix
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/signup", h.SignUp).Methods("POST")
	r.HandleFunc("/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/federated", h.FederatedSignIn).Methods("POST")
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
	r.HandleFunc("/oidc/callback", h.OIDCCallback).Methods("POST")
}

// RegisterProtectedRoutes registers routes that need a session
func (h *AuthHandler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/signout", h.SignOut).Methods("POST")
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// AuthResponse is returned by every successful sign-in. Account carries the
// lifecycle status so clients can warn about a pending deletion.
type AuthResponse struct {
	Token     string                    `json:"token"`
	ExpiresAt int64                     `json:"expires_at"`
	Identity  *models.Identity          `json:"identity"`
	Account   *models.AccountStatusView `json:"account,omitempty"`
}

// MeResponse describes the signed-in user
type MeResponse struct {
	Identity *models.Identity          `json:"identity"`
	Account  *models.AccountStatusView `json:"account,omitempty"`
}

// FederatedRequest carries an ID token obtained by the client
type FederatedRequest struct {
	IDToken string `json:"id_token"`
}

// CallbackRequest carries the authorization code returned to the client
type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// SignUp creates a password account
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	result, err := h.identities.SignUp(r.Context(), creds)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.authResponse(r.Context(), result))
}

// SignIn authenticates an email/password pair
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	result, err := h.identities.SignIn(r.Context(), creds)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.authResponse(r.Context(), result))
}

// FederatedSignIn signs in with an ID token from the federated provider
func (h *AuthHandler) FederatedSignIn(w http.ResponseWriter, r *http.Request) {
	var req FederatedRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	result, err := h.identities.FederatedSignIn(r.Context(), strings.TrimSpace(req.IDToken))
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.authResponse(r.Context(), result))
}

// GetOIDCLogin returns the parameters the client needs to start the code flow.
// The client keeps the state and checks it on return.
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.exchanger == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Federated sign-in is not configured")
		return
	}
	state, err := gonanoid.New(32)
	if err != nil {
		respondAppError(w, r, h.logger, apperrors.Internal("auth.GetOIDCLogin", err))
		return
	}
	respondJSON(w, http.StatusOK, h.exchanger.LoginConfig(state))
}

// OIDCCallback exchanges an authorization code and signs in with the ID token
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	const op = "auth.OIDCCallback"

	if h.exchanger == nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Federated sign-in is not configured")
		return
	}
	var req CallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondAppError(w, r, h.logger, apperrors.Auth(op, "Federated sign-in was cancelled", nil))
		return
	}
	idToken, err := h.exchanger.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		h.logger.Warn("oidc_code_exchange_failed", zap.Error(err))
		respondAppError(w, r, h.logger, apperrors.Auth(op, "Could not complete federated sign-in", err))
		return
	}
	result, err := h.identities.FederatedSignIn(r.Context(), idToken)
	if err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, h.authResponse(r.Context(), result))
}

// SignOut revokes the current session
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	claims := request.ClaimsFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	if err := h.identities.SignOut(r.Context(), claims); err != nil {
		respondAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns the signed-in identity and its account status
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := request.IdentityFromContext(r)
	if id == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Identity not found in context")
		return
	}
	respondJSON(w, http.StatusOK, MeResponse{Identity: id, Account: h.accountStatus(r.Context(), id.OwnerID())})
}

func (h *AuthHandler) authResponse(ctx context.Context, result *identity.Result) AuthResponse {
	return AuthResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
		Identity:  result.Identity,
		Account:   h.accountStatus(ctx, result.Identity.OwnerID()),
	}
}

// accountStatus returns nil when the status cannot be read; sign-in still succeeds
func (h *AuthHandler) accountStatus(ctx context.Context, ownerID string) *models.AccountStatusView {
	view, err := h.accounts.GetStatus(ctx, ownerID)
	if err != nil {
		h.logger.Warn("account_status_unavailable",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return nil
	}
	return &view
}
