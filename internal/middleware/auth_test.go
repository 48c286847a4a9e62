package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"github.com/google/uuid"
)

type mockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, token string) (*models.Identity, *models.JWTClaims, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*models.Identity, *models.JWTClaims, error) {
	return m.AuthenticateFunc(ctx, token)
}

func TestAuth(t *testing.T) {
	t.Parallel()

	identity := &models.Identity{ID: uuid.New(), Email: "a@example.com"}
	authn := &mockAuthenticator{
		AuthenticateFunc: func(_ context.Context, token string) (*models.Identity, *models.JWTClaims, error) {
			switch token {
			case "good":
				return identity, &models.JWTClaims{Sub: identity.OwnerID(), Jti: "j1"}, nil
			case "broken":
				return nil, nil, apperrors.Internal("identity.Authenticate", errors.New("store down"))
			default:
				return nil, nil, apperrors.Auth("identity.Authenticate", "Invalid session", nil)
			}
		},
	}

	tests := []struct {
		name       string
		header     string
		query      string
		upgrade    bool
		wantStatus int
	}{
		{name: "valid bearer", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "store failure", header: "Bearer broken", wantStatus: http.StatusInternalServerError},
		{name: "query token on websocket upgrade", query: "good", upgrade: true, wantStatus: http.StatusOK},
		{name: "query token ignored without upgrade", query: "good", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen *models.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = request.IdentityFromContext(r)
				if request.ClaimsFromContext(r) == nil {
					t.Error("claims missing from context")
				}
				w.WriteHeader(http.StatusOK)
			})

			target := "/api/v1/tags"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			w := httptest.NewRecorder()

			Auth(authn, nil)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if seen != identity {
					t.Errorf("identity in context = %v, want %v", seen, identity)
				}
				return
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Success {
				t.Error("expected success=false")
			}
		})
	}
}
