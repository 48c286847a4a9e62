package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/middleware"
	"github.com/benvon/tag-a-log/internal/services/account"
	"github.com/benvon/tag-a-log/internal/services/export"
	"github.com/benvon/tag-a-log/internal/services/identity"
	"github.com/gorilla/mux"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type harness struct {
	server   *httptest.Server
	store    *docstore.Store
	accounts *database.AccountRepository
}

type harnessOptions struct {
	exchanger CodeExchanger
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	store, err := docstore.OpenBadger("")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tags := database.NewTagRepository(store)
	logs := database.NewLogRepository(store)
	accounts := database.NewAccountRepository(store)
	identities := database.NewIdentityRepository(store)

	ids := identity.NewService(identities, accounts, identity.NewTokenIssuer(testSigningKey, time.Hour), identity.NewMemoryRevoker(), nil, nil)
	manager := account.NewManager(accounts, nil)
	streamer := NewStreamer(nil, nil)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	authHandler := NewAuthHandler(ids, manager, opts.exchanger, nil)
	authHandler.RegisterPublicRoutes(api.PathPrefix("/auth").Subrouter())

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(ids, nil))
	authHandler.RegisterProtectedRoutes(protected.PathPrefix("/auth").Subrouter())
	NewTagHandler(tags, streamer, nil).RegisterRoutes(protected.PathPrefix("/tags").Subrouter())
	NewLogHandler(logs, export.NewExporter(logs, time.UTC), streamer, nil).RegisterRoutes(protected.PathPrefix("/logs").Subrouter())
	NewAccountHandler(manager, nil).RegisterRoutes(protected.PathPrefix("/account").Subrouter())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &harness{server: server, store: store, accounts: accounts}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// do sends a JSON request and returns the status and decoded envelope. The
// envelope is empty for bodyless responses.
func (h *harness) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope %q: %v", raw, err)
		}
	}
	return resp.StatusCode, env
}

// signUp creates an account and returns its session token and owner id
func (h *harness) signUp(t *testing.T, email string) (token, ownerID string) {
	t.Helper()
	status, env := h.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"email": email, "password": "password123"})
	if status != http.StatusCreated {
		t.Fatalf("signup status = %d (%s)", status, env.Message)
	}
	var res AuthResponse
	decodeData(t, env, &res)
	return res.Token, res.Identity.OwnerID()
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}
