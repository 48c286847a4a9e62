package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
)

type mockVerifier struct {
	VerifyFunc func(ctx context.Context, idToken string) (*models.JWTClaims, error)
}

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*models.JWTClaims, error) {
	return m.VerifyFunc(ctx, idToken)
}

type failingProfiles struct{}

func (failingProfiles) Create(context.Context, string, string) error {
	return apperrors.Write("accounts.Create", errors.New("store unavailable"))
}

type fixture struct {
	service    *Service
	accounts   *database.AccountRepository
	identities *database.IdentityRepository
}

func newFixture(t *testing.T, verifier IDTokenVerifier) *fixture {
	t.Helper()
	store, err := docstore.OpenBadger("")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	accounts := database.NewAccountRepository(store)
	identities := database.NewIdentityRepository(store)
	service := NewService(identities, accounts, NewTokenIssuer(testKey, time.Hour), NewMemoryRevoker(), verifier, nil)
	return &fixture{service: service, accounts: accounts, identities: identities}
}

func federatedVerifier() *mockVerifier {
	return &mockVerifier{VerifyFunc: func(_ context.Context, idToken string) (*models.JWTClaims, error) {
		switch idToken {
		case "alice":
			return &models.JWTClaims{Iss: "https://idp.example.com", Sub: "alice-sub", Email: "alice@example.com", Name: "Alice"}, nil
		case "clash":
			return &models.JWTClaims{Iss: "https://idp.example.com", Sub: "clash-sub", Email: "taken@example.com"}, nil
		default:
			return nil, errors.New("bad signature")
		}
	}}
}

func TestService_SignUpAndSignIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.service.SignUp(ctx, models.Credentials{Email: "User@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if res.Identity.Email != "user@example.com" || res.Session.Token == "" {
		t.Errorf("SignUp() = %+v", res)
	}

	account, err := f.accounts.Get(ctx, res.Identity.OwnerID())
	if err != nil {
		t.Fatalf("accounts.Get() error = %v", err)
	}
	if _, ok := account.State.(models.Active); !ok || account.Email != "user@example.com" || account.CreatedAt == nil {
		t.Errorf("expected an active profile, got %+v", account)
	}

	signedIn, err := f.service.SignIn(ctx, models.Credentials{Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if signedIn.Identity.ID != res.Identity.ID {
		t.Errorf("SignIn() identity = %s, want %s", signedIn.Identity.ID, res.Identity.ID)
	}
}

func TestService_SignUpErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.service.SignUp(ctx, models.Credentials{Email: "a@example.com", Password: "password123"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	tests := []struct {
		name  string
		creds models.Credentials
		kind  apperrors.Kind
	}{
		{"duplicate email", models.Credentials{Email: "A@example.com", Password: "password123"}, apperrors.KindAuth},
		{"invalid email", models.Credentials{Email: "not-an-email", Password: "password123"}, apperrors.KindValidation},
		{"short password", models.Credentials{Email: "b@example.com", Password: "short"}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.SignUp(ctx, tt.creds)
			if got := apperrors.KindOf(err); got != tt.kind {
				t.Errorf("SignUp() error kind = %s (%v), want %s", got, err, tt.kind)
			}
		})
	}
}

func TestService_SignUpRollsBackIdentityWhenProfileFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.service.profiles = failingProfiles{}
	ctx := context.Background()

	_, err := f.service.SignUp(ctx, models.Credentials{Email: "a@example.com", Password: "password123"})
	if !errors.Is(err, apperrors.ErrWrite) {
		t.Fatalf("SignUp() error = %v, want write error", err)
	}
	if _, err := f.identities.GetByEmail(ctx, "a@example.com"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected identity to be removed, got %v", err)
	}
}

func TestService_SignInRejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t, federatedVerifier())
	ctx := context.Background()

	if _, err := f.service.SignUp(ctx, models.Credentials{Email: "a@example.com", Password: "password123"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := f.service.FederatedSignIn(ctx, "alice"); err != nil {
		t.Fatalf("FederatedSignIn() error = %v", err)
	}

	tests := []struct {
		name  string
		creds models.Credentials
		kind  apperrors.Kind
	}{
		{"wrong password", models.Credentials{Email: "a@example.com", Password: "password124"}, apperrors.KindAuth},
		{"unknown email", models.Credentials{Email: "nobody@example.com", Password: "password123"}, apperrors.KindAuth},
		{"federated identity has no password", models.Credentials{Email: "alice@example.com", Password: "password123"}, apperrors.KindAuth},
		{"missing password", models.Credentials{Email: "a@example.com"}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.SignIn(ctx, tt.creds)
			if got := apperrors.KindOf(err); got != tt.kind {
				t.Errorf("SignIn() error kind = %s (%v), want %s", got, err, tt.kind)
			}
		})
	}
}

func TestService_AuthenticateAndSignOut(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.service.SignUp(ctx, models.Credentials{Email: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	other, err := f.service.SignIn(ctx, models.Credentials{Email: "a@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	identity, claims, err := f.service.Authenticate(ctx, res.Session.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if identity.ID != res.Identity.ID {
		t.Errorf("Authenticate() identity = %s, want %s", identity.ID, res.Identity.ID)
	}

	if err := f.service.SignOut(ctx, claims); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, _, err := f.service.Authenticate(ctx, res.Session.Token); !errors.Is(err, apperrors.ErrAuth) {
		t.Errorf("Authenticate() after sign-out error = %v, want auth error", err)
	}
	if _, _, err := f.service.Authenticate(ctx, other.Session.Token); err != nil {
		t.Errorf("other session should stay valid, got %v", err)
	}

	if err := f.service.DeleteIdentity(ctx, res.Identity.OwnerID()); err != nil {
		t.Fatalf("DeleteIdentity() error = %v", err)
	}
	if _, _, err := f.service.Authenticate(ctx, other.Session.Token); !errors.Is(err, apperrors.ErrAuth) {
		t.Errorf("Authenticate() after deletion error = %v, want auth error", err)
	}
	if err := f.service.DeleteIdentity(ctx, res.Identity.OwnerID()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second DeleteIdentity() error = %v, want not found", err)
	}
	if err := f.service.DeleteIdentity(ctx, "not-a-uuid"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("DeleteIdentity() with bad id error = %v, want validation", err)
	}
}

func TestService_FederatedSignIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, federatedVerifier())
	ctx := context.Background()

	first, err := f.service.FederatedSignIn(ctx, "alice")
	if err != nil {
		t.Fatalf("FederatedSignIn() error = %v", err)
	}
	if first.Identity.Provider != models.IdentityProviderOIDC || first.Identity.Name == nil || *first.Identity.Name != "Alice" {
		t.Errorf("FederatedSignIn() identity = %+v", first.Identity)
	}
	if _, err := f.accounts.Get(ctx, first.Identity.OwnerID()); err != nil {
		t.Errorf("expected profile for federated identity, got %v", err)
	}

	second, err := f.service.FederatedSignIn(ctx, "alice")
	if err != nil {
		t.Fatalf("second FederatedSignIn() error = %v", err)
	}
	if second.Identity.ID != first.Identity.ID {
		t.Errorf("expected the same identity on repeat sign-in, got %s and %s", first.Identity.ID, second.Identity.ID)
	}

	if _, err := f.service.SignUp(ctx, models.Credentials{Email: "taken@example.com", Password: "password123"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"email owned by password identity", "clash"},
		{"invalid token", "forged"},
		{"cancelled flow", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.FederatedSignIn(ctx, tt.token); !errors.Is(err, apperrors.ErrAuth) {
				t.Errorf("FederatedSignIn(%q) error = %v, want auth error", tt.token, err)
			}
		})
	}
}

func TestService_FederatedSignInDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if f.service.FederatedEnabled() {
		t.Error("expected federated sign-in to be disabled")
	}
	if _, err := f.service.FederatedSignIn(context.Background(), "alice"); !errors.Is(err, apperrors.ErrAuth) {
		t.Errorf("FederatedSignIn() error = %v, want auth error", err)
	}
}
