// Package identity authenticates users and issues session tokens
package identity

import (
	"context"
	"errors"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IDTokenVerifier verifies ID tokens from the federated provider
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*models.JWTClaims, error)
}

// ProfileCreator creates the profile document of a new user
type ProfileCreator interface {
	Create(ctx context.Context, ownerID, email string) error
}

// Result is the outcome of a successful sign-in or sign-up
type Result struct {
	Identity *models.Identity
	Session  *models.Session
}

// Service signs users up, in and out
type Service struct {
	identities database.IdentityRepositoryInterface
	profiles   ProfileCreator
	tokens     *TokenIssuer
	revoker    Revoker
	verifier   IDTokenVerifier
	logger     *zap.Logger
}

// NewService creates an identity service. verifier may be nil when
// federated sign-in is not configured.
func NewService(
	identities database.IdentityRepositoryInterface,
	profiles ProfileCreator,
	tokens *TokenIssuer,
	revoker Revoker,
	verifier IDTokenVerifier,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		identities: identities,
		profiles:   profiles,
		tokens:     tokens,
		revoker:    revoker,
		verifier:   verifier,
		logger:     logger,
	}
}

// FederatedEnabled reports whether federated sign-in is available
func (s *Service) FederatedEnabled() bool {
	return s.verifier != nil
}

// SignUp creates a password identity and its (active) account
func (s *Service) SignUp(ctx context.Context, creds models.Credentials) (*Result, error) {
	const op = "identity.SignUp"

	if err := validation.Struct(op, creds); err != nil {
		return nil, err
	}
	hash, err := HashPassword(creds.Password)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	identity := &models.Identity{
		ID:           uuid.New(),
		Email:        creds.Email,
		Provider:     models.IdentityProviderPassword,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, database.ErrIdentityExists) {
			return nil, apperrors.Auth(op, "An account with this email already exists", err)
		}
		return nil, err
	}
	if err := s.createProfile(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("identity_signed_up",
		zap.String("owner_id", identity.OwnerID()),
		zap.String("provider", string(identity.Provider)),
	)
	return s.issue(op, identity)
}

// createProfile writes the account document of a new identity. The identity
// is deleted again when that fails.
func (s *Service) createProfile(ctx context.Context, identity *models.Identity) error {
	err := s.profiles.Create(ctx, identity.OwnerID(), identity.Email)
	if err == nil {
		return nil
	}
	if delErr := s.identities.Delete(ctx, identity.ID); delErr != nil {
		s.logger.Error("identity_rollback_failed",
			zap.String("owner_id", identity.OwnerID()),
			zap.Error(delErr),
		)
	}
	return err
}

// SignIn authenticates an email/password pair
func (s *Service) SignIn(ctx context.Context, creds models.Credentials) (*Result, error) {
	const op = "identity.SignIn"

	if creds.Email == "" || creds.Password == "" {
		return nil, apperrors.Validation(op, "email and password are required")
	}

	identity, err := s.identities.GetByEmail(ctx, creds.Email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Auth(op, "Invalid email or password", nil)
	}
	if err != nil {
		return nil, err
	}
	if identity.Provider != models.IdentityProviderPassword || !VerifyPassword(identity.PasswordHash, creds.Password) {
		return nil, apperrors.Auth(op, "Invalid email or password", nil)
	}

	s.logger.Info("identity_signed_in", zap.String("owner_id", identity.OwnerID()))
	return s.issue(op, identity)
}

// FederatedSignIn signs in with an ID token from the federated provider,
// creating the identity and account on first use.
func (s *Service) FederatedSignIn(ctx context.Context, idToken string) (*Result, error) {
	const op = "identity.FederatedSignIn"

	if s.verifier == nil {
		return nil, apperrors.Auth(op, "Federated sign-in is not configured", nil)
	}
	if idToken == "" {
		return nil, apperrors.Auth(op, "Federated sign-in was cancelled", nil)
	}
	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("federated_token_rejected", zap.Error(err))
		return nil, apperrors.Auth(op, "Invalid identity token", err)
	}

	identity, err := s.identities.GetBySubject(ctx, claims.Iss, claims.Sub)
	if err == nil {
		s.logger.Info("identity_signed_in",
			zap.String("owner_id", identity.OwnerID()),
			zap.String("provider", string(identity.Provider)),
		)
		return s.issue(op, identity)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	identity = &models.Identity{
		ID:       uuid.New(),
		Email:    claims.Email,
		Provider: models.IdentityProviderOIDC,
		Subject:  claims.Sub,
		Issuer:   claims.Iss,
	}
	if claims.Name != "" {
		name := claims.Name
		identity.Name = &name
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if !errors.Is(err, database.ErrIdentityExists) {
			return nil, err
		}
		// a concurrent first sign-in of the same subject may have won
		existing, getErr := s.identities.GetBySubject(ctx, claims.Iss, claims.Sub)
		if getErr != nil {
			return nil, apperrors.Auth(op, "This email is already registered with another sign-in method", err)
		}
		return s.issue(op, existing)
	}
	if err := s.createProfile(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("identity_signed_up",
		zap.String("owner_id", identity.OwnerID()),
		zap.String("provider", string(identity.Provider)),
	)
	return s.issue(op, identity)
}

// Authenticate resolves a session token to its identity
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Identity, *models.JWTClaims, error) {
	const op = "identity.Authenticate"

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, apperrors.Auth(op, "Invalid or expired session", err)
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.Jti)
	if err != nil {
		return nil, nil, apperrors.Internal(op, err)
	}
	if revoked {
		return nil, nil, apperrors.Auth(op, "Session has been signed out", nil)
	}

	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return nil, nil, apperrors.Auth(op, "Invalid or expired session", err)
	}
	identity, err := s.identities.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, apperrors.Auth(op, "Account no longer exists", err)
	}
	if err != nil {
		return nil, nil, err
	}
	return identity, claims, nil
}

// SignOut revokes the session identified by claims
func (s *Service) SignOut(ctx context.Context, claims *models.JWTClaims) error {
	const op = "identity.SignOut"

	if err := s.revoker.Revoke(ctx, claims.Jti, unixTime(claims.Exp)); err != nil {
		return apperrors.Internal(op, err)
	}
	s.logger.Info("identity_signed_out", zap.String("owner_id", claims.Sub))
	return nil
}

// DeleteIdentity removes the identity owning ownerID
func (s *Service) DeleteIdentity(ctx context.Context, ownerID string) error {
	const op = "identity.DeleteIdentity"

	id, err := uuid.Parse(ownerID)
	if err != nil {
		return apperrors.Validation(op, "invalid owner id")
	}
	if err := s.identities.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("identity_deleted", zap.String("owner_id", ownerID))
	return nil
}

func (s *Service) issue(op string, identity *models.Identity) (*Result, error) {
	session, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return &Result{Identity: identity, Session: session}, nil
}
