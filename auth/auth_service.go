package auth

import (
	"context"

	"github.com/jrsteele09/go-identity-service/credentials"
	"github.com/jrsteele09/go-identity-service/internal/metrics"
	"github.com/jrsteele09/go-identity-service/internal/utils"
	"github.com/jrsteele09/go-identity-service/token"
	"github.com/jrsteele09/go-identity-service/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opUpdatePassword = "update_password"
	opLogout         = "logout"
)

// AccessToken is the body returned by every operation that signs a token.
type AccessToken struct {
	AccessToken string `json:"access_token"`
}

// Service registers users, checks their credentials and manages session tokens.
type Service struct {
	users    users.UserRepo
	hasher   credentials.Hasher
	issuer   *token.Issuer
	registry token.Registry
	logger   zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger replaces the global zerolog logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(
	userRepo users.UserRepo,
	hasher credentials.Hasher,
	issuer *token.Issuer,
	registry token.Registry,
	options ...ServiceOption,
) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] issuer is required")
	}
	if registry == nil {
		return nil, errors.New("[NewService] revocation registry is required")
	}

	s := &Service{
		users:    userRepo,
		hasher:   hasher,
		issuer:   issuer,
		registry: registry,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register creates a user and signs a token for it.
// It returns ErrConflict when the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (AccessToken, error) {
	_, err := s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		s.record(opRegister, metrics.OutcomeConflict)
		return AccessToken{}, ErrConflict
	case !errors.Is(err, users.ErrNotFound):
		s.record(opRegister, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Register] FindByUsername")
	}

	digest, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.record(opRegister, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Register] Hash")
	}

	user, err := s.users.Create(ctx, &users.User{Username: username, PasswordHash: digest})
	if err != nil {
		if errors.Is(err, users.ErrConflict) {
			s.record(opRegister, metrics.OutcomeConflict)
			return AccessToken{}, ErrConflict
		}
		s.record(opRegister, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Register] Create")
	}

	accessToken, err := s.issue(user.Profile())
	if err != nil {
		s.record(opRegister, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Register]")
	}
	s.record(opRegister, metrics.OutcomeSuccess)
	return accessToken, nil
}

// Login checks the credentials and signs a token. An unknown user and a wrong
// password both return ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (AccessToken, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.logger.Debug().Str("username", username).Msg("login: user not found")
			s.record(opLogin, metrics.OutcomeUnauthorized)
			return AccessToken{}, ErrUnauthorized
		}
		s.record(opLogin, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Login] FindByUsername")
	}

	if !s.hasher.Verify(ctx, password, user.PasswordHash) {
		s.logger.Debug().Int64("user_id", user.ID).Msg("login: password mismatch")
		s.record(opLogin, metrics.OutcomeUnauthorized)
		return AccessToken{}, ErrUnauthorized
	}

	accessToken, err := s.issue(user.Profile())
	if err != nil {
		s.record(opLogin, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.Login]")
	}
	s.record(opLogin, metrics.OutcomeSuccess)
	return accessToken, nil
}

// UpdatePassword replaces the user's password and signs a fresh token.
// Tokens issued before the change remain valid until they expire or are logged out.
func (s *Service) UpdatePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (AccessToken, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.logger.Debug().Int64("user_id", userID).Msg("update password: user not found")
			s.record(opUpdatePassword, metrics.OutcomeUnauthorized)
			return AccessToken{}, ErrUserNotFound
		}
		s.record(opUpdatePassword, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.UpdatePassword] FindByID")
	}

	if !s.hasher.Verify(ctx, currentPassword, user.PasswordHash) {
		s.logger.Debug().Int64("user_id", userID).Msg("update password: password mismatch")
		s.record(opUpdatePassword, metrics.OutcomeUnauthorized)
		return AccessToken{}, ErrPasswordMismatch
	}

	digest, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		s.record(opUpdatePassword, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.UpdatePassword] Hash")
	}

	if err := s.users.Update(ctx, userID, users.UserUpdate{PasswordHash: utils.Ptr(digest)}); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.record(opUpdatePassword, metrics.OutcomeUnauthorized)
			return AccessToken{}, ErrUserNotFound
		}
		s.record(opUpdatePassword, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.UpdatePassword] Update")
	}

	accessToken, err := s.issue(user.Profile())
	if err != nil {
		s.record(opUpdatePassword, metrics.OutcomeError)
		return AccessToken{}, errors.Wrap(err, "[Service.UpdatePassword]")
	}
	s.record(opUpdatePassword, metrics.OutcomeSuccess)
	return accessToken, nil
}

// Logout revokes rawToken. The token is not verified first; revoking an
// arbitrary string only makes that string unusable.
func (s *Service) Logout(rawToken string) {
	// zero expiry when the token cannot be parsed; the entry is then never swept
	expiresAt, _ := s.issuer.ExpiresAt(rawToken)
	s.registry.Revoke(rawToken, expiresAt)
	metrics.TokensRevoked.Inc()
	s.record(opLogout, metrics.OutcomeSuccess)
}

// Authenticate returns the claims of rawToken. A logged-out token fails with
// token.ErrTokenRevoked before its signature is checked; any other failure wraps
// token.ErrInvalidToken.
func (s *Service) Authenticate(rawToken string) (*token.Claims, error) {
	if s.IsTokenBlacklisted(rawToken) {
		return nil, token.ErrTokenRevoked
	}
	claims, err := s.issuer.Verify(rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Authenticate]")
	}
	return claims, nil
}

// IsTokenBlacklisted reports whether rawToken has been logged out.
func (s *Service) IsTokenBlacklisted(rawToken string) bool {
	return s.registry.IsRevoked(rawToken)
}

func (s *Service) issue(profile users.Profile) (AccessToken, error) {
	signed, err := s.issuer.Issue(profile.ID, profile.Username)
	if err != nil {
		return AccessToken{}, errors.Wrap(err, "issue token")
	}
	metrics.TokensIssued.Inc()
	return AccessToken{AccessToken: signed}, nil
}

func (s *Service) record(operation, outcome string) {
	metrics.AuthOperations.WithLabelValues(operation, outcome).Inc()
}
