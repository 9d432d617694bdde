package token

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
	"github.com/pkg/errors"
)

// DefaultTTL is how long an access token stays valid when no TTL is configured.
const DefaultTTL = time.Hour

// ErrInvalidToken is returned for any token that fails verification:
// malformed, bad signature, wrong algorithm, expired or missing a subject.
var ErrInvalidToken = apperrors.ErrInvalidToken

// ErrTokenRevoked is returned for a token that was logged out.
var ErrTokenRevoked = apperrors.ErrTokenRevoked

// Claims are the contents of a session token. Subject holds the user id in decimal form.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidToken, "subject is not a user id")
	}
	return id, nil
}

// Issuer creates and verifies stateless session tokens. It keeps no per-token state.
type Issuer struct {
	signer  Signer
	ttl     time.Duration
	name    string
	nowFunc func() time.Time
}

type IssuerOption func(*Issuer)

// WithTTL sets how long issued tokens remain valid.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerName sets the iss claim. Verification then requires the same value.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.name = name
	}
}

// WithNowFunc overrides the clock (primarily for testing)
func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

// NewIssuer creates an Issuer signing with signer.
func NewIssuer(signer Signer, options ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}
	i := &Issuer{
		signer:  signer,
		ttl:     DefaultTTL,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// JWKS returns the published key set when the signer is asymmetric.
func (i *Issuer) JWKS() (*JWKS, bool) {
	publisher, ok := i.signer.(KeySetPublisher)
	if !ok {
		return nil, false
	}
	return publisher.GetJWKS(), true
}

// Issue signs a new token for the user.
func (i *Issuer) Issue(subject int64, username string) (string, error) {
	now := i.nowFunc()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   strconv.FormatInt(subject, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Username: username,
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] sign")
	}
	return signed, nil
}

// Verify checks the signature and expiry of rawToken and returns its claims.
// Every failure wraps ErrInvalidToken.
func (i *Issuer) Verify(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrap(ErrInvalidToken, "empty token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, i.signer.GetVerificationKey, i.parserOptions()...)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// ExpiresAt reads the exp claim without verifying the signature.
// It is only used to know when a revoked token can be forgotten.
func (i *Issuer) ExpiresAt(rawToken string) (time.Time, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (i *Issuer) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(i.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		// reject non-canonical base64 so one token has exactly one string form
		jwt.WithStrictDecoding(),
	}
	if i.name != "" {
		opts = append(opts, jwt.WithIssuer(i.name))
	}
	return opts
}
