package config

import "time"

// devJWTSecret signs tokens in DEV when JWT_SECRET is unset.
const devJWTSecret = "dev-only-insecure-secret"

type TokenConfig interface {
	GetJWTSecret() string
	GetSigningKeyFile() string
	GetSigningKeyID() string
	GetTokenIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRevocationSweepInterval() time.Duration
}

type Tokens struct {
	JWTSecret               string        `env:"JWT_SECRET"`
	SigningKeyFile          string        `env:"JWT_SIGNING_KEY_FILE"`
	SigningKeyID            string        `env:"JWT_SIGNING_KEY_ID" envDefault:"default"`
	TokenIssuer             string        `env:"TOKEN_ISSUER"`
	AccessTokenTTL          time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RevocationSweepInterval time.Duration `env:"REVOCATION_SWEEP_INTERVAL" envDefault:"10m"`
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetJWTSecret() string {
	if t.JWTSecret == "" {
		return devJWTSecret
	}
	return t.JWTSecret
}

// GetSigningKeyFile is the path of an RSA private key in PEM form. When set,
// tokens are signed with RS256 instead of the HMAC secret.
func (t Tokens) GetSigningKeyFile() string {
	return t.SigningKeyFile
}

func (t Tokens) GetSigningKeyID() string {
	return t.SigningKeyID
}

func (t Tokens) GetTokenIssuer() string {
	return t.TokenIssuer
}

func (t Tokens) GetAccessTokenTTL() time.Duration {
	return t.AccessTokenTTL
}

// GetRevocationSweepInterval returns how often expired revocations are dropped. Zero disables sweeping.
func (t Tokens) GetRevocationSweepInterval() time.Duration {
	return t.RevocationSweepInterval
}
