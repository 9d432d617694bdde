package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const minRSABits = 2048

// KeyPair is an RSA key used to sign RS256 tokens.
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`           // Key type
	Use string `json:"use,omitempty"` // sig
	Kid string `json:"kid,omitempty"` // Key ID
	Alg string `json:"alg,omitempty"` // Algorithm
	N   string `json:"n"`             // Modulus
	E   string `json:"e"`             // Exponent
}

// GenerateRSAKeyPair creates a new key. Sizes below 2048 bits are raised to 2048.
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < minRSABits {
		bits = minRSABits
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "[GenerateRSAKeyPair] generate")
	}
	return &KeyPair{KeyID: keyID, PrivateKey: privateKey}, nil
}

// LoadRSAKeyPairFromPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8 ("PRIVATE KEY") blocks.
func LoadRSAKeyPairFromPEM(keyID string, pemData []byte) (*KeyPair, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("[LoadRSAKeyPairFromPEM] no PEM block found")
	}

	var privateKey *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "[LoadRSAKeyPairFromPEM] parse PKCS1")
		}
		privateKey = key
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "[LoadRSAKeyPairFromPEM] parse PKCS8")
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("[LoadRSAKeyPairFromPEM] key is %T, not RSA", key)
		}
		privateKey = rsaKey
	default:
		return nil, errors.Errorf("[LoadRSAKeyPairFromPEM] unsupported PEM block %q", block.Type)
	}

	if privateKey.N.BitLen() < minRSABits {
		return nil, errors.Errorf("[LoadRSAKeyPairFromPEM] key is %d bits, need at least %d", privateKey.N.BitLen(), minRSABits)
	}
	return &KeyPair{KeyID: keyID, PrivateKey: privateKey}, nil
}

// ExportPrivateKeyPEM encodes the key as a PKCS#1 PEM block.
func (kp *KeyPair) ExportPrivateKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.PrivateKey),
	})
}

// ToJWK converts the public half of the key to JWK format
func (kp *KeyPair) ToJWK() JWK {
	pub := kp.PrivateKey.PublicKey
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.KeyID,
		Alg: jwt.SigningMethodRS256.Alg(),
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// KeyPairSigner implements Signer using RS256. Tokens carry the key id in the kid header.
type KeyPairSigner struct {
	keyPair *KeyPair
}

var _ Signer = (*KeyPairSigner)(nil)

func NewKeyPairSigner(keyPair *KeyPair) (*KeyPairSigner, error) {
	if keyPair == nil || keyPair.PrivateKey == nil {
		return nil, errors.New("[NewKeyPairSigner] key pair is required")
	}
	return &KeyPairSigner{keyPair: keyPair}, nil
}

func (a *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if a.keyPair.KeyID != "" {
		t.Header["kid"] = a.keyPair.KeyID
	}
	signed, err := t.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with RSA key")
	}
	return signed, nil
}

func (a *KeyPairSigner) GetVerificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return &a.keyPair.PrivateKey.PublicKey, nil
}

func (a *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

// GetJWKS returns the key set clients use to verify tokens offline.
func (a *KeyPairSigner) GetJWKS() *JWKS {
	return &JWKS{Keys: []JWK{a.keyPair.ToJWK()}}
}

// KeySetPublisher is implemented by signers whose verification key can be published.
type KeySetPublisher interface {
	GetJWKS() *JWKS
}
