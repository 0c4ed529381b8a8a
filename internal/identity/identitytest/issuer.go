// Package identitytest mints signed ID tokens for tests that exercise
// identity verification end to end.
package identitytest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/JaimeStill/triage/internal/identity"
)

const (
	IssuerURL = "https://login.triage.test"
	ClientID  = "triage-api"
)

// Issuer signs RS256 ID tokens with a throwaway key.
type Issuer struct {
	Config identity.Config
	key    *rsa.PrivateKey
}

// New generates a signing key. It panics if key generation fails.
func New() *Issuer {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	cfg := identity.Config{Issuer: IssuerURL, ClientID: ClientID}
	if err := cfg.Finalize(nil); err != nil {
		panic(err)
	}

	return &Issuer{Config: cfg, key: key}
}

// System returns a verifier that trusts this issuer's key.
func (i *Issuer) System(logger *slog.Logger) identity.System {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&i.key.PublicKey}}
	return identity.NewWithKeySet(&i.Config, keys, logger)
}

// JWKS returns the issuer's public key as a JSON Web Key Set document.
func (i *Issuer) JWKS() []byte {
	pub := i.key.PublicKey
	enc := base64.RawURLEncoding

	doc, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(pub.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	if err != nil {
		panic(err)
	}
	return doc
}

// Token returns a valid ID token for a.
func (i *Issuer) Token(a identity.Actor) string {
	return i.Sign(jwt.MapClaims{
		"iss":   i.Config.Issuer,
		"aud":   i.Config.ClientID,
		"sub":   a.ID,
		"email": a.Email,
		"role":  string(a.Role),
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

// Sign signs arbitrary claims.
func (i *Issuer) Sign(claims jwt.MapClaims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		panic(err)
	}
	return signed
}
