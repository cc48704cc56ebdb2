// Package jwt reads the shared secret used to authenticate against the L2
// execution-layer driver's engine API, and mints short-lived bearer tokens
// for it, mirroring taiko-client's pkg/jwt (referenced by prover_test.go as
// jwt.ParseSecretFromFile) plus the golang-jwt/v5 token construction taiko-mono
// depends on transitively via its echo-jwt usage.
package jwt

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ParseSecretFromFile reads a hex-encoded 32-byte JWT secret from path, the
// same format the go-ethereum / taiko-geth --authrpc.jwtsecret flag expects.
func ParseSecretFromFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT secret file %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(raw))
	trimmed = strings.TrimPrefix(trimmed, "0x")
	secret, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to hex-decode JWT secret: %w", err)
	}
	if len(secret) != 32 {
		return nil, fmt.Errorf("JWT secret must be 32 bytes, got %d", len(secret))
	}
	return secret, nil
}

// NewBearerToken mints a token with an `iat` claim, valid for the engine
// API's standard +/-60s clock-skew tolerance. The driver endpoint re-derives
// it on every call rather than caching one token for the process lifetime.
func NewBearerToken(secret []byte) (string, error) {
	claims := jwt.MapClaims{"iat": time.Now().Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT bearer token: %w", err)
	}
	return signed, nil
}
