package jwt

import (
	"os"
	"path/filepath"
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func writeSecretFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jwt.hex")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseSecretFromFile(t *testing.T) {
	hex32 := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e"
	path := writeSecretFile(t, hex32+"\n")

	secret, err := ParseSecretFromFile(path)
	if err != nil {
		t.Fatalf("ParseSecretFromFile: %v", err)
	}
	if len(secret) != 32 {
		t.Fatalf("len(secret) = %d, want 32", len(secret))
	}
}

func TestParseSecretFromFile_AcceptsHexPrefix(t *testing.T) {
	hex32 := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e"
	path := writeSecretFile(t, "0x"+hex32)

	if _, err := ParseSecretFromFile(path); err != nil {
		t.Fatalf("ParseSecretFromFile with 0x prefix: %v", err)
	}
}

func TestParseSecretFromFile_RejectsWrongLength(t *testing.T) {
	path := writeSecretFile(t, "deadbeef")
	if _, err := ParseSecretFromFile(path); err == nil {
		t.Fatal("expected error for a secret shorter than 32 bytes, got nil")
	}
}

func TestParseSecretFromFile_RejectsNonHex(t *testing.T) {
	path := writeSecretFile(t, "not-hex-at-all-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	if _, err := ParseSecretFromFile(path); err == nil {
		t.Fatal("expected error for non-hex content, got nil")
	}
}

func TestParseSecretFromFile_MissingFile(t *testing.T) {
	if _, err := ParseSecretFromFile(filepath.Join(t.TempDir(), "missing.hex")); err == nil {
		t.Fatal("expected error reading a missing file, got nil")
	}
}

func TestNewBearerToken_ProducesVerifiableToken(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}

	signed, err := NewBearerToken(secret)
	if err != nil {
		t.Fatalf("NewBearerToken: %v", err)
	}

	parsed, err := jwtlib.Parse(signed, func(token *jwtlib.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		t.Fatalf("parsing the minted token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("minted token did not validate against its own secret")
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		t.Fatal("claims not a MapClaims")
	}
	if _, ok := claims["iat"]; !ok {
		t.Fatal("minted token missing iat claim")
	}
}

func TestNewBearerToken_RejectsWrongSecret(t *testing.T) {
	secret := make([]byte, 32)
	signed, err := NewBearerToken(secret)
	if err != nil {
		t.Fatalf("NewBearerToken: %v", err)
	}

	wrong := make([]byte, 32)
	wrong[0] = 0xff
	if _, err := jwtlib.Parse(signed, func(token *jwtlib.Token) (interface{}, error) {
		return wrong, nil
	}); err == nil {
		t.Fatal("expected verification failure against the wrong secret, got nil")
	}
}
