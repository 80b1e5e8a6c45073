package jwtmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator(tt.secret, tt.expiration)

			if string(gen.secret) != tt.secret {
				t.Errorf("expected secret %q, got %q", tt.secret, string(gen.secret))
			}
			if gen.expiration != tt.expiration {
				t.Errorf("expected expiration %v, got %v", tt.expiration, gen.expiration)
			}
		})
	}
}

// TestGenerator_GenerateToken は生成されたJWTトークンが有効でsidクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sessionID string
	}{
		{"uuid session", "6f1c2d1e-8d3b-4b7a-9f55-0c1d2e3f4a5b"},
		{"short id", "s-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator("test-secret", time.Hour)
			tokenStr, err := gen.GenerateToken(tt.sessionID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var claims SessionClaims
			token, err := jwt.ParseWithClaims(tokenStr, &claims, func(tok *jwt.Token) (interface{}, error) {
				if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
					t.Errorf("unexpected signing method: %v", tok.Header["alg"])
				}
				return []byte("test-secret"), nil
			})
			if err != nil {
				t.Fatalf("failed to parse token: %v", err)
			}
			if !token.Valid {
				t.Error("expected token to be valid")
			}
			if claims.SessionID != tt.sessionID {
				t.Errorf("expected sid %q, got %q", tt.sessionID, claims.SessionID)
			}
			if claims.Subject != tt.sessionID {
				t.Errorf("expected sub %q, got %q", tt.sessionID, claims.Subject)
			}
		})
	}
}

// TestGenerator_GenerateToken_Expiration はトークンのexp・iatクレームが注入した時刻に基づくことを検証します。
func TestGenerator_GenerateToken_Expiration(t *testing.T) {
	t.Parallel()

	fixed := time.Now().Truncate(time.Second)
	gen := NewGenerator("test-secret", 2*time.Hour)
	gen.now = func() time.Time { return fixed }

	tokenStr, err := gen.GenerateToken("s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var claims SessionClaims
	if _, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}); err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}

	if got := claims.IssuedAt.Unix(); got != fixed.Unix() {
		t.Errorf("expected iat %d, got %d", fixed.Unix(), got)
	}
	if got := claims.ExpiresAt.Unix(); got != fixed.Add(2*time.Hour).Unix() {
		t.Errorf("expected exp %d, got %d", fixed.Add(2*time.Hour).Unix(), got)
	}
}
