package jwtmw

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

// TestMain はテスト実行前にGinをテストモードに設定します。
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// serve は /sessions/:id に対してミドルウェアを適用したルーターでリクエストを処理します。
func serve(secret, path, authHeader string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/sessions/:id", SessionRequired(secret, "id"), func(c *gin.Context) {
		sid, _ := c.Get(ContextSessionID)
		c.JSON(http.StatusOK, gin.H{"sid": sid})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

// createToken はテスト用に指定されたシークレットとセッションIDで署名済みJWTトークンを生成します。
func createToken(secret, sessionID string, expiration time.Duration) string {
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return signed
}

// TestSessionRequired_Disabled はシークレット未設定時に検証をスキップすることを検証します。
func TestSessionRequired_Disabled(t *testing.T) {
	t.Parallel()

	w := serve("", "/sessions/s-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

// TestSessionRequired_Rejects は不正なトークンが拒否されることを検証します。
func TestSessionRequired_Rejects(t *testing.T) {
	t.Parallel()

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sid": "s-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"malformed token", "Bearer not.a.valid.token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + createToken("wrong-secret", "s-1", time.Hour), http.StatusUnauthorized},
		{"expired token", "Bearer " + createToken(testSecret, "s-1", -time.Hour), http.StatusUnauthorized},
		{"none algorithm", "Bearer " + unsigned, http.StatusUnauthorized},
		{"other session", "Bearer " + createToken(testSecret, "s-2", time.Hour), http.StatusForbidden},
		{"missing sid", "Bearer " + createToken(testSecret, "", time.Hour), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := serve(testSecret, "/sessions/s-1", tt.authHeader)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

// TestSessionRequired_ValidToken は有効なトークンで通過し、コンテキストにセッションIDが設定されることを検証します。
func TestSessionRequired_ValidToken(t *testing.T) {
	t.Parallel()

	token := createToken(testSecret, "s-1", time.Hour)

	tests := []struct {
		name       string
		path       string
		authHeader string
	}{
		{"bearer header", "/sessions/s-1", "Bearer " + token},
		{"query parameter", "/sessions/s-1?token=" + token, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := serve(testSecret, tt.path, tt.authHeader)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
			}
			if want := `{"sid":"s-1"}`; w.Body.String() != want {
				t.Errorf("expected body %s, got %s", want, w.Body.String())
			}
		})
	}
}

// TestSessionRequired_GeneratedToken はGeneratorで発行したトークンが受け入れられることを検証します。
func TestSessionRequired_GeneratedToken(t *testing.T) {
	t.Parallel()

	token, err := NewGenerator(testSecret, time.Minute).GenerateToken("s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := serve(testSecret, "/sessions/s-1", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}
