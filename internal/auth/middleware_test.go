package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newTestRouter(secret, audience string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", JWTMiddleware(secret, audience), func(c *gin.Context) {
		userID, ok := GetUserID(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, userID)
	})
	return router
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestJWTMiddlewareInjectsSubject(t *testing.T) {
	router := newTestRouter(testSecret, "")
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-42"))

	resp := serve(router, "Bearer "+token)
	if resp.Code != http.StatusOK || resp.Body.String() != "user-42" {
		t.Fatalf("expected user-42, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestJWTMiddlewareRejectsBadRequests(t *testing.T) {
	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty token":    "Bearer ",
		"wrong secret":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("user-1")),
		"expired":        "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"no subject":     "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")),
	}
	router := newTestRouter(testSecret, "")
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			resp := serve(router, header)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.Code)
			}
		})
	}
}

func TestJWTMiddlewareChecksAudience(t *testing.T) {
	router := newTestRouter(testSecret, "grovia-mobile")

	claims := validClaims("user-1")
	claims.Audience = jwt.ClaimStrings{"someone-else"}
	if resp := serve(router, "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong audience, got %d", resp.Code)
	}

	claims.Audience = jwt.ClaimStrings{"grovia-mobile"}
	if resp := serve(router, "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for matching audience, got %d", resp.Code)
	}
}

func TestJWTMiddlewareWithoutSecretRejects(t *testing.T) {
	router := newTestRouter("", "")
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-1"))

	if resp := serve(router, "Bearer "+token); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
