package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(subject string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "identity",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
}

func TestJWTValidator(t *testing.T) {
	v := NewJWTValidator(testSecret, "identity")
	ctx := context.Background()

	identity, err := v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("candidate1")))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "candidate1"}, identity)

	legacy := Claims{UserID: "recruiter1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity"}}
	identity, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), legacy))
	require.NoError(t, err)
	assert.Equal(t, "recruiter1", identity.UserID)

	service := validClaims("profile-service")
	service.Role = RoleService
	identity, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), service))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "profile-service", Role: RoleService}, identity)

	_, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("candidate1")))
	assert.Error(t, err)

	expired := validClaims("candidate1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired))
	assert.Error(t, err)

	wrongIssuer := validClaims("candidate1")
	wrongIssuer.Issuer = "someone-else"
	_, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer))
	assert.Error(t, err)

	_, err = v.ValidateToken(ctx, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("")))
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func newRouter(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), AuthMiddleware(validator))
	r.GET("/me", func(c *gin.Context) {
		fields := logger.GetLogFields(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString("userID"),
			"log_user":   fields.UserID,
			"request_id": fields.RequestID,
		})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	router := newRouter(NewJWTValidator(testSecret, ""))
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("candidate1"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"candidate1","log_user":"candidate1","request_id":"req-1"}`, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	router := newRouter(NewJWTValidator(testSecret, ""))

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"invalid":   "Bearer not-a-jwt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader), name)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(NewJWTValidator(testSecret, "")), RequireRole(RoleService))
	r.POST("/internal", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(claims Claims) int {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, call(validClaims("candidate1")))

	recruiter := validClaims("recruiter1")
	recruiter.Role = "recruiter"
	assert.Equal(t, http.StatusForbidden, call(recruiter))

	service := validClaims("profile-service")
	service.Role = RoleService
	assert.Equal(t, http.StatusNoContent, call(service))
}
