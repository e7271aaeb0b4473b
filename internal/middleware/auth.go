package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"conversation-service/internal/logger"
)

var ErrMissingSubject = errors.New("token has no subject")

// RoleService is carried by tokens issued to other backend services.
const RoleService = "service"

// Context keys set by AuthMiddleware.
const (
	userIDKey = "userID"
	roleKey   = "role"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   string
}

// TokenValidator resolves a bearer token to the caller's identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (Identity, error)
}

// Claims are issued by the identity service. Subject carries the user id; older
// tokens put it in user_id instead.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 tokens signed with a shared secret.
type JWTValidator struct {
	secret []byte
	issuer string
}

func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer}
}

func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if strings.TrimSpace(userID) == "" {
		return Identity{}, ErrMissingSubject
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}

// AuthMiddleware validates the Authorization header and stores the caller as
// userID and its token role as role.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, identity.UserID)
		c.Set(roleKey, identity.Role)
		c.Request = c.Request.WithContext(logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: identity.UserID}))
		c.Next()
	}
}

// RequireRole aborts with 403 unless AuthMiddleware resolved a token carrying role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(roleKey) != role {
			slog.WarnContext(c.Request.Context(), "caller lacks required role", "required_role", role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
