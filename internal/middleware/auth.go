package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dethiai/dethiai-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ContextKeyOwnerID is the Gin context key for the authenticated user ID.
	ContextKeyOwnerID = "owner_id"
)

// RequireUser validates a bearer JWT from the Authorization header and puts
// the subject claim on the context as the owner ID. Every document and
// generation request is scoped to that owner.
func RequireUser(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractBearer(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		ownerID, err := validateToken(tokenStr, secret)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyOwnerID, ownerID)
		c.Next()
	}
}

// GetOwnerID retrieves the authenticated user ID from the Gin context.
func GetOwnerID(c *gin.Context) string {
	val, exists := c.Get(ContextKeyOwnerID)
	if !exists {
		return ""
	}
	ownerID, ok := val.(string)
	if !ok {
		return ""
	}
	return ownerID
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func validateToken(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Subject, nil
}
