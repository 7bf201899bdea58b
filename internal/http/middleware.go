package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthMiddleware validates access tokens for user endpoints
func JWTAuthMiddleware(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromHeader(c, secretKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// OptionalJWTMiddleware attaches the user id when a valid token is
// present but lets guests through. Checkout serves both.
func OptionalJWTMiddleware(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := userIDFromHeader(c, secretKey); ok {
			c.Set("userID", userID)
		}
		c.Next()
	}
}

func userIDFromHeader(c *gin.Context, secretKey string) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return "", false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}

	// uid first, sub as the standard fallback
	if uid, ok := claims["uid"].(string); ok {
		return uid, true
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub, true
	}
	return "", false
}

// InternalAuthMiddleware validates operator/internal calls with a
// constant-time comparison
func InternalAuthMiddleware(internalSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Internal-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(internalSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized internal access"})
			c.Abort()
			return
		}
		c.Next()
	}
}
