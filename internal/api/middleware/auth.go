package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const ConnectionContextKey = "connection"

// AuthMiddleware authenticates requests using the connection's API key
func AuthMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		apiKey := strings.TrimSpace(parts[1])
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		// bcrypt hashes are salted, so there is no direct lookup by hash.
		// The repository iterates non-terminated connections and verifies.
		conn, err := repos.Connection.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logger.Warn("Failed to authenticate connection", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		if conn.Status == domain.ConnectionStatusTerminated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "connection is terminated"})
			c.Abort()
			return
		}

		c.Set(ConnectionContextKey, conn)
		c.Next()
	}
}

// GetConnectionFromContext retrieves the authenticated connection from the Gin context
func GetConnectionFromContext(c *gin.Context) (*domain.Connection, bool) {
	conn, exists := c.Get(ConnectionContextKey)
	if !exists {
		return nil, false
	}

	cn, ok := conn.(*domain.Connection)
	return cn, ok
}

// HashAPIKey hashes an API key using bcrypt
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against a stored hash
func VerifyAPIKey(apiKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil
}
