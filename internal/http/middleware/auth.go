package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey   = "userID"
	ContextIdentityKey = "identity"
)

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortWithError(c, apperror.ErrAuthRequired)
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		identity, err := tokens.ParseAccess(raw)
		if err != nil || identity.UserID == uuid.Nil {
			abortWithError(c, apperror.ErrInvalidToken)
			return
		}

		c.Set(ContextUserIDKey, identity.UserID)
		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}
