package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/http/middleware"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// CurrentUserID extracts user ID from Gin context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrAuthRequired
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrAuthRequired
	}

	return userID, nil
}

// CurrentIdentity extracts the full token identity from Gin context.
func CurrentIdentity(c *gin.Context) (service.Identity, error) {
	raw, exists := c.Get(middleware.ContextIdentityKey)
	if !exists {
		return service.Identity{}, apperror.ErrAuthRequired
	}

	identity, ok := raw.(service.Identity)
	if !ok || identity.UserID == uuid.Nil {
		return service.Identity{}, apperror.ErrAuthRequired
	}

	return identity, nil
}

// ParseUUIDParam parses UUID from URL parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.Validation("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.Validation("неверный формат UUID")
	}

	return parsed, nil
}

// BindJSON binds JSON request and converts binding failures into validation errors.
func BindJSON(c *gin.Context, req any) error {
	return BindWith(c, req, binding.JSON)
}

// BindWith binds the request with the given binding (JSON, form or multipart).
func BindWith(c *gin.Context, req any, b binding.Binding) error {
	if err := c.ShouldBindWith(req, b); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error())
	}
	return nil
}

// Fail hands the error to middleware.ErrorHandler and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// RespondJSON sends a JSON response with the given status code and data.
func RespondJSON(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, data)
}

// RespondNoContent sends 204 without a body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
