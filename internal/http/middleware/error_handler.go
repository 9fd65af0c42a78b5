package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

const internalMessage = "внутренняя ошибка сервера"

// ErrorHandler обрабатывает ошибки централизованно.
// Статус берётся из кода AppError, внутренние ошибки маскируются.
func ErrorHandler() gin.HandlerFunc {
	log := logger.Component("http")

	return func(c *gin.Context) {
		c.Next()

		// Ответ уже отправлен
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.StatusOf(err)
		code := apperror.CodeOf(err)

		entry := log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"code":   code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		if status >= 500 {
			entry.Error("Request error")
		} else {
			entry.Debug("Request rejected")
		}

		message := apperror.MessageOf(err)
		if code == apperror.ErrCodeInternal {
			message = internalMessage
		}
		c.JSON(status, dto.ErrorResponse{Error: message, Code: string(code)})
	}
}

func abortWithError(c *gin.Context, err *apperror.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, dto.ErrorResponse{Error: err.Message, Code: string(err.Code)})
}
