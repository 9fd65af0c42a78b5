package common

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// Classify помечает ошибки связи с базой как NetworkError; остальные возвращает как есть.
// По NetworkError сервис решает, ставить ли отчёт в офлайн-очередь.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if IsConnectionError(err) {
		return apperror.Network(err, "хранилище недоступно")
	}
	return err
}

// IsConnectionError - сбой соединения, а не ошибка запроса.
func IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Класс 08 - connection exception, 57P0x - сервер останавливается.
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P0")
	}
	return false
}
