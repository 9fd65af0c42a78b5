package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/http/handlers/common"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/service"
	"github.com/ignatzorin/vialert-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub          *ws.Hub
	tokenManager *service.TokenManager
	commands     ws.CommandHandler
	notifier     *ws.NotificationAdapter
	profiles     *service.ProfileService
	upgrader     websocket.Upgrader
	log          *logrus.Entry
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(
	hub *ws.Hub,
	tokens *service.TokenManager,
	commands ws.CommandHandler,
	notifier *ws.NotificationAdapter,
	profiles *service.ProfileService,
) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		commands:     commands,
		notifier:     notifier,
		profiles:     profiles,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Component("ws"),
	}
}

// Handle обслуживает GET /api/ws?token=...
// После подключения клиент сразу получает текущий снимок отчётов и свой профиль.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.Fail(c, apperror.ErrAuthRequired)
		return
	}

	identity, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil || identity.UserID == uuid.Nil {
		common.Fail(c, apperror.ErrInvalidToken)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже ответил клиенту.
		h.log.WithError(err).Debug("upgrade не выполнен")
		return
	}

	client := ws.NewClient(conn, h.hub, identity.UserID, h.commands)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}

	profile, err := h.profiles.Ensure(c.Request.Context(), identity.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Warn("профиль недоступен при подключении")
	}
	h.notifier.Welcome(identity.UserID, profile)

	client.Run(c.Request.Context())
}
