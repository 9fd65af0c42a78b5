package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/http/handlers/common"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// AuthHandler предоставляет HTTP слой для входа, обновления токенов и выхода.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Anonymous обрабатывает POST /auth/anonymous.
func (h *AuthHandler) Anonymous(c *gin.Context) {
	result, err := h.auth.SignInAnonymous(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, dto.NewAuthResponse(result))
}

// Google обрабатывает POST /auth/google.
func (h *AuthHandler) Google(c *gin.Context) {
	var req dto.GoogleSignInRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.SignInGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewAuthResponse(result))
}

// Refresh обрабатывает POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewAuthResponse(result))
}

// SignOut обрабатывает POST /auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondNoContent(c)
}

// Me обрабатывает GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, err := common.CurrentIdentity(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.Me(c.Request.Context(), identity)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewAuthResponse(result))
}
