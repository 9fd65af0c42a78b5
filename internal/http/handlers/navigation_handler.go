package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/http/handlers/common"
	"github.com/ignatzorin/vialert-backend/internal/service"
	"github.com/ignatzorin/vialert-backend/internal/validation"
)

// NavigationHandler - поиск мест, маршруты и позиция в режиме навигации.
type NavigationHandler struct {
	nav *service.NavigationService
}

func NewNavigationHandler(nav *service.NavigationService) *NavigationHandler {
	return &NavigationHandler{nav: nav}
}

// Geocode обрабатывает GET /geocode?q=...
func (h *NavigationHandler) Geocode(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	query, err := validation.ValidateSearchQuery(c.Query("q"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	places, err := h.nav.Search(c.Request.Context(), userID, query)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, places)
}

// PlanRoute обрабатывает POST /routes.
func (h *NavigationHandler) PlanRoute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.RouteRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	state, err := h.nav.PlanRoute(c.Request.Context(), userID, req.Origin.Point(), req.Destination.Point())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewNavigationStateResponse(state))
}

// ClearRoute обрабатывает DELETE /routes.
func (h *NavigationHandler) ClearRoute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	h.nav.ClearRoute(userID)
	common.RespondNoContent(c)
}

// UpdateLocation обрабатывает POST /location.
func (h *NavigationHandler) UpdateLocation(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.LocationRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	state, err := h.nav.UpdateLocation(c.Request.Context(), userID, req.Point())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewNavigationStateResponse(state))
}

// State обрабатывает GET /navigation.
func (h *NavigationHandler) State(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewNavigationStateResponse(h.nav.State(userID)))
}
