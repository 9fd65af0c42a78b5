package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/vialert-backend/internal/config"
	"github.com/ignatzorin/vialert-backend/internal/http/handlers"
	"github.com/ignatzorin/vialert-backend/internal/http/middleware"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// Handlers - все HTTP хэндлеры приложения.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Profile    *handlers.ProfileHandler
	Alert      *handlers.AlertHandler
	Navigation *handlers.NavigationHandler
	WS         *handlers.WSHandler
	Health     *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)
	api.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/anonymous", h.Auth.Anonymous)
		authGroup.POST("/google", h.Auth.Google)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/signout", h.Auth.SignOut)
	}

	// Публичные маршруты
	api.GET("/alerts", h.Alert.List)
	api.GET("/alerts/:id", middleware.UUIDValidator("id"), h.Alert.Get)
	api.GET("/alert-types", h.Alert.Types)
	api.GET("/ws", h.WS.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.GET("/profile", h.Profile.GetMe)

		protected.POST("/alerts", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Alert.Create)
		protected.POST("/alerts/:id/confirm", middleware.UUIDValidator("id"), h.Alert.Confirm)
		protected.POST("/alerts/:id/dispute", middleware.UUIDValidator("id"), h.Alert.Dispute)

		protected.GET("/geocode", h.Navigation.Geocode)
		protected.POST("/routes", h.Navigation.PlanRoute)
		protected.DELETE("/routes", h.Navigation.ClearRoute)
		protected.POST("/location", h.Navigation.UpdateLocation)
		protected.GET("/navigation", h.Navigation.State)
	}

	return r
}
