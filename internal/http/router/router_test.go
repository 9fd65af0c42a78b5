package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/config"
	"github.com/ignatzorin/vialert-backend/internal/http/handlers"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/photo"
	"github.com/ignatzorin/vialert-backend/internal/repository/memory"
	"github.com/ignatzorin/vialert-backend/internal/service"
	"github.com/ignatzorin/vialert-backend/internal/storage"
	"github.com/ignatzorin/vialert-backend/internal/ws"
)

func newTestEngine(t *testing.T, rateLimit int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimitLimit:  rateLimit,
		RateLimitPeriod: time.Minute,
	}

	store := memory.NewStore()
	db, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hub := ws.NewHub()
	notifier := ws.NewNotificationAdapter(hub)
	tokens := service.NewTokenManager("access-secret-for-tests-0123456789", "refresh-secret-for-tests-012345678", 15*time.Minute, time.Hour)
	profiles := service.NewProfileService(store, notifier)
	alerts := service.NewAlertService(store, profiles, storage.NewOutbox(db))
	nav := service.NewNavigationService(nil, nil, notifier)
	auth := service.NewAuthService(profiles, tokens, storage.NewRevocations(db), nil)

	return SetupRouter(cfg, Handlers{
		Auth:       handlers.NewAuthHandler(auth),
		Profile:    handlers.NewProfileHandler(profiles),
		Alert:      handlers.NewAlertHandler(alerts, photo.NewProcessor(2)),
		Navigation: handlers.NewNavigationHandler(nav),
		WS:         handlers.NewWSHandler(hub, tokens, ws.NewCommands(hub, alerts, nav), notifier, profiles),
		Health:     handlers.NewHealthHandler(store, "memory", hub.ClientCount),
	}, tokens)
}

func serve(engine *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	engine := newTestEngine(t, 10)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/alert-types", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/alerts", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/profile", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(engine, http.MethodGet, "/api/alerts/nope", "", "").Code)

	w := serve(engine, http.MethodPost, "/api/auth/anonymous", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var signIn struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &signIn))

	w = serve(engine, http.MethodGet, "/api/profile", signIn.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trust_score":100`)

	w = serve(engine, http.MethodPost, "/api/alerts", signIn.AccessToken, `{"lat":-3.99313,"lng":-79.20422,"type":"control","duration_minutes":60}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(engine, http.MethodGet, "/api/alerts", "", "")
	assert.Contains(t, w.Body.String(), `"type":"control"`)
}

func TestRouter_WebsocketRequiresToken(t *testing.T) {
	engine := newTestEngine(t, 10)

	w := serve(engine, http.MethodGet, "/api/ws", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodGet, "/api/ws?token=garbage", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	engine := newTestEngine(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_AuthRateLimit(t *testing.T) {
	engine := newTestEngine(t, 2)

	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/auth/anonymous", "", "").Code)
	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/auth/anonymous", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/auth/anonymous", "", "").Code)
}

func TestRouter_Metrics(t *testing.T) {
	engine := newTestEngine(t, 10)
	serve(engine, http.MethodGet, "/api/alerts", "", "")

	w := serve(engine, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vialert_http_request_duration_seconds")
}
