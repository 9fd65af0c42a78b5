package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/config"
	"github.com/ignatzorin/vialert-backend/internal/db"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/vialert-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/vialert-backend/internal/http/router"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/geocoding"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/googleauth"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/photo"
	"github.com/ignatzorin/vialert-backend/internal/infrastructure/routing"
	"github.com/ignatzorin/vialert-backend/internal/jobs"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	postgresrepo "github.com/ignatzorin/vialert-backend/internal/repository"
	"github.com/ignatzorin/vialert-backend/internal/repository/firestoredb"
	"github.com/ignatzorin/vialert-backend/internal/repository/memory"
	"github.com/ignatzorin/vialert-backend/internal/service"
	"github.com/ignatzorin/vialert-backend/internal/storage"
	"github.com/ignatzorin/vialert-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, !cfg.IsProduction())
	goroutine.DefaultRecoveryHandler.SetLogger(logger.RecoveryLogger{})
	mainLog := logger.Component("main")

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось открыть хранилище")
	}
	defer closeStore()

	// Локальная база для офлайн-очереди и отозванных токенов.
	local, err := storage.Open(storage.Config{Path: cfg.OutboxPath, SyncWrites: true, Logger: logger.Log})
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось открыть локальное хранилище")
	}
	defer func() {
		if err := local.Close(); err != nil {
			mainLog.WithError(err).Error("Ошибка закрытия локального хранилища")
		}
	}()
	outbox := storage.NewOutbox(local)

	geocoder, router, err := newNavigationProviders(cfg)
	if err != nil {
		mainLog.WithError(err).Fatal("Не удалось настроить геокодер и маршрутизатор")
	}
	geocodeCache := service.NewGeocodeCache(geocoder, cfg.GeocodeCacheTTL)

	var verifier service.IDTokenVerifier
	if cfg.GoogleClientID != "" {
		v, err := googleauth.NewVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			mainLog.WithError(err).Fatal("Не удалось настроить проверку Google ID token")
		}
		verifier = v
	}

	// Сервисы.
	hub := ws.NewHub()
	notifier := ws.NewNotificationAdapter(hub)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	profiles := service.NewProfileService(store, notifier)
	alerts := service.NewAlertService(store, profiles, outbox)
	nav := service.NewNavigationService(geocodeCache, router, notifier)
	sweep := service.NewSweepService(store, notifier, nav)
	feed := service.NewChangeFeed(store, sweep, profiles)
	auth := service.NewAuthService(profiles, tokenManager, storage.NewRevocations(local), verifier)

	hub.SetDisconnectHandler(nav.Forget)
	commands := ws.NewCommands(hub, alerts, nav)

	goroutine.Go("ws-hub", func() { hub.Run(ctx) })
	goroutine.Go("change-feed", func() { feed.Run(ctx) })
	goroutine.Go("geocode-cache", func() { geocodeCache.Run(ctx) })

	if _, err := sweep.Refresh(ctx); err != nil {
		mainLog.WithError(err).Warn("Первичная очистка не выполнена, повторит планировщик")
	}

	scheduler := jobs.NewScheduler(jobs.Schedules{Sweep: cfg.SweepCron, Outbox: cfg.OutboxCron}, sweep, alerts, outbox)
	if err := scheduler.Start(ctx); err != nil {
		mainLog.WithError(err).Fatal("Не удалось запустить планировщик")
	}

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:       httpHandlers.NewAuthHandler(auth),
		Profile:    httpHandlers.NewProfileHandler(profiles),
		Alert:      httpHandlers.NewAlertHandler(alerts, photo.NewProcessor(cfg.MaxUploadSizeMB)),
		Navigation: httpHandlers.NewNavigationHandler(nav),
		WS:         httpHandlers.NewWSHandler(hub, tokenManager, commands, notifier, profiles),
		Health:     httpHandlers.NewHealthHandler(store, cfg.StoreBackend, hub.ClientCount),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goroutine.Go("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("Ошибка остановки http сервера")
		}
	})

	mainLog.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"backend": cfg.StoreBackend,
	}).Info("HTTP сервер запущен")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		mainLog.WithError(err).Error("Сервер завершился с ошибкой")
	}

	scheduler.Stop()
	sweep.Wait()
	mainLog.Info("Сервер остановлен")
}

// openStore выбирает хранилище по STORE_BACKEND. Возвращённая функция закрывает всё, что было открыто.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		conn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
			safeClose(conn)
			return nil, nil, err
		}
		store, err := postgresrepo.NewPostgresStore(conn, cfg.DatabaseURL)
		if err != nil {
			safeClose(conn)
			return nil, nil, err
		}
		return store, func() {
			closeQuietly(store)
			safeClose(conn)
		}, nil

	case config.StoreBackendFirestore:
		store, err := firestoredb.New(ctx, firestoredb.Config{
			ProjectID:         cfg.FirebaseProjectID,
			CredentialsBase64: cfg.FirebaseCredentials,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { closeQuietly(store) }, nil

	case config.StoreBackendMemory:
		store := memory.NewStore()
		return store, func() { closeQuietly(store) }, nil

	default:
		return nil, nil, fmt.Errorf("main: неизвестный STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// newNavigationProviders выбирает Google Maps при заданном ключе, иначе Nominatim и OSRM.
func newNavigationProviders(cfg *config.Config) (service.Geocoder, service.Router, error) {
	if cfg.GoogleMapsAPIKey == "" {
		return geocoding.NewNominatim(cfg.NominatimURL, cfg.CitySuffix, cfg.ExternalTimeout),
			routing.NewOSRM(cfg.OSRMURL, cfg.ExternalTimeout), nil
	}

	geocoder, err := geocoding.NewGoogle(cfg.GoogleMapsAPIKey, cfg.CitySuffix)
	if err != nil {
		return nil, nil, err
	}
	router, err := routing.NewGoogle(cfg.GoogleMapsAPIKey)
	if err != nil {
		return nil, nil, err
	}
	return geocoder, router, nil
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}

func closeQuietly(store repository.Store) {
	if err := store.Close(); err != nil {
		logger.Log.WithError(err).Error("Ошибка закрытия хранилища")
	}
}
