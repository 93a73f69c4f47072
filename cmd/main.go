package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vhvplatform/go-smart-notification-service/internal/consumer"
	"github.com/vhvplatform/go-smart-notification-service/internal/delivery"
	"github.com/vhvplatform/go-smart-notification-service/internal/digest"
	"github.com/vhvplatform/go-smart-notification-service/internal/focus"
	"github.com/vhvplatform/go-smart-notification-service/internal/handler"
	"github.com/vhvplatform/go-smart-notification-service/internal/middleware"
	"github.com/vhvplatform/go-smart-notification-service/internal/realtime"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository"
	"github.com/vhvplatform/go-smart-notification-service/internal/repository/sqlite"
	"github.com/vhvplatform/go-smart-notification-service/internal/scheduler"
	"github.com/vhvplatform/go-smart-notification-service/internal/service"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/config"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/logger"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/mongodb"
	"github.com/vhvplatform/go-smart-notification-service/internal/shared/rabbitmq"
)

const (
	shutdownTimeout = 10 * time.Second
	eventsPrefetch  = 20
	relayPrefetch   = 100
)

// notificationBackend is everything the notification store serves
type notificationBackend interface {
	service.NotificationStore
	delivery.Tracker
	scheduler.DueSource
}

// backend holds the stores of the selected driver
type backend struct {
	notifications notificationBackend
	preferences   service.PreferenceStore
	focusBlocks   service.FocusBlockStore
	analytics     service.AnalyticsStore
	directory     scheduler.Directory
	pinger        handler.Pinger
	close         func(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load configuration", "error", err)
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()
	log.Info("Starting Smart Notification Service...", "storage", cfg.Storage.Driver)

	store, err := openBackend(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}

	// Background workers share this context and stop when it is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var workers sync.WaitGroup

	hub := realtime.NewHub(log)
	var pusher delivery.Pusher = hub
	var eventsClient, relayClient *rabbitmq.RabbitMQClient
	if cfg.RabbitMQ.URL != "" {
		relayClient, err = rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL, relayPrefetch)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		relay, err := realtime.NewRelay(relayClient, cfg.RabbitMQ.RealtimeExchange, hub, log)
		if err != nil {
			log.Fatal("Failed to set up realtime relay", "error", err)
		}
		pusher = relay
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := relay.Run(ctx); err != nil {
				log.Error("Realtime relay stopped", "error", err)
			}
		}()
	} else {
		log.Warn("RABBITMQ_URL not set; event consumer and realtime relay disabled")
	}

	dispatcher := delivery.NewDispatcher(pusher, store.notifications, store.preferences, log, delivery.Options{
		Workers: cfg.Dispatcher.Workers,
		Timeout: cfg.Dispatcher.Timeout,
	})
	dispatcher.Start()

	// Initialize services
	preferenceService := service.NewPreferenceService(store.preferences, log, time.Now)
	notificationService := service.NewNotificationService(store.notifications, preferenceService,
		focus.NewGate(store.focusBlocks), store.analytics, dispatcher, log, time.Now)
	focusService := service.NewFocusService(store.focusBlocks, preferenceService, log, time.Now)
	digestGenerator := digest.NewGenerator(store.notifications)
	digestService := service.NewDigestService(digestGenerator, preferenceService, time.Now)
	insightsService := service.NewInsightsService(store.notifications, store.analytics, preferenceService, time.Now)

	// Initialize scheduler
	digestScheduler := scheduler.New(store.directory, store.preferences, digestGenerator, notificationService,
		store.notifications, dispatcher, log, scheduler.Options{
			WakeInterval: cfg.Scheduler.WakeInterval,
			Tolerance:    cfg.Scheduler.Tolerance,
			Workers:      cfg.Scheduler.Workers,
		})
	if cfg.Scheduler.Enabled {
		if err := digestScheduler.Start(); err != nil {
			log.Fatal("Failed to start scheduler", "error", err)
		}
	}

	// Start RabbitMQ consumer
	if cfg.RabbitMQ.URL != "" {
		eventsClient, err = rabbitmq.NewRabbitMQClient(cfg.RabbitMQ.URL, eventsPrefetch)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", "error", err)
		}
		eventConsumer := consumer.NewEventConsumer(eventsClient, notificationService,
			cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsQueue, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := eventConsumer.Run(ctx); err != nil {
				log.Error("Event consumer stopped", "error", err)
			}
		}()
	}

	// Setup Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(handler.Handlers{
		Notifications: handler.NewNotificationHandler(notificationService, log),
		Preferences:   handler.NewPreferencesHandler(preferenceService, log),
		Focus:         handler.NewFocusHandler(focusService, log),
		Digests:       handler.NewDigestHandler(digestService, insightsService, log),
		Realtime:      handler.NewRealtimeHandler(hub),
		Health:        handler.NewHealthHandler(store.pinger, hub),
	}, middleware.NewTenantRateLimiter(cfg.RateLimit.PerTenant, cfg.RateLimit.Burst), gin.Logger())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Smart Notification Service started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Smart Notification Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := digestScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler did not stop cleanly", "error", err)
	}
	cancel()
	workers.Wait()
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error("Dispatcher did not drain", "error", err)
	}
	for _, client := range []*rabbitmq.RabbitMQClient{eventsClient, relayClient} {
		if client != nil {
			if err := client.Close(); err != nil {
				log.Warn("Failed to close RabbitMQ client", "error", err)
			}
		}
	}
	if err := store.close(shutdownCtx); err != nil {
		log.Error("Failed to close storage", "error", err)
	}

	log.Info("Smart Notification Service stopped")
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return &backend{
			notifications: s.Notifications(),
			preferences:   s.Preferences(),
			focusBlocks:   s.FocusBlocks(),
			analytics:     s.Analytics(),
			directory:     s.Directory(),
			pinger:        s,
			close:         func(context.Context) error { return s.Close() },
		}, nil

	case config.StorageMongoDB:
		client, err := mongodb.NewMongoClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			return nil, err
		}
		notifications := repository.NewNotificationRepository(client)
		preferences := repository.NewPreferencesRepository(client)
		focusBlocks := repository.NewFocusBlockRepository(client)
		analytics := repository.NewAnalyticsRepository(client)

		for _, ensure := range []func(context.Context) error{
			notifications.EnsureIndexes, preferences.EnsureIndexes, focusBlocks.EnsureIndexes, analytics.EnsureIndexes,
		} {
			if err := ensure(ctx); err != nil {
				_ = client.Disconnect(ctx)
				return nil, fmt.Errorf("creating indexes: %w", err)
			}
		}
		return &backend{
			notifications: notifications,
			preferences:   preferences,
			focusBlocks:   focusBlocks,
			analytics:     analytics,
			directory:     repository.NewDirectoryRepository(client),
			pinger:        client,
			close:         client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
