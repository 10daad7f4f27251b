package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "portfolio-notify/contracts/mq"
	"portfolio-notify/internal/config"
	"portfolio-notify/internal/httpserver"
	"portfolio-notify/internal/mqhandler"
	"portfolio-notify/internal/push"
	"portfolio-notify/internal/repository"
	"portfolio-notify/internal/service"
	"portfolio-notify/pkg/db"
	"portfolio-notify/pkg/logger"
	"portfolio-notify/pkg/mq"
	"portfolio-notify/pkg/redis"
	"portfolio-notify/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notifyd...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ Publisher (for the simulate endpoint)
	publisher, err := mq.NewPublisher(cfg.MQ.URL, log)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Push hub
	hub := push.NewHub(log,
		time.Duration(cfg.Push.PingIntervalSeconds)*time.Second,
		time.Duration(cfg.Push.ReadTimeoutSeconds)*time.Second,
	)
	defer hub.Close()

	// Repositories / services
	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	unreadCache := service.NewUnreadCache(rdb, 5*time.Minute, log)
	notificationSvc := service.NewNotificationService(notificationRepo, unreadCache, hub, log)

	// MQ consumer for notification.created
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	createdHandler := mqhandler.NewNotificationCreatedHandler(notificationSvc, deduper, log)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, "notification.created.q", mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	consumer.SetHandler(createdHandler.Handle)

	go func() {
		log.Info("Starting notification.created consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Notification consumer failed", zap.Error(err))
		}
	}()

	// HTTP server: REST surface + push channel upgrades
	handler := httpserver.NewNotificationHandler(notificationSvc, hub, publisher, log)
	router := httpserver.NewRouter(handler, cfg.JWT.Secret, dbConn)
	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("notifyd is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notifyd gracefully...")

	consumer.Stop()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("notifyd shutdown complete")
}
