package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jack/url-shortener-platform/internal/bus"
	"github.com/jack/url-shortener-platform/internal/config"
	"github.com/jack/url-shortener-platform/internal/handler"
	"github.com/jack/url-shortener-platform/internal/repository"
	"github.com/jack/url-shortener-platform/internal/scheduler"
	"github.com/jack/url-shortener-platform/internal/service"
)

const clickSyncInterval = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	postgresRepo, err := repository.NewPostgresRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer postgresRepo.Close()
	log.Println("Connected to PostgreSQL")

	redisRepo, err := repository.NewRedisRepository(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisRepo.Close()
	log.Println("Connected to Redis")

	busConn, err := bus.Connect(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer busConn.Close()

	// The cache warmer runs for the lifetime of the process, independent of
	// individual request cancellations.
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	consumer, err := bus.NewConsumer(busConn, cfg.RabbitMQ.Queue, redisRepo)
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}
	defer consumer.Close()

	if err := consumer.Start(consumerCtx); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}

	clickSyncScheduler := scheduler.NewClickSyncScheduler(postgresRepo, redisRepo, clickSyncInterval)
	clickSyncScheduler.Start()
	defer clickSyncScheduler.Stop()

	redirectorService := service.NewRedirectorService(postgresRepo, redisRepo, cfg.App.BaseURL)
	h := handler.NewRedirectorHandler(redirectorService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	router.GET("/health", h.Health)
	router.GET("/:code", h.Resolve)

	srv := &http.Server{
		Addr:         ":" + cfg.URL.RedirectorPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Redirector service starting on port %s", cfg.URL.RedirectorPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
