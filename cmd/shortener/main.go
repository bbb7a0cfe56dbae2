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
	"github.com/jack/url-shortener-platform/internal/service"
)

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

	busConn, err := bus.Connect(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer busConn.Close()

	publisher, err := bus.NewPublisher(busConn, cfg.RabbitMQ.Queue)
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	shortenerService := service.NewShortenerService(postgresRepo, publisher, cfg.App.BaseURL, cfg.URL.DefaultExpiry)
	h := handler.NewShortenerHandler(shortenerService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	router.GET("/health", h.Health)
	router.POST("/shorten", h.CreateShortURL)
	router.POST("/lookup/user/", h.LookupByUser)

	srv := &http.Server{
		Addr:         ":" + cfg.URL.ShortenerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Shortener service starting on port %s", cfg.URL.ShortenerPort)
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
