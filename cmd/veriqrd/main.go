package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/config"
	"github.com/veriqr/veriqr/internal/export"
	"github.com/veriqr/veriqr/internal/ledger"
	"github.com/veriqr/veriqr/internal/ocr"
	"github.com/veriqr/veriqr/internal/repository"
	"github.com/veriqr/veriqr/internal/service"
	"github.com/veriqr/veriqr/internal/storage"
	"github.com/veriqr/veriqr/internal/transport"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("veriqrd %s (%s)\n", Version, GitCommit)
			return
		}
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	v, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		log.WithError(err).Fatal("failed to parse config")
	}

	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	if err := repository.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	blobs := storage.NewFileStorage(cfg.Storage.BasePath, cfg.Storage.PublicBaseURL)
	anchorer := ledger.NewKafkaAnchorer(cfg.Kafka.Brokers, cfg.Kafka.AnchorTopic, cfg.Kafka.Timeout)
	defer anchorer.Close()

	productRepo := repository.NewProductRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	templateCache := repository.NewTemplateCache(redisClient, cfg.Redis.TemplateTTL)

	recognizer := ocr.NewTesseract(cfg.OCR.Timeout)
	packager := export.NewPackager(log)

	productService := service.NewProductService(productRepo, anchorer, log)
	templateService := service.NewTemplateService(templateRepo, templateCache, blobs, recognizer, cfg.OCR.Language, log)
	downloadService := service.NewDownloadService(productRepo, templateService, blobs, packager,
		cfg.Export.ChunkSize, cfg.Export.VerifyBaseURL, log)

	handler := transport.NewHandler(productService, templateService, downloadService, log)
	router := transport.InitRoutes(handler, cfg.Server.Mode, blobs.BasePath())

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}
