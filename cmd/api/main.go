package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"price-history-api/internal/config"
	"price-history-api/internal/database"
	"price-history-api/internal/handlers"
	"price-history-api/internal/logger"
	"price-history-api/internal/middleware"
	"price-history-api/internal/repository"
	"price-history-api/internal/routes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.Server.Mode == gin.DebugMode,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	// 1. Base de datos: sin conexión no arranca el servicio
	db := database.New(database.Config{
		URI:     cfg.Mongo.URI,
		Name:    cfg.Mongo.Database,
		Timeout: cfg.Mongo.Timeout,
	}, appLogger)
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
		defer cancel()
		if err := db.Disconnect(disconnectCtx); err != nil {
			appLogger.Error("Failed to disconnect from mongodb", zap.Error(err))
		}
	}()

	// 2. Repositorio e índices
	repo := repository.NewProductRepository(
		db.Collection(cfg.Mongo.Collection),
		repository.WithLogger(appLogger),
		repository.WithUniqueUPC(cfg.Mongo.UniqueUPC),
		repository.WithHistoryDedup(cfg.Mongo.HistoryDedup),
	)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	// 3. Router
	router := gin.New()
	router.Use(middleware.Stack(appLogger)...)
	routes.RegisterRoutes(router, handlers.NewProductHandler(repo, appLogger), db.Ready, cfg.AllowedOrigins())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Shutdown)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
