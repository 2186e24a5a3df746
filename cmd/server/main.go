package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/leuko-api/internal/auth"
	"github.com/Brownie44l1/leuko-api/internal/config"
	"github.com/Brownie44l1/leuko-api/internal/fusion"
	"github.com/Brownie44l1/leuko-api/internal/handlers"
	"github.com/Brownie44l1/leuko-api/internal/heatmap"
	"github.com/Brownie44l1/leuko-api/internal/model"
	"github.com/Brownie44l1/leuko-api/internal/pipeline"
	pdfreport "github.com/Brownie44l1/leuko-api/internal/report"
	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/report"
	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/user"
	"github.com/Brownie44l1/leuko-api/internal/router"
	"github.com/Brownie44l1/leuko-api/internal/storage"
	"github.com/Brownie44l1/leuko-api/pkg/cache"
	"github.com/Brownie44l1/leuko-api/pkg/httpframework"
	"github.com/Brownie44l1/leuko-api/pkg/infra"
	"github.com/Brownie44l1/leuko-api/pkg/logger"
	"github.com/Brownie44l1/leuko-api/pkg/metric"
	"github.com/Brownie44l1/leuko-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	logger.Init(cfg.AppName, cfg.AppLogLevel)
	metric.Init(cfg.TelegrafAddress, cfg.AppName, cfg.AppEnv, cfg.AppMetricSamplingRate)

	db, err := infra.CreateMySQLConnection(infra.SQLConfig{
		Host:     cfg.MysqlMasterHost,
		Port:     cfg.MysqlMasterPort,
		DBName:   cfg.MysqlDbName,
		Username: cfg.MysqlMasterUsername,
		Password: cfg.MysqlMasterPassword,
	}, &report.Report{}, &user.User{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	reports, err := report.NewRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create report repository")
	}
	users, err := user.NewRepository(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user repository")
	}

	registry, err := model.LoadRegistry(cfg.OnnxruntimeSharedLibraryPath,
		model.Spec{Name: "aml", ModelPath: cfg.AmlModelPath, MetadataPath: cfg.AmlMetadataPath},
		model.Spec{Name: "all", ModelPath: cfg.AllModelPath, MetadataPath: cfg.AllMetadataPath},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load classifiers")
	}
	defer registry.Close()

	store, err := storage.NewLocal(cfg.ImageDir, cfg.ImageUrlPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}
	compositor, err := heatmap.New(cfg.HeatmapBackend)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select heatmap backend")
	}

	stop := make(chan struct{})
	defer close(stop)
	pdfCache := cache.New("report_pdf", cfg.CacheSizeBytes)
	revoked := cache.New("revoked_tokens", cfg.CacheSizeBytes/4)
	go pdfCache.PublishMetrics(stop)
	go revoked.PublishMetrics(stop)

	analyzer := pipeline.NewAnalyzer(registry.AML, registry.ALL,
		fusion.Thresholds{AML: cfg.FusionAmlThreshold, ALL: cfg.FusionAllThreshold},
		compositor, store, reports)
	authService := auth.NewService(users, cfg.JwtSecret, revoked)
	renderer := pdfreport.NewRenderer(pdfCache, time.Duration(cfg.PdfCacheTtlSeconds)*time.Second)
	handler := handlers.NewHandler(analyzer, reports, renderer, authService, cfg.MaxUploadBytes)

	middlewares := []gin.HandlerFunc{middleware.Cors()}
	if cfg.AuthEnabled {
		middlewares = append(middlewares, middleware.Auth(authService, "/health", "/register", "/login", cfg.ImageUrlPrefix))
	}
	r := httpframework.New(cfg.AppEnv, middlewares...)
	router.Register(r, handler, cfg.ImageUrlPrefix, cfg.ImageDir)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.AppPort),
		Handler: r,
	}
	go func() {
		log.Info().Msgf("Server starting on port %d (heatmap backend %s, auth enabled %t)",
			cfg.AppPort, cfg.HeatmapBackend, cfg.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
