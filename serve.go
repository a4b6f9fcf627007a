package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/grovia/internal/auth"
	"github.com/example/grovia/internal/config"
	"github.com/example/grovia/internal/grpchealth"
	"github.com/example/grovia/internal/handlers"
	"github.com/example/grovia/internal/inference"
	"github.com/example/grovia/internal/leaf"
	"github.com/example/grovia/internal/repository"
	"github.com/example/grovia/internal/storage"
	"github.com/example/grovia/internal/usecase"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthProbeInterval = 15 * time.Second
	historyCacheTTL     = 5 * time.Minute
)

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db, err := initDatabase(startupCtx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(startupCtx, db); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	checks := map[string]grpchealth.Check{"database": sqlDB.PingContext}

	var cache usecase.Cache
	if cfg.RedisAddr != "" {
		redisClient, err := initRedis(startupCtx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cache = usecase.NewRedisCache(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Info("REDIS_ADDR not set, using in-process cache")
		cache = usecase.NewMemoryCache(historyCacheTTL)
	}

	var relocator storage.Relocator
	if cfg.UseCloudStorage {
		gcs, err := storage.NewGCSRelocator(startupCtx, storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
		}, logger)
		if err != nil {
			return err
		}
		defer gcs.Close()
		relocator = gcs
	}

	model, err := inference.NewGeminiClient(inference.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.InferenceTimeout,
	}, logger)
	if err != nil {
		return err
	}
	predictor := inference.NewPredictor(model, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := usecase.NewPipelineMetrics(registry)
	if err != nil {
		return err
	}

	historyRepo := repository.NewHistoryRepository(db, logger)
	diseaseRepo := repository.NewDiseaseRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	timezones := usecase.NewTimezoneResolver(userRepo, cfg.DefaultTimezone, logger)

	pipeline := usecase.NewDetectionPipeline(usecase.PipelineDeps{
		Gate:      leaf.NewGate(cfg.Leaf, logger),
		Predictor: predictor,
		Relocator: relocator,
		History:   historyRepo,
		Diseases:  diseaseRepo,
		Timezones: timezones,
		Metrics:   metrics,
	}, usecase.PipelineConfig{
		UploadDir:        cfg.UploadDir,
		CloudStorage:     cfg.UseCloudStorage,
		StorageFolder:    cfg.GCSFolder,
		Budget:           cfg.PipelineBudget,
		InferenceTimeout: cfg.InferenceTimeout,
		StorageTimeout:   cfg.StorageTimeout,
	}, logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.MaxUploadSize

	handlers.RegisterRoutes(r, handlers.Services{
		Detector:  pipeline,
		Model:     predictor,
		History:   usecase.NewHistoryUseCase(historyRepo, cache, timezones, cfg.PublicBaseURL, logger),
		Knowledge: usecase.NewKnowledgeUseCase(diseaseRepo, logger),
	}, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience), handlers.Options{
		MaxUploadSize:      cfg.MaxUploadSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		UploadDir:          cfg.UploadDir,
		Metrics:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:             logger,
	})

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
		}
		health := grpchealth.NewServer(checks, logger)
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go health.Watch(watchCtx, healthProbeInterval)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("gRPC health server failed", zap.Error(err))
			}
		}()
		defer health.Stop()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Grovia API listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("cloud_storage", relocator != nil))
	return serveHTTPServer(server, shutdownTimeout, logger)
}

func initDatabase(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
