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
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/annotatron-api/api/swagger"
	"github.com/noah-isme/annotatron-api/internal/handler"
	"github.com/noah-isme/annotatron-api/internal/repository"
	"github.com/noah-isme/annotatron-api/internal/service"
	"github.com/noah-isme/annotatron-api/pkg/cache"
	"github.com/noah-isme/annotatron-api/pkg/config"
	"github.com/noah-isme/annotatron-api/pkg/database"
	"github.com/noah-isme/annotatron-api/pkg/logger"
	"github.com/noah-isme/annotatron-api/pkg/obfuscate"
	"github.com/noah-isme/annotatron-api/pkg/storage"
)

// @title Annotatron API
// @version 1.0.0
// @description Corpus, asset and question management for audio annotation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, db.DB)
		cancel()
		if err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Setup state falls back to the database on every request.
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	ids, err := obfuscate.New(cfg.Obfuscation.Secret)
	if err != nil {
		return fmt.Errorf("init identifier obfuscation: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Assets.SignedURLSecret, cfg.Assets.SignedURLTTL)

	validate := validator.New()
	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}
	hasher := service.NewPasswordHasher(cfg.Auth.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	tokens := service.NewTokenService(tokenRepo, logr, metrics, service.TokenConfig{
		TTL:         cfg.Auth.TokenTTL,
		Length:      cfg.Auth.TokenLength,
		MaxAttempts: cfg.Auth.MaxIssueAttempts,
	})
	users := service.NewUserService(userRepo, hasher, validate, logr)
	auth := service.NewAuthService(userRepo, tokens, hasher, validate, logr, metrics)
	setup := service.NewSetupService(userRepo, tokens, hasher, cacheRepo, validate, logr, metrics)
	corpora := service.NewCorpusService(repository.NewCorpusRepository(db), validate, logr)
	questions := service.NewQuestionService(repository.NewQuestionRepository(db), corpora, validate, logr)
	assets := service.NewAssetService(repository.NewAssetRepository(db), corpora, signer, validate, logr, metrics, service.AssetConfig{
		MaxContentBytes: cfg.Assets.MaxContentBytes,
	})

	if cfg.Auth.ReaperSchedule != "" {
		reaper, err := service.NewTokenReaper(tokens, cfg.Auth.ReaperSchedule, cfg.Database.QueryTimeout, logr)
		if err != nil {
			return fmt.Errorf("schedule token reaper: %w", err)
		}
		reaper.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			reaper.Stop(ctx)
		}()
	}

	router := handler.NewRouter(handler.RouterConfig{
		Logger:         logr,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Database.QueryTimeout,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Sessions:       tokens,
		Setup:          setup,
		Metrics:        handler.NewMetricsHandler(metrics, db),
		Auth:           handler.NewAuthHandler(auth, ids),
		Users:          handler.NewUserHandler(users, ids),
		Corpora:        handler.NewCorpusHandler(corpora),
		Assets:         handler.NewAssetHandler(assets, ids, cfg.APIPrefix+"/content", cfg.Assets.MaxContentBytes),
		Questions:      handler.NewQuestionHandler(questions, ids),
		SetupAPI:       handler.NewSetupHandler(setup, ids),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logr.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
