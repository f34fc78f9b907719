// Command api runs the skincheck HTTP API.
//
// @title                       Skincheck API
// @version                     1.0
// @description                 Skin condition pre-diagnosis: image upload, symptom questionnaire and ranked results.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
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

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/diagnosphere/skincheck-api/internal/api"
	"github.com/diagnosphere/skincheck-api/internal/api/handler"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
	"github.com/diagnosphere/skincheck-api/internal/core/service"
	mongodb "github.com/diagnosphere/skincheck-api/internal/infrastructure/db/mongo"
	redisdb "github.com/diagnosphere/skincheck-api/internal/infrastructure/db/redis"
	"github.com/diagnosphere/skincheck-api/internal/infrastructure/inference"
	s3store "github.com/diagnosphere/skincheck-api/internal/infrastructure/storage/s3"
	"github.com/diagnosphere/skincheck-api/internal/pkg/config"
	"github.com/diagnosphere/skincheck-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "skincheck-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	authRepo := mongodb.NewAuthRepository(db)
	diagnosisRepo := mongodb.NewDiagnosisRepository(db)
	if err := authRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := diagnosisRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("diagnosis indexes: %w", err)
	}

	images, err := newImageStore(ctx, cfg, db)
	if err != nil {
		return err
	}

	classifier := newClassifier(cfg, logger.Component("classifier"))
	revoker := redisdb.NewRevocationList(rdb)

	// --- Services ---
	authService := service.NewAuthService(authRepo, revoker, cfg.JWTSecret, cfg.TokenTTL, logger.Component("auth"))
	diagnosisService := service.NewDiagnosisService(diagnosisRepo, images, classifier, cfg.Upload.MaxBytes, logger.Component("diagnosis"))

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		AuthService:      authService,
		DiagnosisService: diagnosisService,
		Revoker:          revoker,
		JWTSecret:        cfg.JWTSecret,
		MaxUploadBytes:   cfg.Upload.MaxBytes,
		StoreCheck:       handler.MongoCheck(db),
		ReadyChecks: map[string]handler.Check{
			"mongodb": handler.MongoCheck(db),
			"redis":   handler.RedisCheck(rdb),
		},
		Logger: logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("image_store", cfg.Upload.Store).
			Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func newImageStore(ctx context.Context, cfg *config.Config, db *mongo.Database) (ports.ImageStore, error) {
	if cfg.Upload.Store == "s3" {
		store, err := s3store.NewImageStore(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 image store: %w", err)
		}
		return store, nil
	}

	store, err := mongodb.NewImageStore(db)
	if err != nil {
		return nil, fmt.Errorf("gridfs image store: %w", err)
	}
	return store, nil
}

func newClassifier(cfg *config.Config, log zerolog.Logger) ports.Classifier {
	if cfg.Classifier.URL == "" {
		log.Info().Msg("using reference classifier")
		return inference.NewReferenceClassifier()
	}
	log.Info().Str("url", cfg.Classifier.URL).Msg("using remote classifier")
	return inference.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Timeout, log)
}
