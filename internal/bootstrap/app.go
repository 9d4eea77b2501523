package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffmed-api/internal/app"
	"caffmed-api/internal/cache"
	"caffmed-api/internal/config"
	"caffmed-api/internal/decision"
	"caffmed-api/internal/inference"
	"caffmed-api/internal/logger"
	"caffmed-api/internal/model"
	databaseClient "caffmed-api/internal/platform/database"
	rabbitmqClient "caffmed-api/internal/platform/rabbitmq"
	redisClient "caffmed-api/internal/platform/redis"
	"caffmed-api/internal/repository"
	"caffmed-api/internal/vision"
	"caffmed-api/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Model     *inference.Handle
	Predictor *app.PredictService
	Auth      *app.AuthService
	History   *app.HistoryService

	Redis         *redis.Client
	DB            *gorm.DB
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.PredictionPublisher
	PersistWorker *worker.PredictionPersistWorker

	StartedAt time.Time
}

// New loads configuration and wires every component. A model that fails to load
// leaves the app running in the unavailable state; a model that loads but
// disagrees with the configured classes or input size is fatal.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	handle := inference.Load(inference.ONNXOpener(inference.ONNXOptions{
		ModelPath:     cfg.Model.Path,
		SharedLibPath: cfg.Model.ONNXSharedLibPath,
		InputSize:     cfg.Model.InputSize,
	}), log.With(zap.String("model_path", cfg.Model.Path)))

	a, err := Assemble(ctx, cfg, log, handle)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}
	return a, nil
}

// Assemble builds the App around an already loaded model handle.
func Assemble(ctx context.Context, cfg *config.Config, log *zap.Logger, handle *inference.Handle) (*App, error) {
	if err := handle.CheckShape(len(cfg.Model.Classes), cfg.Model.InputSize); err != nil {
		return nil, fmt.Errorf("model does not match configuration: %w", err)
	}

	policy, err := decision.NewPolicy(cfg.Decision.Threshold, cfg.Model.Classes, vision.NewInspector(cfg.Decision.MinDimension))
	if err != nil {
		return nil, fmt.Errorf("build decision policy failed: %w", err)
	}
	if handle.Ready() {
		if err := policy.CheckOutputSize(handle.OutputSize()); err != nil {
			return nil, err
		}
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		Model:     handle,
		StartedAt: time.Now(),
	}

	var opts []app.PredictServiceOption
	verdictCache, err := a.buildCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if verdictCache != nil {
		opts = append(opts, app.WithVerdictCache(verdictCache))
	}

	recorder, store, err := a.buildHistory(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if recorder != nil {
		opts = append(opts, app.WithRecorder(recorder))
	}

	normalizer := vision.NewNormalizer(cfg.Model.InputSize, vision.WithMaxPixels(cfg.Upload.MaxPixels))
	a.Predictor = app.NewPredictService(handle, normalizer, policy, log, opts...)
	a.Auth = app.NewAuthService(
		cfg.Auth.OperatorUsername,
		cfg.Auth.OperatorPasswordHash,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	if store != nil {
		a.History = app.NewHistoryService(store)
	} else {
		a.History = app.NewHistoryService(nil)
	}

	log.Info("service assembled",
		zap.Bool("model_loaded", handle.Ready()),
		zap.Strings("classes", cfg.Model.Classes),
		zap.Float64("threshold", cfg.Decision.Threshold),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("history", cfg.History.Enabled),
	)
	return a, nil
}

func (a *App) buildCache(ctx context.Context) (app.VerdictCache, error) {
	cfg := a.Config
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryVerdictCache(cfg.Cache.Size, ttl), nil
	case "redis":
		client, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		namespace := fmt.Sprintf("%s-%s-t%.4f", cfg.Model.Name, cfg.Model.Version, cfg.Decision.Threshold)
		return cache.NewRedisVerdictCache(client, namespace, ttl), nil
	}
	return nil, nil
}

func (a *App) buildHistory(ctx context.Context) (app.PredictionRecorder, *repository.PredictionRepository, error) {
	cfg := a.Config
	if !cfg.History.Enabled {
		return nil, nil, nil
	}

	dsn := cfg.History.SQLitePath
	if cfg.History.Driver == "mysql" {
		dsn = cfg.MySQLDSN()
	}
	db, err := databaseClient.New(ctx, cfg.History.Driver, dsn, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	a.DB = db
	if err := db.AutoMigrate(&model.Prediction{}); err != nil {
		return nil, nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}
	repo := repository.NewPredictionRepository(db)

	if !cfg.History.Async {
		return app.RecorderFunc(func(ctx context.Context, p model.Prediction) error {
			return repo.Create(ctx, &p)
		}), repo, nil
	}

	if cfg.RabbitMQ.URL == "" {
		return nil, nil, errors.New("history.async requires rabbitmq.url")
	}
	conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.PredictionQueue)
	if err != nil {
		return nil, nil, err
	}
	a.MQConn = conn

	a.PersistWorker = worker.NewPredictionPersistWorker(conn, repo, cfg.RabbitMQ.PredictionQueue, a.Logger)
	if err := a.PersistWorker.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start persist worker failed: %w", err)
	}
	a.Publisher = rabbitmqClient.NewPredictionPublisher(conn, cfg.RabbitMQ.PredictionQueue)
	return app.RecorderFunc(a.Publisher.Publish), repo, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.PersistWorker != nil {
		a.PersistWorker.Close()
	}
	if a.MQConn != nil {
		errs = append(errs, a.MQConn.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if a.Model != nil {
		errs = append(errs, a.Model.Close())
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
