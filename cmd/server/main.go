package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/routewise/backend/internal/cache"
	"github.com/routewise/backend/internal/classify"
	"github.com/routewise/backend/internal/config"
	"github.com/routewise/backend/internal/db"
	"github.com/routewise/backend/internal/directory"
	"github.com/routewise/backend/internal/events"
	httpapi "github.com/routewise/backend/internal/http"
	"github.com/routewise/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "routewise-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, rule cache disabled")
			redisClient = nil
		}
	}
	ruleSource := cache.NewRuleSource(store, redisClient, cfg.RuleCacheTTL, logger)

	var publisher service.DecisionPublisher
	if brokers := cfg.BrokerList(); len(brokers) > 0 {
		producer := events.NewProducer(brokers, cfg.DecisionsTopic, logger)
		defer producer.Close()
		publisher = producer
	} else {
		logger.Info().Msg("kafka brokers not configured, decision events disabled")
	}

	var classifier classify.Adapter
	if cfg.ClassifierURL == "" {
		classifier = classify.MockAdapter{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock classifier adapter")
	} else {
		classifier = classify.HTTPAdapter{BaseURL: cfg.ClassifierURL}
	}

	signals := directory.NewBreakerSignals(store, store)

	categorizer := &service.Categorizer{Classifier: classifier, Timeout: cfg.ClassifyTimeout, Logger: logger}
	matcher := &service.RuleMatcher{Source: ruleSource, Logger: logger}
	experts := &service.ExpertFinder{Graph: store, Availability: signals, Workload: signals, Logger: logger}
	backups := &service.BackupSelector{Graph: store, Availability: signals, Workload: signals, Config: service.DefaultBackupConfig(), Logger: logger}
	escalator := &service.Escalator{Graph: store, Availability: signals, Workload: signals, Backups: backups, Logger: logger}
	recorder := &service.DecisionRecorder{Store: store, Publisher: publisher, Logger: logger}
	routing := &service.RoutingService{
		Categorizer:  categorizer,
		Rules:        matcher,
		Experts:      experts,
		Escalator:    escalator,
		Recorder:     recorder,
		Availability: signals,
		Logger:       logger,
	}

	router := httpapi.Router(cfg, store, httpapi.Services{
		Routing:     routing,
		Categorizer: categorizer,
		Experts:     experts,
		Backups:     backups,
		Escalator:   escalator,
		Recorder:    recorder,
		RuleCache:   ruleSource,
	}, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
