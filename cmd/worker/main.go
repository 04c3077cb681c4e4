// Package main - точка входа Dorm Match Hub Worker.
//
// Worker отвечает за весь жизненный цикл подбора соседей:
// - Ночные прогоны подбора (пары, группы или предложения)
// - Фоновый свип просроченных предложений
// - REST API для предложений, ответов и диагностики прогонов
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dorm-hub/dorm-match-hub/config"
	"github.com/dorm-hub/dorm-match-hub/internal/application/command"
	"github.com/dorm-hub/dorm-match-hub/internal/application/query"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/experiment"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/matching"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
	"github.com/dorm-hub/dorm-match-hub/internal/infrastructure/persistence/postgres"
	"github.com/dorm-hub/dorm-match-hub/internal/infrastructure/persistence/redis"
	"github.com/dorm-hub/dorm-match-hub/internal/infrastructure/scheduler"
	"github.com/dorm-hub/dorm-match-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/dorm-hub/dorm-match-hub/internal/interface/http"
	"github.com/dorm-hub/dorm-match-hub/internal/interface/http/handlers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Dorm Match Hub Worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := connectDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	candidateRepo := postgres.NewCandidateRepository(dbConn)
	matchRepo := postgres.NewMatchRepository(dbConn)

	var blocklistRepo matching.BlocklistRepository = postgres.NewBlocklistRepository(dbConn)
	var expStore experiment.Store = postgres.NewExperimentStore(dbConn)

	if redisCache != nil {
		if cfg.Features.IsEnabled(config.FeatureCacheBlocklists, nil) {
			blocklistRepo = redis.NewBlocklistCache(blocklistRepo, redisCache, log)
		}
		if cfg.Features.IsEnabled(config.FeatureCacheAssignments, nil) {
			expStore = redis.NewAssignmentCache(expStore, redisCache, log)
		}
	}

	runLock := redis.NewRunLock(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ДОМЕННЫЕ СЕРВИСЫ И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	bank := profile.DefaultItemBank()
	normalizer := profile.NewNormalizer(bank)
	gate := profile.NewEligibilityGate(bank)
	filter := matching.NewFilter(matching.DefaultConflictRules())
	resolver := experiment.NewResolver(expStore, matching.DefaultWeightSet(), log)

	runHandler := command.NewRunMatchingHandler(
		candidateRepo, normalizer, gate, filter, resolver,
		expStore, matchRepo, blocklistRepo, log,
	)
	respondHandler := command.NewRespondSuggestionHandler(matchRepo, log)
	expireHandler := command.NewExpireSuggestionsHandler(matchRepo, log)
	getSuggestionsHandler := query.NewGetSuggestionsHandler(matchRepo)
	getRunSummaryHandler := query.NewGetRunSummaryHandler(matchRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК И ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	runJobCfg := jobs.DefaultRunMatchingConfig()
	runJobCfg.Mode = matching.RunMode(cfg.Engine.Mode)
	runJobCfg.GroupSize = cfg.Engine.GroupSize
	runJobCfg.TopN = cfg.Engine.TopN
	runJobCfg.ScoreThreshold = cfg.Engine.ScoreThreshold
	runJobCfg.AutoMatchThreshold = cfg.Engine.AutoMatchThreshold
	runJobCfg.SuggestionTTL = cfg.Engine.SuggestionTTL
	runJobCfg.Workers = cfg.Engine.Workers
	runJobCfg.Timeout = cfg.Scheduler.RunTimeout
	runJobCfg.Cohort = profile.CohortFilter{
		InstitutionID: cfg.Engine.CohortInstitution,
		City:          shared.NewCity(cfg.Engine.CohortCity),
		DegreeLevel:   cfg.Engine.CohortDegreeLevel,
		Limit:         cfg.Engine.CohortLimit,
	}

	runJob := jobs.NewRunMatchingJob(runHandler, runLock, log, runJobCfg)
	runSchedule := scheduler.NewDailySchedule(cfg.Scheduler.RunHour, cfg.Scheduler.RunMinute)
	if err := sched.Register(runJob, runSchedule); err != nil {
		return fmt.Errorf("failed to register matching job: %w", err)
	}

	if cfg.Features.IsEnabled(config.FeatureSuggestionSweep, nil) {
		expireJobCfg := jobs.DefaultExpireSuggestionsConfig()
		expireJobCfg.Timeout = cfg.Scheduler.SweepTimeout

		expireJob := jobs.NewExpireSuggestionsJob(expireHandler, log, expireJobCfg)
		sweepSchedule := scheduler.NewIntervalSchedule(cfg.Scheduler.ExpirySweepInterval)
		if err := sched.Register(expireJob, sweepSchedule); err != nil {
			return fmt.Errorf("failed to register expiry sweep job: %w", err)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
		log.Info("scheduler started",
			"run_schedule", runSchedule.String(),
			"sweep_interval", cfg.Scheduler.ExpirySweepInterval.String(),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	var apiServer *httpapi.Server
	if cfg.HTTP.Enabled {
		healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
		healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
		if redisCache != nil {
			healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
		}

		apiCfg := httpapi.DefaultConfig()
		apiCfg.Host = cfg.HTTP.Host
		apiCfg.Port = cfg.HTTP.Port
		apiCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		apiCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		apiCfg.IdleTimeout = cfg.HTTP.IdleTimeout
		apiCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
		apiCfg.APIKeys = cfg.HTTP.APIKeys

		apiServer = httpapi.NewServer(apiCfg, httpapi.Dependencies{
			GetSuggestionsHandler:    getSuggestionsHandler,
			GetRunSummaryHandler:     getRunSummaryHandler,
			RespondSuggestionHandler: respondHandler,
			RunTrigger:               sched,
			Logger:                   log,
			HealthChecker:            healthChecker,
		})

		errCh := apiServer.StartAsync()
		go func() {
			if err, ok := <-errCh; ok && err != nil {
				log.Error("HTTP server failed", "error", err)
			}
		}()
		log.Info("HTTP API started", "address", apiServer.Address())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Dorm Match Hub Worker is running",
		"mode", cfg.Engine.Mode,
		"run_at", fmt.Sprintf("%02d:%02d", cfg.Scheduler.RunHour, cfg.Scheduler.RunMinute),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown failed", "error", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// connectDatabase открывает пул соединений по URL или по отдельным полям.
func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	return postgres.NewConnection(ctx, pgCfg)
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
