// Точка входа портала NK Recruitment.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт хранилище CV, очередь уведомлений и сервисный слой,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/nkrecruitment/portal/internal/api/handlers"
	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/auth"
	"github.com/nkrecruitment/portal/internal/config"
	"github.com/nkrecruitment/portal/internal/database"
	"github.com/nkrecruitment/portal/internal/notify"
	"github.com/nkrecruitment/portal/internal/repository"
	"github.com/nkrecruitment/portal/internal/server"
	"github.com/nkrecruitment/portal/internal/service"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
	"github.com/nkrecruitment/portal/internal/storage/s3store"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Портал NK Recruitment запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.StorageBackend),
	)

	if !cfg.EmailEnabled() {
		logger.Warn("NK_EMAIL_HOST или NK_EMAIL_USER не заданы, письма отправляться не будут")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище CV
	var store filestore.Store
	switch cfg.StorageBackend {
	case config.StorageS3:
		client, err := s3store.NewClient(ctx, cfg)
		if err != nil {
			logger.Error("Ошибка создания клиента S3", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = s3store.New(client, cfg.S3Bucket, cfg.S3Prefix, cfg.MaxCVSize)
		logger.Info("Хранилище CV: S3",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
		)
	default:
		fs, err := filestore.New(cfg.UploadDir, cfg.MaxCVSize, logger)
		if err != nil {
			logger.Error("Ошибка создания файлового хранилища", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = fs
		logger.Info("Хранилище CV: локальный диск", slog.String("dir", fs.DataDir()))
	}

	// 6. Уведомления: шаблоны → диспетчер → очередь
	catalog, err := notify.LoadCatalog()
	if err != nil {
		logger.Error("Ошибка загрузки шаблонов писем", slog.String("error", err.Error()))
		os.Exit(1)
	}
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		From:     cfg.EmailFrom,
	})
	dispatcher := notify.NewDispatcher(mailer, catalog, notify.DispatcherConfig{
		Enabled:    cfg.EmailEnabled(),
		AdminEmail: cfg.AdminEmail,
		AdminURL:   cfg.AdminURL,
	}, logger)
	queue := notify.NewQueue(dispatcher, cfg.NotifyQueueSize, cfg.NotifyWorkers, logger)

	// 7. Repositories
	accountRepo := repository.NewAccountRepository(pool)
	applicationRepo := repository.NewApplicationRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Services
	accountSvc := service.NewAccountService(accountRepo, logger)
	applicationSvc := service.NewApplicationService(
		applicationRepo, store, queue,
		service.NewFilterCache(cfg.FilterCacheTTL),
		cfg.MaxCVSize,
		logger,
	)
	dashboardSvc := service.NewDashboardService(txRunner, logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL)

	// 9. Redis (опционально): общий rate limiter для нескольких реплик
	var limiter middleware.Limiter = middleware.NewRateLimiter()
	var redisChecker handlers.ReadinessChecker
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis недоступен, лимиты запросов не применяются до восстановления",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("Подключение к Redis установлено", slog.String("addr", cfg.RedisAddr))
		}
		limiter = middleware.NewRedisLimiter(redisClient)
		redisChecker = handlers.NewRedisReadinessChecker(redisClient)
	} else {
		logger.Info("NK_REDIS_ADDR не задан, лимиты запросов считаются в памяти процесса")
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Error("Ошибка разбора NK_TRUSTED_PROXIES", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Handlers и маршруты
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), redisChecker)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		applicationSvc,
		accountSvc,
		dashboardSvc,
		tokens,
		handlers.Options{MaxCVSize: cfg.MaxCVSize, CookieSecure: cfg.CookieSecure},
		logger,
	)
	router := server.NewRouter(apiHandler, server.RouterConfig{
		Tokens:         tokens,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
		SubmitLimit:    cfg.RateLimitSubmit,
		SubmitWindow:   cfg.RateLimitSubmitWindow,
		LoginLimit:     cfg.RateLimitLogin,
		LoginWindow:    cfg.RateLimitLoginWindow,
	}, logger)

	// 11. Фоновые задачи
	queue.Start(ctx)

	// 11.1 topologymetrics — мониторинг зависимостей (PostgreSQL + S3)
	dephealthCfg := service.DephealthConfig{
		ServiceID:     "nk-portal",
		Group:         cfg.DephealthGroup,
		PgConnURL:     cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
	}
	if cfg.StorageBackend == config.StorageS3 {
		dephealthCfg.S3URL = cfg.S3Endpoint
		dephealthCfg.S3HealthPath = cfg.S3HealthPath
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(dephealthCfg, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, router)
	runErr := srv.Run(ctx)

	// 13. Остановка фоновых задач: письма из очереди дописываются
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	queue.Stop()

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Портал остановлен")
}
