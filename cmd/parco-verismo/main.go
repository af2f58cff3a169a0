// Точка входа Parco Verismo — сайт литературного парка.
// Загружает конфигурацию, подключается к PostgreSQL и Redis, применяет
// миграции, собирает каналы уведомлений, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	_ "time/tzdata"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/luigimeli-max/sito-parco-verismo/internal/api/handlers"
	"github.com/luigimeli-max/sito-parco-verismo/internal/api/middleware"
	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
	"github.com/luigimeli-max/sito-parco-verismo/internal/database"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
	"github.com/luigimeli-max/sito-parco-verismo/internal/server"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

func main() {
	// 0. .env опционален: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	// 1. Конфигурация
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("Parco Verismo запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("timezone", cfg.Location.String()),
	)

	// 3. Миграции
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. PostgreSQL
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// *sql.DB поверх пула для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Redis (опционально): throttle формы и readiness
	var (
		throttle     service.Throttler
		redisChecker handlers.ReadinessChecker
	)
	redisClient, err := database.ConnectRedis(ctx, cfg, logger)
	if err != nil {
		// Без Redis форма продолжает работать, throttle отключается
		logger.Warn("Redis недоступен, throttle заявок отключён", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		defer redisClient.Close()
		throttle = service.NewRedisThrottler(redisClient, cfg.IntakeRateLimit, cfg.IntakeRateWindow)
		redisChecker = database.NewRedisReadinessChecker(redisClient)
	}

	// 6. Список одноразовых доменов с hot reload
	blocklist, err := service.NewBlocklist(cfg.BlocklistFile, logger)
	if err != nil {
		logger.Error("Ошибка загрузки списка доменов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := blocklist.Watch(ctx); err != nil {
		logger.Warn("Отслеживание списка доменов недоступно", slog.String("error", err.Error()))
	}
	defer blocklist.Stop()

	// 7. Каналы уведомлений
	dispatcher := service.NewDispatcher(cfg.NotifyTimeout, logger, buildNotifiers(cfg, logger)...)

	// 8. i18n
	bundle := i18n.MustLoad(logger)

	// 9. Repositories и services
	requestRepo := repository.NewRequestRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	intakeSvc := service.NewIntakeService(requestRepo, blocklist, throttle, dispatcher, logger)
	triageSvc := service.NewTriageService(
		requestRepo, txRunner, repository.NewRequestRepository,
		display.DefaultRegistry(), bundle, cfg.Location,
		logger,
	)
	contentSvc := service.NewContentService(
		contentRepo,
		service.NewContentCache(cfg.ContentCacheSize, cfg.ContentCacheTTL),
		logger,
	)

	// 10. JWT middleware staff API (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.StaffAPIEnabled() {
		jwtAuth, err = middleware.NewJWTAuth(ctx,
			cfg.JWTJWKSURL, cfg.JWKSClientTimeout, cfg.JWKSRefreshInterval,
			middleware.JWTOptions{
				Issuer:      cfg.JWTIssuer,
				StaffGroups: cfg.StaffGroups,
				Leeway:      cfg.JWTLeeway,
			},
			logger,
		)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Staff API включён",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.Any("staff_groups", cfg.StaffGroups),
		)
	} else {
		logger.Warn("PV_JWT_JWKS_URL не задан, staff API отключён")
	}

	// 11. topologymetrics
	dephealthSvc, err := service.NewDephealthService(service.DephealthOptions{
		ServiceID:     "parco-verismo",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 12. Handlers и сервер
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), redisChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, intakeSvc, triageSvc, contentSvc, bundle, logger)

	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	runErr := srv.Run()

	// 13. Остановка фоновых задач: ждём уведомления по уже принятым заявкам
	cancel()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	intakeSvc.Wait()

	if runErr != nil {
		logger.Error("Сервер завершился с ошибкой", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("Parco Verismo остановлен")
}

// buildNotifiers собирает настроенные каналы. Без каналов — NoopNotifier,
// чтобы рассылка и метрики работали единообразно.
func buildNotifiers(cfg *config.Config, logger *slog.Logger) []service.Notifier {
	var notifiers []service.Notifier

	if cfg.SMTPHost != "" {
		sender := service.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
		notifiers = append(notifiers, service.NewEmailNotifier(sender, cfg.MailFrom, cfg.AdminEmail, logger))
		logger.Info("Канал email включён", slog.String("smtp_host", cfg.SMTPHost))
	}

	if cfg.TelegramBotToken != "" {
		bot, err := service.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			logger.Warn("Telegram недоступен, канал отключён", slog.String("error", err.Error()))
		} else {
			notifiers = append(notifiers, service.NewTelegramNotifier(bot, cfg.TelegramChatID, logger))
			logger.Info("Канал telegram включён", slog.Int64("chat_id", cfg.TelegramChatID))
		}
	}

	if len(notifiers) == 0 {
		logger.Warn("Каналы уведомлений не настроены, уведомления только в лог")
		notifiers = append(notifiers, service.NoopNotifier{Name: "log"})
	}
	return notifiers
}
