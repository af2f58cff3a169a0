package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
	"github.com/luigimeli-max/sito-parco-verismo/internal/database"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/display"
	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
	"github.com/luigimeli-max/sito-parco-verismo/internal/repository"
	"github.com/luigimeli-max/sito-parco-verismo/internal/service"
)

// triageOps — операции над заявками, доступные из CLI.
type triageOps interface {
	List(ctx context.Context, q service.RequestQuery, limit, offset int) (*service.ListResult, error)
	Get(ctx context.Context, id string) (*model.Request, error)
	Update(ctx context.Context, id string, patch service.RequestPatch, actor string) (*model.Request, error)
	Bulk(ctx context.Context, action service.BulkAction, ids []string, actor, lang string) (*service.BulkResult, error)
	Export(ctx context.Context, q service.RequestQuery, lang string) (*service.ExportFile, error)
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	RenderContext(lang string) display.RenderContext
	Registry() *display.Registry
}

type contentImporter interface {
	Import(ctx context.Context, f *service.ContentFile) (service.ImportStats, error)
}

type exportArchiver interface {
	Store(ctx context.Context, f *service.ExportFile, at time.Time) (string, error)
}

// backend — подключённые сервисы одной команды.
type backend struct {
	triage   triageOps
	importer contentImporter
	archive  exportArchiver
	bundle   *i18n.Bundle
	// cacheTTL — через сколько импорт станет виден на сайте
	cacheTTL time.Duration
	close    func()
}

// env — внешние зависимости CLI; тесты подменяют open и migrate.
type env struct {
	open    func(ctx context.Context) (*backend, error)
	migrate func() error
	now     func() time.Time
}

func productionEnv() *env {
	return &env{
		open:    openBackend,
		migrate: runMigrations,
		now:     time.Now,
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("конфигурация: %w", err)
	}
	return cfg, config.SetupLoggerTo(cfg, os.Stderr), nil
}

func runMigrations() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	return database.Migrate(cfg, logger)
}

// openBackend подключается к PostgreSQL и, если настроен, к S3-архиву.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bundle := i18n.MustLoad(logger)
	txRunner := repository.NewTxRunner(pool)
	triage := service.NewTriageService(
		repository.NewRequestRepository(pool), txRunner, repository.NewRequestRepository,
		display.DefaultRegistry(), bundle, cfg.Location,
		logger,
	)
	importer := service.NewContentImporter(txRunner, repository.NewContentRepository, cfg.Location, logger)

	archive := service.NewArchive(nil, "", cfg.Location, logger)
	if cfg.ArchiveEnabled() {
		client, err := service.NewS3Client(ctx, service.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		archive = service.NewArchive(client, cfg.S3Bucket, cfg.Location, logger)
	}

	return &backend{
		triage:   triage,
		importer: importer,
		archive:  archive,
		bundle:   bundle,
		cacheTTL: cfg.ContentCacheTTL,
		close:    pool.Close,
	}, nil
}
