// dephealth.go — мониторинг зависимостей через topologymetrics SDK.
//
// Проверяются:
//   - PostgreSQL — SQL checker через существующий pgxpool (режим пула, critical)
//   - IdP — HTTP checker к серверу JWKS (только при включённом staff API)
//
// Метрики app_dependency_* публикуются на /metrics.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthOptions — параметры мониторинга.
type DephealthOptions struct {
	// ServiceID — имя вершины графа приложения
	ServiceID string
	Group     string
	// DB — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool)
	DB *sql.DB
	// PgConnURL — URL PostgreSQL только для меток
	PgConnURL string
	// JWKSURL — адрес JWKS; пусто — IdP не проверяется
	JWKSURL       string
	CheckInterval time.Duration
	// Registerer — реестр метрик; nil — глобальный
	Registerer prometheus.Registerer
}

// DephealthService — мониторинг зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
func NewDephealthService(opts DephealthOptions, logger *slog.Logger) (*DephealthService, error) {
	options := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(opts.DB)),
			dephealth.FromURL(opts.PgConnURL),
			dephealth.CheckInterval(opts.CheckInterval),
			dephealth.Critical(true),
		),
	}

	if opts.JWKSURL != "" {
		idpOpts, err := jwksDependency(opts.JWKSURL, opts.CheckInterval)
		if err != nil {
			return nil, err
		}
		options = append(options, dephealth.HTTP("idp-jwks", idpOpts...))
	}
	if opts.Registerer != nil {
		options = append(options, dephealth.WithRegisterer(opts.Registerer))
	}

	dh, err := dephealth.New(opts.ServiceID, opts.Group, options...)
	if err != nil {
		return nil, err
	}
	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksDependency — опции HTTP-проверки: хост из URL, путь JWKS как health path.
func jwksDependency(jwksURL string, interval time.Duration) ([]dephealth.DependencyOption, error) {
	parsed, err := url.Parse(jwksURL)
	if err != nil {
		return nil, err
	}
	base := url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	opts := []dephealth.DependencyOption{
		dephealth.FromURL(base.String()),
		dephealth.WithHTTPHealthPath(parsed.Path),
		dephealth.CheckInterval(interval),
		dephealth.Critical(true),
	}
	if parsed.Scheme == "https" {
		opts = append(opts, dephealth.WithHTTPTLSSkipVerify(false))
	}
	return opts, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}
