// Пакет database — подключение к PostgreSQL через pgxpool и к Redis,
// применение миграций (golang-migrate) и проверки готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// readyTimeout — таймаут одной проверки готовности.
const readyTimeout = 3 * time.Second

// Connect создаёт пул подключений к PostgreSQL и проверяет его ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)

	return pool, nil
}

// MigrateURL возвращает URL для golang-migrate (схема pgx5).
func MigrateURL(cfg *config.Config) string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode,
	)
}

// Migrate применяет SQL-миграции из embedded FS.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// ConnectRedis создаёт клиент Redis. При пустом адресе возвращает nil:
// throttle приёма заявок в этом случае отключён.
func ConnectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		logger.Info("Redis не настроен, throttle заявок отключён")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	logger.Info("Подключение к Redis установлено",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return client, nil
}

// Pinger — зависимость, доступность которой проверяется ping'ом.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker — проверка готовности PostgreSQL для health endpoint.
type ReadinessChecker struct {
	pool Pinger
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool Pinger) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady проверяет подключение через ping. Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

// RedisReadinessChecker — проверка готовности Redis.
// Redis не критичен: при недоступности throttle работает в режиме fail-open,
// поэтому статус деградирует до "degraded", а не "fail".
type RedisReadinessChecker struct {
	client redis.Cmdable
}

// NewRedisReadinessChecker создаёт проверку готовности Redis.
func NewRedisReadinessChecker(client redis.Cmdable) *RedisReadinessChecker {
	return &RedisReadinessChecker{client: client}
}

// CheckReady выполняет PING.
func (c *RedisReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return "degraded", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
