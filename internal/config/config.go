// Пакет config — загрузка и валидация конфигурации Parco Verismo
// из переменных окружения (префикс PV_).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Язык по умолчанию (it, en)
	DefaultLang string
	// Часовой пояс для дат в CSV и дашборде
	Location *time.Location
	// Доверять X-Forwarded-For / X-Real-IP (сервис за reverse proxy)
	TrustProxy bool

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT (staff API) ---

	// URL JWKS endpoint. Пустое значение отключает staff API.
	JWTJWKSURL string
	// Ожидаемый issuer JWT (опционально)
	JWTIssuer string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Группы IdP, дающие доступ к triage
	StaffGroups []string

	// --- Уведомления ---

	// SMTP-хост. Пустое значение отключает email.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	// Адрес отправителя
	MailFrom string
	// Адрес администратора для уведомлений о новых запросах
	AdminEmail string
	// Токен Telegram-бота. Пустое значение отключает канал.
	TelegramBotToken string
	// ID чата персонала в Telegram
	TelegramChatID int64
	// Таймаут отправки уведомлений
	NotifyTimeout time.Duration

	// --- Intake ---

	// Адрес Redis для throttle. Пустое значение отключает throttle.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Максимум заявок с одного IP за окно
	IntakeRateLimit int
	// Окно throttle
	IntakeRateWindow time.Duration
	// YAML-файл с дополнительными одноразовыми доменами (опционально)
	BlocklistFile string

	// --- Каталог контента ---

	ContentCacheSize int
	ContentCacheTTL  time.Duration

	// --- S3-архив экспортов (только CLI) ---

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("PV_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("PV_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PV_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PV_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("PV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.DefaultLang = getEnvDefault("PV_DEFAULT_LANG", "it")
	if cfg.DefaultLang != "it" && cfg.DefaultLang != "en" {
		return nil, fmt.Errorf("PV_DEFAULT_LANG: недопустимое значение %q, допустимые: it, en", cfg.DefaultLang)
	}

	tz := getEnvDefault("PV_TIMEZONE", "Europe/Rome")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("PV_TIMEZONE: неизвестный часовой пояс %q: %w", tz, err)
	}

	cfg.TrustProxy, err = getEnvBool("PV_TRUST_PROXY", true)
	if err != nil {
		return nil, fmt.Errorf("PV_TRUST_PROXY: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("PV_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("PV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PV_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("PV_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("PV_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("PV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("PV_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PV_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("PV_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("PV_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("PV_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("PV_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("PV_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PV_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.StaffGroups = parseCSV(getEnvDefault("PV_STAFF_GROUPS", "parco-staff"))

	// --- Уведомления ---

	cfg.SMTPHost = getEnvDefault("PV_SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvInt("PV_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("PV_SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = getEnvDefault("PV_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("PV_SMTP_PASSWORD", "")
	cfg.MailFrom = getEnvDefault("PV_MAIL_FROM", "noreply@parcolettverismo.it")
	cfg.AdminEmail = getEnvDefault("PV_ADMIN_EMAIL", "admin@parcolettverismo.it")

	cfg.TelegramBotToken = getEnvDefault("PV_TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID, err = getEnvInt64("PV_TELEGRAM_CHAT_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("PV_TELEGRAM_CHAT_ID: %w", err)
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("PV_TELEGRAM_CHAT_ID: обязателен, если задан PV_TELEGRAM_BOT_TOKEN")
	}

	cfg.NotifyTimeout, err = getEnvDuration("PV_NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_NOTIFY_TIMEOUT: %w", err)
	}

	// --- Intake ---

	cfg.RedisAddr = getEnvDefault("PV_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("PV_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("PV_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("PV_REDIS_DB: %w", err)
	}
	cfg.IntakeRateLimit, err = getEnvInt("PV_INTAKE_RATE_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("PV_INTAKE_RATE_LIMIT: %w", err)
	}
	if cfg.IntakeRateLimit < 1 {
		return nil, fmt.Errorf("PV_INTAKE_RATE_LIMIT: значение %d должно быть >= 1", cfg.IntakeRateLimit)
	}
	cfg.IntakeRateWindow, err = getEnvDuration("PV_INTAKE_RATE_WINDOW", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PV_INTAKE_RATE_WINDOW: %w", err)
	}
	cfg.BlocklistFile = getEnvDefault("PV_BLOCKLIST_FILE", "")

	// --- Каталог контента ---

	cfg.ContentCacheSize, err = getEnvInt("PV_CONTENT_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("PV_CONTENT_CACHE_SIZE: %w", err)
	}
	if cfg.ContentCacheSize < 1 {
		return nil, fmt.Errorf("PV_CONTENT_CACHE_SIZE: значение %d должно быть >= 1", cfg.ContentCacheSize)
	}
	cfg.ContentCacheTTL, err = getEnvDuration("PV_CONTENT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PV_CONTENT_CACHE_TTL: %w", err)
	}

	// --- S3 ---

	cfg.S3Endpoint = getEnvDefault("PV_S3_ENDPOINT", "")
	cfg.S3Region = getEnvDefault("PV_S3_REGION", "us-east-1")
	cfg.S3Bucket = getEnvDefault("PV_S3_BUCKET", "")
	cfg.S3AccessKey = getEnvDefault("PV_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvDefault("PV_S3_SECRET_KEY", "")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("PV_DEPHEALTH_GROUP", "parco-verismo")
	cfg.DephealthCheckInterval, err = getEnvDuration("PV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// StaffAPIEnabled сообщает, настроена ли JWT-аутентификация персонала.
func (c *Config) StaffAPIEnabled() bool {
	return c.JWTJWKSURL != ""
}

// ArchiveEnabled сообщает, настроен ли S3-архив экспортов.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	return SetupLoggerTo(cfg, os.Stdout)
}

// SetupLoggerTo — SetupLogger с выводом в w (pvadmin пишет логи в stderr,
// stdout занят результатом команды).
func SetupLoggerTo(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 — как getEnvInt, но для ID чатов Telegram (могут быть отрицательными и большими).
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает bool из переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q (true/false)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
