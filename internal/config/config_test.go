package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"PV_DB_HOST":     "localhost",
		"PV_DB_NAME":     "parco",
		"PV_DB_USER":     "parco",
		"PV_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DefaultLang != "it" {
		t.Errorf("DefaultLang = %q, ожидается it", cfg.DefaultLang)
	}
	if cfg.Location.String() != "Europe/Rome" {
		t.Errorf("Location = %q, ожидается Europe/Rome", cfg.Location)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.MailFrom != "noreply@parcolettverismo.it" {
		t.Errorf("MailFrom = %q, ожидается noreply@parcolettverismo.it", cfg.MailFrom)
	}
	if cfg.AdminEmail != "admin@parcolettverismo.it" {
		t.Errorf("AdminEmail = %q, ожидается admin@parcolettverismo.it", cfg.AdminEmail)
	}
	if cfg.IntakeRateLimit != 5 {
		t.Errorf("IntakeRateLimit = %d, ожидается 5", cfg.IntakeRateLimit)
	}
	if cfg.IntakeRateWindow != time.Hour {
		t.Errorf("IntakeRateWindow = %v, ожидается 1h", cfg.IntakeRateWindow)
	}
	if cfg.ContentCacheTTL != 5*time.Minute {
		t.Errorf("ContentCacheTTL = %v, ожидается 5m", cfg.ContentCacheTTL)
	}
	if len(cfg.StaffGroups) != 1 || cfg.StaffGroups[0] != "parco-staff" {
		t.Errorf("StaffGroups = %v, ожидается [parco-staff]", cfg.StaffGroups)
	}
	if cfg.StaffAPIEnabled() {
		t.Error("StaffAPIEnabled() = true без PV_JWT_JWKS_URL")
	}
	if cfg.ArchiveEnabled() {
		t.Error("ArchiveEnabled() = true без PV_S3_ENDPOINT")
	}
	if !cfg.TrustProxy {
		t.Error("TrustProxy = false, ожидается true по умолчанию")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{"PV_DB_HOST", "PV_DB_NAME", "PV_DB_USER", "PV_DB_PASSWORD"}

	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, key)
			setEnvs(t, envs)
			t.Setenv(key, "")

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен вернуть ошибку", key)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "PV_PORT", "70000"},
		{"порт не число", "PV_PORT", "abc"},
		{"уровень логов", "PV_LOG_LEVEL", "verbose"},
		{"формат логов", "PV_LOG_FORMAT", "xml"},
		{"язык", "PV_DEFAULT_LANG", "fr"},
		{"часовой пояс", "PV_TIMEZONE", "Mars/Olympus"},
		{"ssl mode", "PV_DB_SSL_MODE", "maybe"},
		{"длительность", "PV_NOTIFY_TIMEOUT", "10"},
		{"лимит intake", "PV_INTAKE_RATE_LIMIT", "0"},
		{"размер кэша", "PV_CONTENT_CACHE_SIZE", "0"},
		{"trust proxy", "PV_TRUST_PROXY", "forse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_TelegramRequiresChatID(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("PV_TELEGRAM_BOT_TOKEN", "123:abc")

	if _, err := Load(); err == nil {
		t.Fatal("Load() с токеном без PV_TELEGRAM_CHAT_ID должен вернуть ошибку")
	}

	t.Setenv("PV_TELEGRAM_CHAT_ID", "-100200300")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.TelegramChatID != -100200300 {
		t.Errorf("TelegramChatID = %d, ожидается -100200300", cfg.TelegramChatID)
	}
}

func TestLoad_StaffAndArchive(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("PV_JWT_JWKS_URL", "https://sso.example.it/realms/parco/protocol/openid-connect/certs")
	t.Setenv("PV_STAFF_GROUPS", " parco-staff , guide ,")
	t.Setenv("PV_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("PV_S3_BUCKET", "exports")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if !cfg.StaffAPIEnabled() {
		t.Error("StaffAPIEnabled() = false при заданном PV_JWT_JWKS_URL")
	}
	if !cfg.ArchiveEnabled() {
		t.Error("ArchiveEnabled() = false при заданных PV_S3_ENDPOINT и PV_S3_BUCKET")
	}
	if len(cfg.StaffGroups) != 2 || cfg.StaffGroups[1] != "guide" {
		t.Errorf("StaffGroups = %v, ожидается [parco-staff guide]", cfg.StaffGroups)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5433, DBName: "parco",
		DBUser: "u", DBPassword: "p", DBSSLMode: "require",
	}
	want := "host=db port=5433 dbname=parco user=u password=p sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
	if got := cfg.DatabaseURL(); got != "postgres://db:5433/parco" {
		t.Errorf("DatabaseURL() = %q", got)
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b", 2},
		{" a , , b ", 2},
	}
	for _, tt := range tests {
		if got := parseCSV(tt.in); len(got) != tt.want {
			t.Errorf("parseCSV(%q) = %v, ожидается %d элементов", tt.in, got, tt.want)
		}
	}
}
