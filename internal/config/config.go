// Пакет config — загрузка и валидация конфигурации портала NK Recruitment
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые бэкенды хранения CV.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config содержит все параметры конфигурации портала.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сессии ---

	// Секрет подписи JWT (HS256), не короче 32 байт
	JWTSecret string
	// Issuer JWT
	JWTIssuer string
	// Время жизни сессионного токена
	SessionTTL time.Duration
	// Выставлять ли флаг Secure у сессионной cookie
	CookieSecure bool

	// --- Хранилище CV ---

	// Бэкенд хранения: local или s3
	StorageBackend string
	// Каталог для локального хранения загруженных файлов
	UploadDir string
	// Максимальный размер CV в байтах
	MaxCVSize int64

	// S3-совместимое хранилище (для StorageBackend=s3)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	// S3HealthPath — путь проверки доступности S3 для dephealth
	S3HealthPath string

	// --- Почта ---

	EmailHost string
	EmailPort int
	EmailUser string
	EmailPass string
	// Адрес отправителя
	EmailFrom string
	// Адрес для оповещений о новых заявках
	AdminEmail string
	// Ссылка на админ-панель в оповещениях
	AdminURL string

	// --- Очередь уведомлений ---

	// Количество воркеров отправки
	NotifyWorkers int
	// Ёмкость очереди
	NotifyQueueSize int

	// --- Redis (опционально, для rate limiting) ---

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// --- Rate limiting ---

	RateLimitSubmit       int
	RateLimitSubmitWindow time.Duration
	RateLimitLogin        int
	RateLimitLoginWindow  time.Duration
	// TrustedProxies — адреса или подсети балансировщиков, чей X-Forwarded-For учитывается
	TrustedProxies []string

	// --- Кэш ---

	// TTL кэша вариантов фильтров (позиции, статусы)
	FilterCacheTTL time.Duration

	// --- topologymetrics ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// NK_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("NK_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("NK_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("NK_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// NK_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("NK_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("NK_LOG_LEVEL: %w", err)
	}

	// NK_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("NK_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("NK_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}

	// --- Сессии ---

	// NK_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("NK_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("NK_JWT_SECRET: секрет должен быть не короче 32 байт")
	}

	cfg.JWTIssuer = getEnvDefault("NK_JWT_ISSUER", "nk-recruitment")

	// NK_SESSION_TTL — время жизни токена (по умолчанию 24h)
	cfg.SessionTTL, err = getEnvDuration("NK_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("NK_SESSION_TTL: %w", err)
	}

	cfg.CookieSecure, err = getEnvBool("NK_COOKIE_SECURE", true)
	if err != nil {
		return nil, fmt.Errorf("NK_COOKIE_SECURE: %w", err)
	}

	// --- Хранилище CV ---

	if err := loadStorage(cfg); err != nil {
		return nil, err
	}

	// --- Почта (всё опционально: без хоста и пользователя письма не отправляются) ---

	cfg.EmailHost = getEnvDefault("NK_EMAIL_HOST", "")
	cfg.EmailPort, err = getEnvInt("NK_EMAIL_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("NK_EMAIL_PORT: %w", err)
	}
	cfg.EmailUser = getEnvDefault("NK_EMAIL_USER", "")
	cfg.EmailPass = getEnvDefault("NK_EMAIL_PASS", "")
	cfg.EmailFrom = getEnvDefault("NK_EMAIL_FROM", "noreply@nkrecruitment.com")
	cfg.AdminEmail = getEnvDefault("NK_ADMIN_EMAIL", "")
	cfg.AdminURL = getEnvDefault("NK_ADMIN_URL", "https://nkrecruitment.com/admin")

	// --- Очередь уведомлений ---

	cfg.NotifyWorkers, err = getEnvInt("NK_NOTIFY_WORKERS", 2)
	if err != nil {
		return nil, fmt.Errorf("NK_NOTIFY_WORKERS: %w", err)
	}
	if cfg.NotifyWorkers < 1 || cfg.NotifyWorkers > 32 {
		return nil, fmt.Errorf("NK_NOTIFY_WORKERS: значение %d вне допустимого диапазона 1-32", cfg.NotifyWorkers)
	}

	cfg.NotifyQueueSize, err = getEnvInt("NK_NOTIFY_QUEUE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("NK_NOTIFY_QUEUE_SIZE: %w", err)
	}
	if cfg.NotifyQueueSize < 1 {
		return nil, fmt.Errorf("NK_NOTIFY_QUEUE_SIZE: значение должно быть положительным")
	}

	// --- Redis ---

	cfg.RedisAddr = getEnvDefault("NK_REDIS_ADDR", "")
	cfg.RedisPassword = getEnvDefault("NK_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("NK_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("NK_REDIS_DB: %w", err)
	}

	// --- Rate limiting ---

	cfg.RateLimitSubmit, err = getEnvInt("NK_RATE_LIMIT_SUBMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("NK_RATE_LIMIT_SUBMIT: %w", err)
	}
	cfg.RateLimitSubmitWindow, err = getEnvDuration("NK_RATE_LIMIT_SUBMIT_WINDOW", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("NK_RATE_LIMIT_SUBMIT_WINDOW: %w", err)
	}
	cfg.RateLimitLogin, err = getEnvInt("NK_RATE_LIMIT_LOGIN", 20)
	if err != nil {
		return nil, fmt.Errorf("NK_RATE_LIMIT_LOGIN: %w", err)
	}
	cfg.RateLimitLoginWindow, err = getEnvDuration("NK_RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("NK_RATE_LIMIT_LOGIN_WINDOW: %w", err)
	}
	cfg.TrustedProxies = getEnvList("NK_TRUSTED_PROXIES")

	// --- Кэш ---

	cfg.FilterCacheTTL, err = getEnvDuration("NK_FILTER_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("NK_FILTER_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("NK_DEPHEALTH_GROUP", "nk-recruitment")
	cfg.DephealthCheckInterval, err = getEnvDuration("NK_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("NK_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// NK_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("NK_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("NK_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// LoadDatabase загружает только параметры PostgreSQL.
// Используется утилитами (seed-admin), которым не нужна остальная конфигурация.
func LoadDatabase() (*Config, error) {
	cfg := &Config{LogLevel: slog.LevelInfo, LogFormat: "text"}
	if err := loadDatabase(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDatabase(cfg *Config) error {
	var err error

	// NK_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("NK_DB_HOST")
	if err != nil {
		return err
	}

	// NK_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("NK_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("NK_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("NK_DB_NAME")
	if err != nil {
		return err
	}

	cfg.DBUser, err = getEnvRequired("NK_DB_USER")
	if err != nil {
		return err
	}

	cfg.DBPassword, err = getEnvRequired("NK_DB_PASSWORD")
	if err != nil {
		return err
	}

	// NK_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("NK_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("NK_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

func loadStorage(cfg *Config) error {
	var err error

	cfg.StorageBackend = getEnvDefault("NK_STORAGE_BACKEND", StorageLocal)
	cfg.UploadDir = getEnvDefault("NK_UPLOAD_DIR", "uploads")

	// NK_MAX_CV_SIZE — максимальный размер CV (по умолчанию 5 МиБ)
	size, err := getEnvInt("NK_MAX_CV_SIZE", 5*1024*1024)
	if err != nil {
		return fmt.Errorf("NK_MAX_CV_SIZE: %w", err)
	}
	if size < 1 {
		return fmt.Errorf("NK_MAX_CV_SIZE: значение должно быть положительным")
	}
	cfg.MaxCVSize = int64(size)

	switch cfg.StorageBackend {
	case StorageLocal:
		return nil
	case StorageS3:
	default:
		return fmt.Errorf("NK_STORAGE_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.StorageBackend)
	}

	cfg.S3Endpoint = strings.TrimRight(getEnvDefault("NK_S3_ENDPOINT", ""), "/")
	cfg.S3Region = getEnvDefault("NK_S3_REGION", "us-east-1")
	cfg.S3Prefix = strings.Trim(getEnvDefault("NK_S3_PREFIX", "cv"), "/")
	cfg.S3HealthPath = getEnvDefault("NK_S3_HEALTH_PATH", "/minio/health/live")

	cfg.S3Bucket, err = getEnvRequired("NK_S3_BUCKET")
	if err != nil {
		return err
	}
	cfg.S3AccessKey, err = getEnvRequired("NK_S3_ACCESS_KEY")
	if err != nil {
		return err
	}
	cfg.S3SecretKey, err = getEnvRequired("NK_S3_SECRET_KEY")
	if err != nil {
		return err
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных
// (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// EmailEnabled сообщает, настроена ли отправка почты.
func (c *Config) EmailEnabled() bool {
	return c.EmailHost != "" && c.EmailUser != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
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

// getEnvList возвращает непустые элементы списка через запятую.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
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
