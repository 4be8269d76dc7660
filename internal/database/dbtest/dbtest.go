// Пакет dbtest — запуск PostgreSQL в Docker-контейнере (testcontainers)
// для интеграционных тестов. Тесты пропускаются, если не задана TEST_INTEGRATION.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nkrecruitment/portal/internal/config"
	"github.com/nkrecruitment/portal/internal/database"
)

// StartPostgres запускает контейнер PostgreSQL и возвращает конфигурацию
// для подключения к нему. Контейнер останавливается в t.Cleanup.
func StartPostgres(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("nk_test"),
		postgres.WithUsername("nk"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	return &config.Config{
		DBHost:     host,
		DBPort:     port.Int(),
		DBName:     "nk_test",
		DBUser:     "nk",
		DBPassword: "test-password",
		DBSSLMode:  "disable",
		LogLevel:   slog.LevelDebug,
		LogFormat:  "text",
	}
}

// MigratedPool запускает контейнер, применяет миграции и возвращает пул.
func MigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := StartPostgres(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}
