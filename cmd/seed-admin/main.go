// seed-admin — создаёт первую учётную запись администратора.
// Повторный запуск ничего не меняет, если email уже занят.
//
//	seed-admin --password 's3cret' [--email admin@nkrecruitment.com] [--name "Admin User"] [--role admin]
//
// Пароль можно передать через NK_SEED_PASSWORD вместо флага.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nkrecruitment/portal/internal/config"
	"github.com/nkrecruitment/portal/internal/database"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/repository"
	"github.com/nkrecruitment/portal/internal/service"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var in service.CreateAccountInput

	flagSet := pflag.NewFlagSet("seed-admin", pflag.ContinueOnError)
	flagSet.StringVar(&in.Email, "email", "admin@nkrecruitment.com", "email администратора")
	flagSet.StringVar(&in.Password, "password", os.Getenv("NK_SEED_PASSWORD"), "пароль (по умолчанию из NK_SEED_PASSWORD)")
	flagSet.StringVar(&in.Name, "name", "Admin User", "отображаемое имя")
	flagSet.StringVar(&in.Role, "role", rbac.RoleAdmin, "роль: admin, recruiter, viewer")
	skipMigrate := flagSet.Bool("skip-migrate", false, "не применять миграции перед созданием")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if in.Password == "" {
		return errors.New("пароль не задан: укажите --password или NK_SEED_PASSWORD")
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	logger := config.SetupLogger(cfg)

	if !*skipMigrate {
		if err := database.Migrate(cfg, logger); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	accounts := service.NewAccountService(repository.NewAccountRepository(pool), logger)
	created, err := accounts.EnsureAccount(ctx, in)
	if err != nil {
		return err
	}

	if created {
		logger.Info("Учётная запись создана",
			slog.String("email", service.NormalizeEmail(in.Email)),
			slog.String("role", in.Role),
		)
	} else {
		logger.Info("Учётная запись уже существует, изменений нет",
			slog.String("email", service.NormalizeEmail(in.Email)),
		)
	}
	return nil
}
