// Команда init-admin создаёт администратора из ADMIN_EMAIL и ADMIN_PASSWORD
// либо повышает существующего пользователя до администратора.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/plan-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/plan-subscriptions/internal/migrations"
	authservice "github.com/magabrotheeeer/plan-subscriptions/internal/services/auth"
	"github.com/magabrotheeeer/plan-subscriptions/internal/storage/repository"
)

const initTimeout = 30 * time.Second

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		logger.Error("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := repository.New(cfg.Storage)
	if err != nil {
		logger.Error("failed to connect storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		logger.Error("failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	svc := authservice.NewAuthService(db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger)
	outcome, err := svc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		logger.Error("failed to ensure admin", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("admin ready", slog.String("email", cfg.Admin.Email), slog.String("outcome", string(outcome)))
}
