package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Samocology/noap-backend/internal/auth"
	"github.com/Samocology/noap-backend/internal/config"
	"github.com/Samocology/noap-backend/internal/db"
	apperrors "github.com/Samocology/noap-backend/internal/errors"
	"github.com/Samocology/noap-backend/internal/logging"
	"github.com/Samocology/noap-backend/internal/model"
	"github.com/Samocology/noap-backend/internal/repository"
	"github.com/Samocology/noap-backend/internal/service"
)

// The seed command creates the three role records and, when ADMIN_EMAIL and
// ADMIN_PASSWORD are set, a verified administrator. Admins have no signup
// route, so this is the only way to provision one.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting seed")

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Error("database init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	principalRepo := repository.NewPrincipalRepository(gormDB)
	roles := service.NewRoleRegistry(repository.NewRoleRepository(gormDB))
	credentials := service.NewCredentialStore(principalRepo, roles,
		auth.NewHasher(cfg.BcryptCost, cfg.HashWorkers), auth.NewIdentityStore(nil), logger)

	ctx := context.Background()
	if err := seedRoles(ctx, roles, logger); err != nil {
		logger.Error("seed roles failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Info("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin")
		return
	}
	created, err := seedAdmin(ctx, credentials, principalRepo, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("seed admin failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if created {
		logger.Info("admin created", slog.String("email", cfg.AdminEmail))
	} else {
		logger.Info("admin already exists", slog.String("email", cfg.AdminEmail))
	}
}

func seedRoles(ctx context.Context, roles service.RoleRegistry, logger *slog.Logger) error {
	for _, name := range []model.RoleName{model.RoleAdmin, model.RoleMember, model.RoleSchool} {
		role, err := roles.FindOrCreate(ctx, name)
		if err != nil {
			return fmt.Errorf("role %s: %w", name, err)
		}
		logger.Info("role ready", slog.String("name", string(role.Name)), slog.String("id", role.ID.String()))
	}
	return nil
}

// seedAdmin registers an administrator and marks it verified in one
// transaction. An existing admin with the same email is left untouched.
func seedAdmin(ctx context.Context, credentials service.CredentialStore, repo repository.PrincipalRepository, name, email, password string) (bool, error) {
	admin := &model.Admin{Name: name, Credentials: model.Credentials{Email: email}}
	err := repo.WithTransaction(ctx, func(ctx context.Context, tx repository.PrincipalRepository) error {
		if err := credentials.WithRepository(tx).Register(ctx, admin, password); err != nil {
			return err
		}
		admin.Verified = true
		if err := tx.Save(ctx, admin); err != nil {
			return fmt.Errorf("mark admin verified: %w", err)
		}
		return nil
	})
	if errors.Is(err, apperrors.ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
