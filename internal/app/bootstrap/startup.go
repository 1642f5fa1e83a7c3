// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	settingstore "github.com/chitchatclub/chitchatclub/internal/app/store/settings"
	userstore "github.com/chitchatclub/chitchatclub/internal/app/store/users"
	"github.com/chitchatclub/chitchatclub/internal/app/system/workers"
	"github.com/chitchatclub/chitchatclub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It seeds
// the tunable app_settings (without overwriting admin-adjusted values) and
// bootstraps the superadmin account when one is configured.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	settings := settingstore.New(deps.MongoDatabase)
	if err := settings.SeedDefaults(ctx, settingstore.Defaults()); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	if email := strings.TrimSpace(appCfg.SuperAdminEmail); email != "" {
		if err := ensureSuperAdmin(ctx, deps, email, logger); err != nil {
			return fmt.Errorf("ensure superadmin: %w", err)
		}
	}

	if appCfg.SessionCleanupInterval > 0 && appCfg.SessionInactiveThreshold > 0 {
		sessionCleanup = workers.NewSessionCleanup(
			authsessionstore.New(deps.MongoDatabase), logger,
			appCfg.SessionCleanupInterval, appCfg.SessionInactiveThreshold)
		sessionCleanup.Start()
	}

	return nil
}

// sessionCleanup runs for the life of the process; Shutdown stops it.
var sessionCleanup *workers.SessionCleanup

// ensureSuperAdmin promotes the configured account to superadmin, creating
// it first if no user with that email exists. A created account has no
// password; the operator signs in through Google with the same address.
func ensureSuperAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	if existing != nil {
		if existing.Role == models.RoleSuperAdmin {
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleSuperAdmin); err != nil {
			return err
		}
		logger.Info("promoted existing user to superadmin",
			zap.String("email", email),
			zap.String("previous_role", existing.Role))
		return nil
	}

	created, err := users.Create(ctx, models.User{
		FullName:      "Super Admin",
		Email:         email,
		Role:          models.RoleSuperAdmin,
		AuthMethod:    "google",
		EmailVerified: true,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			// Lost a race with a concurrent boot; the other instance won.
			return nil
		}
		return err
	}

	logger.Info("created superadmin user",
		zap.String("email", email),
		zap.String("user_id", created.ID.Hex()))
	return nil
}
