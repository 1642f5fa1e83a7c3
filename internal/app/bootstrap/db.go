// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	authsessionstore "github.com/chitchatclub/chitchatclub/internal/app/store/authsessions"
	emailverifystore "github.com/chitchatclub/chitchatclub/internal/app/store/emailverify"
	passwordresetstore "github.com/chitchatclub/chitchatclub/internal/app/store/passwordreset"
	"github.com/chitchatclub/chitchatclub/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and verifies it with a ping.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the indexes the application relies on. It runs
// after ConnectDB and before Startup, so a broken index definition
// fails the boot instead of surfacing as slow queries later.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// TTL-bearing collections own their indexes through their stores.
	if err := authsessionstore.New(deps.MongoDatabase).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure auth_sessions indexes: %w", err)
	}
	if err := emailverifystore.New(deps.MongoDatabase, appCfg.EmailVerifyExpiry).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure email_verifications indexes: %w", err)
	}
	if err := passwordresetstore.New(deps.MongoDatabase, passwordresetstore.DefaultExpiry).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure password_resets indexes: %w", err)
	}

	logger.Info("database indexes ensured")
	return nil
}
