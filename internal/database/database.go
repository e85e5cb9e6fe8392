package database

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/receivr-io/receivr/internal/database/migration_20261001_0000"
	"github.com/receivr-io/receivr/internal/database/migrations"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewDatabase(
	ctx context.Context,
	logger *zap.SugaredLogger,
	host string,
	user string,
	password string,
	dbname string,
	port string,
	sslmode string,
) (*gorm.DB, string, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)
	var db *gorm.DB
	connectDb := func() error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         NewLogger(logger),
			TranslateError: true,
		})
		if err != nil {
			logger.Warnw("database is not ready yet", "host", host, "error", err)
			return err
		}
		return nil
	}
	err := backoff.Retry(connectDb, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		return nil, "", err
	}
	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(dbname))); err != nil {
		return nil, "", fmt.Errorf("failed to install the tracing plugin: %w", err)
	}
	return db, dsn, nil
}

// Migrations returns every schema migration of the service, oldest first.
func Migrations() *migrations.Migrations {
	return migrations.New(
		migration_20261001_0000.Migrate(),
	)
}
