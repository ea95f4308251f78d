package database

import (
	"context"
	"database/sql"
	"fmt"

	"devsocial/pkg/config"
	"devsocial/pkg/database/migrations"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func Connect(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		logger.Warn("postgres url is empty, relying on libpq environment defaults")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connection to PostgreSQL established")
	return db, nil
}

// Migrate applies every pending embedded migration.
func Migrate(db *sql.DB, logger *zap.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(logger))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logger.Info("schema migrated")
	return nil
}

// Pending lists the embedded migrations, in version order.
func Pending() ([]*goose.Migration, error) {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	return goose.CollectMigrations(".", 0, goose.MaxVersion)
}
