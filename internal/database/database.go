package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"

	"github.com/cashly/journey-api/config"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var DB *bun.DB

//go:embed migrations/*.sql
var migrations embed.FS

// Retry configuration - connection may race container startup
const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 10 * time.Second
	backoffFactor  = 2
)

func Connect(cfg *config.Config) (*bun.DB, error) {
	var db *bun.DB
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, lastErr = attemptConnect(cfg)
		if lastErr == nil {
			if attempt > 1 {
				log.Printf("Successfully connected to database on attempt %d", attempt)
			}
			if err := runMigrations(db.DB); err != nil {
				db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			DB = db
			return db, nil
		}

		log.Printf("Database connection attempt %d/%d failed: %v", attempt, maxRetries, lastErr)

		if attempt < maxRetries {
			log.Printf("Retrying in %v...", backoff)
			time.Sleep(backoff)

			// Exponential backoff with max limit
			backoff *= backoffFactor
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

func attemptConnect(cfg *config.Config) (*bun.DB, error) {
	// Simple query protocol keeps us compatible with transaction poolers
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DatabaseURL),
		pgdriver.WithDialTimeout(10*time.Second),
		pgdriver.WithReadTimeout(30*time.Second),
		pgdriver.WithWriteTimeout(30*time.Second),
	)
	sqldb := sql.OpenDB(connector)

	// Transaction pooler returns connections after each query,
	// so a small pool is enough
	sqldb.SetMaxOpenConns(5)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(2 * time.Minute)
	sqldb.SetConnMaxIdleTime(1 * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
