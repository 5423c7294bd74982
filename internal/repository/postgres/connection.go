package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// Open connects through the pgx stdlib driver and applies pending migrations.
func Open(ctx context.Context, connStr string, maxOpenConns, maxIdleConns, connMaxLifetimeMin int) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(connMaxLifetimeMin) * time.Minute)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("component", "postgres").Msg("database connected")
	return db, nil
}
