// Command migrate applies or rolls back the embedded PostgreSQL migrations
// over a plain database/sql connection.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/migrations"
)

func main() {
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			logging.Fatal().Err(err).Msg("DATABASE_URL is not set and configuration failed to load")
		}
		dsn = cfg.Database.URL()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if _, err := db.Exec(migrations.TrackingTable); err != nil {
		logging.Fatal().Err(err).Msg("failed to create migrations table")
	}

	if *rollback {
		err = rollbackLast(db)
	} else {
		err = applyPending(db)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("migration failed")
	}
}

func applyPending(db *sql.DB) error {
	list, err := migrations.List()
	if err != nil {
		return err
	}

	for _, m := range list {
		var applied bool
		if err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if applied {
			logging.Info().Str("migration", m.Name).Msg("already applied")
			continue
		}

		up, err := m.Up()
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", m.Name, err)
		}
		err = inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(up); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		logging.Info().Str("migration", m.Name).Msg("applied migration")
	}

	logging.Info().Msg("all migrations applied")
	return nil
}

func rollbackLast(db *sql.DB) error {
	var last migrations.Migration
	err := db.QueryRow("SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&last.Version, &last.Name)
	if errors.Is(err, sql.ErrNoRows) {
		logging.Info().Msg("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last migration: %w", err)
	}

	down, err := last.Down()
	if err != nil {
		return fmt.Errorf("rollback file not found for %s: %w", last.Name, err)
	}
	err = inTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(down); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", last.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to roll back %s: %w", last.Name, err)
	}

	logging.Info().Str("migration", last.Name).Msg("rolled back migration")
	return nil
}

func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
