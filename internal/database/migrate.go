package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/migrations"
)

// RunMigrations brings the schema up to date. SQLite uses gorm auto-migration;
// PostgreSQL applies the embedded SQL files not yet recorded in schema_migrations.
func RunMigrations(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		logging.Info().Msg("using gorm auto-migration for sqlite")
		return db.AutoMigrate(models.All()...)
	}

	if err := db.Exec(migrations.TrackingTable).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	list, err := migrations.List()
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}

	for _, m := range list {
		var count int64
		if err := db.Table("schema_migrations").Where("version = ?", m.Version).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			logging.Debug().Str("migration", m.Name).Msg("skipping migration (already applied)")
			continue
		}

		sql, err := m.Up()
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", m.Name, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(sql).Error; err != nil {
				return err
			}
			return tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}

		logging.Info().Str("migration", m.Name).Msg("applied migration")
	}

	return nil
}
