package db

import (
	"fmt"

	"gorm.io/gorm"

	"plate-service/internal/model"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS plate_posts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		owner_id UUID NOT NULL,
		plate_display VARCHAR(%[1]d) NOT NULL,
		plate_canonical VARCHAR(%[1]d) NOT NULL,
		tags JSONB NOT NULL DEFAULT '[]'::jsonb,
		image_data BYTEA,
		image_content_type VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`, model.PlateMaxLength),
	`CREATE INDEX IF NOT EXISTS idx_plate_posts_owner_id ON plate_posts (owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_posts_plate_canonical ON plate_posts (plate_canonical);`,
	`CREATE INDEX IF NOT EXISTS idx_plate_posts_created_at ON plate_posts (created_at DESC);`,
	`CREATE OR REPLACE FUNCTION set_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_plate_posts_updated_at') THEN
			CREATE TRIGGER trg_plate_posts_updated_at
				BEFORE UPDATE ON plate_posts
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
