package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"template-pipeline/internal/repository"
)

func createQualitySnapshotsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_quality_snapshots",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.QualitySnapshotModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_quality_snapshots_template_captured ON quality_snapshots (template_name, captured_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.QualitySnapshotModel{})
		},
	}
}
