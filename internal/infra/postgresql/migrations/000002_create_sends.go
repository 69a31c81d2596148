package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"template-pipeline/internal/repository"
)

func createSendsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_sends",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SendModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_sends_status_created ON sends (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_sends_template_name ON sends (template_name)`,
				`CREATE INDEX IF NOT EXISTS idx_sends_recipient ON sends (recipient)`,
				`CREATE INDEX IF NOT EXISTS idx_sends_correlation_id ON sends (correlation_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SendModel{})
		},
	}
}
