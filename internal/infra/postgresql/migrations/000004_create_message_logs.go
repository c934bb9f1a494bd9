package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"gorm.io/gorm"
)

func createMessageLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_message_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageLogModel{}); err != nil {
				return err
			}
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_message_logs_reference ON message_logs (reference)`,
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageLogModel{})
		},
	}
}
