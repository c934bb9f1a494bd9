package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"gorm.io/gorm"
)

func createNotificationAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notification_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationAttemptModel{}); err != nil {
				return err
			}
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_attempts_channel_sent_at ON notification_attempts (channel, sent_at)`,
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationAttemptModel{})
		},
	}
}
