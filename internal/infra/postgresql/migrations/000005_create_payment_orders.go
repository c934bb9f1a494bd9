package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"gorm.io/gorm"
)

func createPaymentOrdersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_payment_orders",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PaymentOrderModel{}); err != nil {
				return err
			}
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_payment_orders_open ON payment_orders (company_id, created_at) WHERE status = 'CREATED'`,
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PaymentOrderModel{})
		},
	}
}
