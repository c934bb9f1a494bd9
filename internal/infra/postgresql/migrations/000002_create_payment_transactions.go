package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"gorm.io/gorm"
)

func createPaymentTransactionsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_payment_transactions",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.PaymentTransactionModel{}); err != nil {
				return err
			}
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_payment_transactions_company_created ON payment_transactions (company_id, created_at DESC)`,
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PaymentTransactionModel{})
		},
	}
}
