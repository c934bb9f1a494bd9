package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate creates the tables owned by this service. Receipt and policy tables
// belong to the policy-management system and are never touched here.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createNotificationAttemptsTable(),
		createPaymentTransactionsTable(),
		createCompanyBalancesTable(),
		createMessageLogsTable(),
		createPaymentOrdersTable(),
	})

	return m.Migrate()
}

func execAll(tx *gorm.DB, statements ...string) error {
	for _, sql := range statements {
		if err := tx.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}
