package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"gorm.io/gorm"
)

func createCompanyBalancesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_company_balances",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CompanyBalanceModel{}); err != nil {
				return err
			}
			return execAll(tx,
				`ALTER TABLE company_balances DROP CONSTRAINT IF EXISTS chk_company_balances_available`,
				`ALTER TABLE company_balances ADD CONSTRAINT chk_company_balances_available CHECK (available >= 0)`,
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CompanyBalanceModel{})
		},
	}
}
