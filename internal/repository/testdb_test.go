package repository

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with every table the
// repositories touch.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	models := []any{
		&NotificationAttemptModel{},
		&PaymentTransactionModel{},
		&CompanyBalanceModel{},
		&MessageLogModel{},
		&PaymentOrderModel{},
	}
	models = append(models, ExternalModels()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	return db
}

func mustCreate(t *testing.T, db *gorm.DB, values ...any) {
	t.Helper()

	for _, v := range values {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("Create(%T) error = %v", v, err)
		}
	}
}
