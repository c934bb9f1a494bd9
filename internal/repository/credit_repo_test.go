package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestCredit(t *testing.T, companyID string, txnID string, amount string, at time.Time) domain.Credit {
	t.Helper()

	credit, err := domain.NewCredit(companyID, txnID, decimal.RequireFromString(amount))
	if err != nil {
		t.Fatalf("NewCredit() error = %v", err)
	}
	credit.CreatedAt = at
	return credit
}

func TestGormCreditRepoApplyCredit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewGormCreditRepo(db)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.ApplyCredit(ctx, newTestCredit(t, "J-1", "TXN-1", "10.00", now)); err != nil {
		t.Fatalf("ApplyCredit() error = %v", err)
	}

	exists, err := repo.TransactionExists(ctx, "TXN-1")
	if err != nil {
		t.Fatalf("TransactionExists() error = %v", err)
	}
	if !exists {
		t.Fatal("transaction should exist after credit")
	}

	balance, err := repo.Balance(ctx, "J-1")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Available != 100 {
		t.Fatalf("Available = %d, want 100", balance.Available)
	}

	if err := repo.ApplyCredit(ctx, newTestCredit(t, "J-1", "TXN-2", "2.50", now.Add(time.Hour))); err != nil {
		t.Fatalf("ApplyCredit() second error = %v", err)
	}
	balance, err = repo.Balance(ctx, "J-1")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Available != 125 {
		t.Fatalf("Available = %d, want 125 after second credit", balance.Available)
	}

	var entries []MessageLogModel
	if err := db.Order("created_at ASC").Find(&entries, "company_id = ?", "J-1").Error; err != nil {
		t.Fatalf("load message logs error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("message log entries = %d, want 2", len(entries))
	}
	if entries[0].Type != domain.MessageLogTypeRecharge || entries[0].Quantity != 100 || entries[0].Reference != "TXN-1" {
		t.Fatalf("first log entry = %+v", entries[0])
	}
}

func TestGormCreditRepoApplyCreditDuplicate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewGormCreditRepo(db)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.ApplyCredit(ctx, newTestCredit(t, "J-1", "TXN-DUP", "10.00", now)); err != nil {
		t.Fatalf("ApplyCredit() error = %v", err)
	}

	err := repo.ApplyCredit(ctx, newTestCredit(t, "J-1", "TXN-DUP", "10.00", now))
	if !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("ApplyCredit() duplicate error = %v, want ErrDuplicateTransaction", err)
	}

	balance, err := repo.Balance(ctx, "J-1")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Available != 100 {
		t.Fatalf("Available = %d, want 100 after duplicate", balance.Available)
	}

	var logs int64
	if err := db.Model(&MessageLogModel{}).Count(&logs).Error; err != nil {
		t.Fatalf("count logs error = %v", err)
	}
	if logs != 1 {
		t.Fatalf("message logs = %d, want 1", logs)
	}
}

func TestGormCreditRepoApplyCreditRollsBackOnBalanceFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	forced := errors.New("balance storage unavailable")
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_balance_upsert", func(tx *gorm.DB) {
		if tx.Statement.Table == "company_balances" {
			_ = tx.AddError(forced)
		}
	})
	if err != nil {
		t.Fatalf("register callback error = %v", err)
	}

	repo := NewGormCreditRepo(db)
	ctx := context.Background()

	err = repo.ApplyCredit(ctx, newTestCredit(t, "J-1", "TXN-FAIL", "10.00", time.Now().UTC()))
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("ApplyCredit() error = %v, want ErrStorage", err)
	}
	if !errors.Is(err, forced) {
		t.Fatalf("ApplyCredit() error = %v, want wrapped cause", err)
	}
	if !domain.IsRetriable(err) {
		t.Fatal("storage failure should be retriable")
	}

	exists, err := repo.TransactionExists(ctx, "TXN-FAIL")
	if err != nil {
		t.Fatalf("TransactionExists() error = %v", err)
	}
	if exists {
		t.Fatal("transaction record must not persist after rollback")
	}

	var logs int64
	if err := db.Model(&MessageLogModel{}).Count(&logs).Error; err != nil {
		t.Fatalf("count logs error = %v", err)
	}
	if logs != 0 {
		t.Fatalf("message logs = %d, want 0 after rollback", logs)
	}

	balance, err := repo.Balance(ctx, "J-1")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Available != 0 {
		t.Fatalf("Available = %d, want 0 after rollback", balance.Available)
	}
}

func TestGormCreditRepoHistoryAndEmptyBalance(t *testing.T) {
	t.Parallel()

	repo := NewGormCreditRepo(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	credits := []domain.Credit{
		newTestCredit(t, "J-1", "TXN-OLD", "5.00", base),
		newTestCredit(t, "J-1", "TXN-NEW", "20.00", base.Add(48*time.Hour)),
		newTestCredit(t, "J-2", "TXN-OTHER", "1.00", base.Add(time.Hour)),
	}
	for _, c := range credits {
		if err := repo.ApplyCredit(ctx, c); err != nil {
			t.Fatalf("ApplyCredit(%s) error = %v", c.TransactionID, err)
		}
	}

	history, err := repo.History(ctx, "J-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].TransactionID != "TXN-NEW" || history[1].TransactionID != "TXN-OLD" {
		t.Fatalf("history order = %s, %s; want newest first", history[0].TransactionID, history[1].TransactionID)
	}
	if !history[0].Amount.Equal(decimal.RequireFromString("20")) || history[0].CreditedMessages != 200 {
		t.Fatalf("history[0] = %+v", history[0])
	}
	if history[0].Status != domain.TransactionStatusCompleted {
		t.Fatalf("Status = %s, want completed", history[0].Status)
	}

	balance, err := repo.Balance(ctx, "J-404")
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance.Available != 0 || balance.CompanyID != "J-404" {
		t.Fatalf("Balance() = %+v, want zero balance for J-404", balance)
	}
}
