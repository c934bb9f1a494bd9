package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditRepository interface {
	TransactionExists(ctx context.Context, transactionID string) (bool, error)
	ApplyCredit(ctx context.Context, credit domain.Credit) error
	History(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error)
	Balance(ctx context.Context, companyID string) (domain.Balance, error)
}

type GormCreditRepo struct {
	db *gorm.DB
}

func NewGormCreditRepo(db *gorm.DB) *GormCreditRepo {
	return &GormCreditRepo{db: db}
}

func (r *GormCreditRepo) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PaymentTransactionModel{}).
		Where("transaction_id = ?", strings.TrimSpace(transactionID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: check transaction: %w", domain.ErrStorage, err)
	}
	return count > 0, nil
}

// ApplyCredit writes the transaction record, the balance increment and the
// message log entry in one database transaction. A unique violation on the
// transaction id is reported as domain.ErrDuplicateTransaction.
func (r *GormCreditRepo) ApplyCredit(ctx context.Context, credit domain.Credit) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn := PaymentTransactionModel{
			CompanyID:        credit.CompanyID,
			TransactionID:    credit.TransactionID,
			Amount:           credit.Amount,
			CreditedMessages: credit.Messages,
			Status:           domain.TransactionStatusCompleted,
			CreatedAt:        credit.CreatedAt,
		}
		if err := tx.Create(&txn).Error; err != nil {
			if isUniqueViolationError(err) {
				return domain.ErrDuplicateTransaction
			}
			return err
		}

		balance := CompanyBalanceModel{
			CompanyID: credit.CompanyID,
			Available: credit.Messages,
			UpdatedAt: credit.CreatedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "company_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"available":  gorm.Expr("company_balances.available + ?", credit.Messages),
				"updated_at": credit.CreatedAt,
			}),
		}).Create(&balance).Error
		if err != nil {
			return err
		}

		entry := MessageLogModel{
			ID:        uuid.NewString(),
			CompanyID: credit.CompanyID,
			Type:      domain.MessageLogTypeRecharge,
			Quantity:  credit.Messages,
			Reference: credit.TransactionID,
			CreatedAt: credit.CreatedAt,
		}
		return tx.Create(&entry).Error
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		return err
	}
	return fmt.Errorf("%w: apply credit: %w", domain.ErrStorage, err)
}

func (r *GormCreditRepo) History(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error) {
	var models []PaymentTransactionModel
	err := r.db.WithContext(ctx).
		Where("company_id = ?", strings.TrimSpace(companyID)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %w", domain.ErrStorage, err)
	}

	history := make([]domain.PaymentTransaction, 0, len(models))
	for i := range models {
		history = append(history, transactionModelToDomain(&models[i]))
	}
	return history, nil
}

// Balance returns a zero balance for companies that were never credited.
func (r *GormCreditRepo) Balance(ctx context.Context, companyID string) (domain.Balance, error) {
	companyID = strings.TrimSpace(companyID)

	var model CompanyBalanceModel
	err := r.db.WithContext(ctx).First(&model, "company_id = ?", companyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Balance{CompanyID: companyID}, nil
	}
	if err != nil {
		return domain.Balance{}, fmt.Errorf("%w: load balance: %w", domain.ErrStorage, err)
	}

	return domain.Balance{
		CompanyID: model.CompanyID,
		Available: model.Available,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
