package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository interface {
	Get(ctx context.Context, receiptID string, channel domain.Channel) (*domain.AttemptRecord, error)
	Record(ctx context.Context, outcome domain.AttemptOutcome, sentAt time.Time) error
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Get(ctx context.Context, receiptID string, channel domain.Channel) (*domain.AttemptRecord, error) {
	var model NotificationAttemptModel
	err := r.db.WithContext(ctx).
		Where("receipt_id = ? AND channel = ?", strings.TrimSpace(receiptID), channel).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load attempt: %w", domain.ErrStorage, err)
	}
	return attemptModelToDomain(&model), nil
}

// Record upserts the (receipt, channel) row in a single statement: the first
// attempt inserts attempt=1, later attempts increment it and overwrite the outcome.
func (r *GormAttemptRepo) Record(ctx context.Context, outcome domain.AttemptOutcome, sentAt time.Time) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	model := attemptModelFromOutcome(outcome, sentAt)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "receipt_id"}, {Name: "channel"}},
			DoUpdates: clause.Assignments(map[string]any{
				"attempt":         gorm.Expr("notification_attempts.attempt + 1"),
				"sent_at":         model.SentAt,
				"client_name":     model.ClientName,
				"receipt_status":  model.ReceiptStatus,
				"delivery_status": model.DeliveryStatus,
				"raw_response":    model.RawResponse,
				"updated_at":      model.UpdatedAt,
			}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("%w: record attempt: %w", domain.ErrStorage, err)
	}
	return nil
}
