package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"gorm.io/gorm"
)

type PaymentOrderRepository interface {
	Create(ctx context.Context, order *domain.PaymentOrder) error
	GetByID(ctx context.Context, orderID string) (*domain.PaymentOrder, error)
	Transition(ctx context.Context, orderID string, from domain.OrderStatus, to domain.OrderStatus, transactionID *string) error
}

type GormPaymentOrderRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormPaymentOrderRepo(db *gorm.DB) *GormPaymentOrderRepo {
	return &GormPaymentOrderRepo{db: db, now: time.Now}
}

func (r *GormPaymentOrderRepo) Create(ctx context.Context, order *domain.PaymentOrder) error {
	model := orderModelFromDomain(order)
	if model == nil {
		return fmt.Errorf("%w: order is required", domain.ErrValidation)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%w: order %s already exists", domain.ErrConflict, model.OrderID)
		}
		return fmt.Errorf("%w: create order: %w", domain.ErrStorage, err)
	}
	*order = *orderModelToDomain(model)
	return nil
}

func (r *GormPaymentOrderRepo) GetByID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	var model PaymentOrderModel
	err := r.db.WithContext(ctx).First(&model, "order_id = ?", strings.TrimSpace(orderID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %w", domain.ErrStorage, err)
	}
	return orderModelToDomain(&model), nil
}

// Transition moves an order from one status to the next only if it is still in
// the expected status. A lost race surfaces as domain.ErrConflict.
func (r *GormPaymentOrderRepo) Transition(
	ctx context.Context,
	orderID string,
	from domain.OrderStatus,
	to domain.OrderStatus,
	transactionID *string,
) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: order cannot move from %s to %s", domain.ErrConflict, from, to)
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": r.now().UTC(),
	}
	if transactionID != nil {
		updates["transaction_id"] = *transactionID
	}

	result := r.db.WithContext(ctx).
		Model(&PaymentOrderModel{}).
		Where("order_id = ? AND status = ?", strings.TrimSpace(orderID), from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%w: update order: %w", domain.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s is not %s", domain.ErrConflict, orderID, from)
	}
	return nil
}
