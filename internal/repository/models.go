package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// NotificationAttemptModel is the persistence model for notification_attempts.
type NotificationAttemptModel struct {
	ID             uint                  `gorm:"primaryKey"`
	ReceiptID      string                `gorm:"type:varchar(64);not null;uniqueIndex:idx_attempts_receipt_channel"`
	Channel        domain.Channel        `gorm:"type:varchar(20);not null;uniqueIndex:idx_attempts_receipt_channel"`
	ClientName     string                `gorm:"type:varchar(255)"`
	ReceiptStatus  string                `gorm:"type:varchar(50)"`
	SentAt         time.Time             `gorm:"not null"`
	Attempt        int                   `gorm:"not null;default:1"`
	DeliveryStatus domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	RawResponse    datatypes.JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationAttemptModel) TableName() string {
	return "notification_attempts"
}

// PaymentTransactionModel is the persistence model for payment_transactions.
type PaymentTransactionModel struct {
	ID               uint            `gorm:"primaryKey"`
	CompanyID        string          `gorm:"type:varchar(32);not null;index"`
	TransactionID    string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreditedMessages int64           `gorm:"not null"`
	Status           string          `gorm:"type:varchar(20);not null"`
	CreatedAt        time.Time
}

func (PaymentTransactionModel) TableName() string {
	return "payment_transactions"
}

// CompanyBalanceModel is the persistence model for company_balances.
type CompanyBalanceModel struct {
	CompanyID string `gorm:"type:varchar(32);primaryKey"`
	Available int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (CompanyBalanceModel) TableName() string {
	return "company_balances"
}

// MessageLogModel is the persistence model for message_logs.
type MessageLogModel struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	CompanyID string `gorm:"type:varchar(32);not null;index"`
	Type      string `gorm:"type:varchar(20);not null"`
	Quantity  int64  `gorm:"not null"`
	Reference string `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time
}

func (MessageLogModel) TableName() string {
	return "message_logs"
}

// PaymentOrderModel is the persistence model for payment_orders.
type PaymentOrderModel struct {
	OrderID       string             `gorm:"type:varchar(64);primaryKey"`
	CompanyID     string             `gorm:"type:varchar(32);not null;index"`
	Amount        decimal.Decimal    `gorm:"type:numeric(12,2);not null"`
	Status        domain.OrderStatus `gorm:"type:varchar(20);not null"`
	TransactionID *string            `gorm:"type:varchar(128)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PaymentOrderModel) TableName() string {
	return "payment_orders"
}

func attemptModelFromOutcome(o domain.AttemptOutcome, sentAt time.Time) *NotificationAttemptModel {
	return &NotificationAttemptModel{
		ReceiptID:      o.ReceiptID,
		Channel:        o.Channel,
		ClientName:     o.ClientName,
		ReceiptStatus:  o.ReceiptStatus,
		SentAt:         sentAt,
		Attempt:        1,
		DeliveryStatus: o.DeliveryStatus,
		RawResponse:    datatypes.JSON(o.RawResponse),
		CreatedAt:      sentAt,
		UpdatedAt:      sentAt,
	}
}

func attemptModelToDomain(m *NotificationAttemptModel) *domain.AttemptRecord {
	if m == nil {
		return nil
	}

	sentAt := m.SentAt
	return &domain.AttemptRecord{
		ReceiptID:      m.ReceiptID,
		Channel:        m.Channel,
		ClientName:     m.ClientName,
		ReceiptStatus:  m.ReceiptStatus,
		LastSentAt:     &sentAt,
		Attempt:        m.Attempt,
		DeliveryStatus: m.DeliveryStatus,
		RawResponse:    json.RawMessage(m.RawResponse),
	}
}

func transactionModelToDomain(m *PaymentTransactionModel) domain.PaymentTransaction {
	return domain.PaymentTransaction{
		CompanyID:        m.CompanyID,
		TransactionID:    m.TransactionID,
		Amount:           m.Amount,
		CreditedMessages: m.CreditedMessages,
		Status:           m.Status,
		CreatedAt:        m.CreatedAt,
	}
}

func orderModelFromDomain(o *domain.PaymentOrder) *PaymentOrderModel {
	if o == nil {
		return nil
	}

	return &PaymentOrderModel{
		OrderID:       o.OrderID,
		CompanyID:     o.CompanyID,
		Amount:        o.Amount,
		Status:        o.Status,
		TransactionID: o.TransactionID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func orderModelToDomain(m *PaymentOrderModel) *domain.PaymentOrder {
	if m == nil {
		return nil
	}

	return &domain.PaymentOrder{
		OrderID:       m.OrderID,
		CompanyID:     m.CompanyID,
		Amount:        m.Amount,
		Status:        m.Status,
		TransactionID: m.TransactionID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
