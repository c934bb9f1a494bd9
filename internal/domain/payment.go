package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MessagesPerUSD is the fixed exchange rate between paid dollars and message credits.
const MessagesPerUSD = 10

const (
	TransactionStatusCompleted = "completed"
	MessageLogTypeRecharge     = "recharge"
)

// OrderStatus tracks a payment order from creation to credit.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusCaptured  OrderStatus = "CAPTURED"
	OrderStatusCredited  OrderStatus = "CREDITED"
	OrderStatusAbandoned OrderStatus = "ABANDONED"
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusCaptured, OrderStatusCredited, OrderStatusAbandoned:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCredited || s == OrderStatusAbandoned
}

// CanTransitionTo enforces CREATED -> CAPTURED -> CREDITED and CREATED -> ABANDONED.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusCaptured || next == OrderStatusAbandoned
	case OrderStatusCaptured:
		return next == OrderStatusCredited
	}
	return false
}

// PaymentOrder is an order created through the payment processor on behalf of a company.
type PaymentOrder struct {
	OrderID       string
	CompanyID     string
	Amount        decimal.Decimal
	Status        OrderStatus
	TransactionID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Credit is a confirmed payment that should increase a company's balance.
type Credit struct {
	CompanyID     string
	TransactionID string
	Amount        decimal.Decimal
	Messages      int64
	CreatedAt     time.Time
}

func NewCredit(companyID string, transactionID string, amount decimal.Decimal) (Credit, error) {
	c := Credit{
		CompanyID:     strings.TrimSpace(companyID),
		TransactionID: strings.TrimSpace(transactionID),
		Amount:        amount,
	}
	if c.CompanyID == "" {
		return Credit{}, fmt.Errorf("%w: company id is required", ErrValidation)
	}
	if c.TransactionID == "" {
		return Credit{}, fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return Credit{}, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	c.Messages = CreditedMessages(amount)
	return c, nil
}

// CreditedMessages converts dollars into messages, rounding half away from zero.
func CreditedMessages(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(MessagesPerUSD)).Round(0).IntPart()
}

// CreditResult is returned by every crediting call, duplicated or not.
type CreditResult struct {
	CreditedMessageCount int64
	Duplicated           bool
}

// PaymentTransaction is the append-only record of a credited payment.
type PaymentTransaction struct {
	CompanyID        string
	TransactionID    string
	Amount           decimal.Decimal
	CreditedMessages int64
	Status           string
	CreatedAt        time.Time
}

// Balance is the prepaid message balance of a company.
type Balance struct {
	CompanyID string
	Available int64
	UpdatedAt time.Time
}
