package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreditedMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount string
		want   int64
	}{
		{amount: "10.00", want: 100},
		{amount: "1.04", want: 10},
		{amount: "2.35", want: 24},
		{amount: "0.05", want: 1},
		{amount: "0.04", want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.amount, func(t *testing.T) {
			t.Parallel()

			if got := CreditedMessages(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Fatalf("CreditedMessages(%s) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestNewCredit(t *testing.T) {
	t.Parallel()

	credit, err := NewCredit(" J-296269246 ", " TXN-1 ", decimal.RequireFromString("10.00"))
	if err != nil {
		t.Fatalf("NewCredit() error = %v", err)
	}
	if credit.CompanyID != "J-296269246" || credit.TransactionID != "TXN-1" {
		t.Fatalf("NewCredit() did not trim identifiers: %+v", credit)
	}
	if credit.Messages != 100 {
		t.Fatalf("Messages = %d, want 100", credit.Messages)
	}

	invalid := []struct {
		name      string
		companyID string
		txnID     string
		amount    decimal.Decimal
	}{
		{name: "missing company", companyID: "", txnID: "TXN-1", amount: decimal.NewFromInt(1)},
		{name: "missing transaction", companyID: "J-1", txnID: " ", amount: decimal.NewFromInt(1)},
		{name: "zero amount", companyID: "J-1", txnID: "TXN-1", amount: decimal.Zero},
		{name: "negative amount", companyID: "J-1", txnID: "TXN-1", amount: decimal.NewFromInt(-5)},
	}
	for _, tc := range invalid {
		if _, err := NewCredit(tc.companyID, tc.txnID, tc.amount); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: NewCredit() error = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	t.Parallel()

	allowed := map[[2]OrderStatus]bool{
		{OrderStatusCreated, OrderStatusCaptured}:   true,
		{OrderStatusCreated, OrderStatusAbandoned}:  true,
		{OrderStatusCaptured, OrderStatusCredited}:  true,
		{OrderStatusCreated, OrderStatusCredited}:   false,
		{OrderStatusCaptured, OrderStatusAbandoned}: false,
		{OrderStatusCredited, OrderStatusCaptured}:  false,
		{OrderStatusAbandoned, OrderStatusCaptured}: false,
	}

	for pair, want := range allowed {
		if got := pair[0].CanTransitionTo(pair[1]); got != want {
			t.Fatalf("%s -> %s = %v, want %v", pair[0], pair[1], got, want)
		}
	}

	if !OrderStatusAbandoned.IsTerminal() || !OrderStatusCredited.IsTerminal() || OrderStatusCreated.IsTerminal() {
		t.Fatal("terminal status classification is wrong")
	}
}

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	if !IsRetriable(errors.Join(ErrStorage, errors.New("connection reset"))) {
		t.Fatal("storage errors should be retriable")
	}
	if !IsRetriable(ErrExternalService) {
		t.Fatal("external service errors should be retriable")
	}
	if IsRetriable(ErrValidation) {
		t.Fatal("validation errors should not be retriable")
	}
}
