package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"github.com/kursadbilgin/renewal-engine/internal/paypal"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentProcessor is the external payment capability the crediting engine relies on.
type PaymentProcessor interface {
	CreateOrder(ctx context.Context, req paypal.OrderRequest) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

type PaymentService struct {
	credits   repository.CreditRepository
	orders    repository.PaymentOrderRepository
	processor PaymentProcessor
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

type CreateOrderInput struct {
	CompanyID string
	Amount    decimal.Decimal
	ReturnURL string
	CancelURL string
}

type CreatedOrder struct {
	OrderID     string
	ApprovalURL string
}

type CaptureResult struct {
	Status           string
	TransactionID    string
	Amount           decimal.Decimal
	CreditedMessages int64
	Duplicated       bool
}

// Webhook outcomes that are acknowledged without crediting.
const (
	WebhookUnverified          = "unverified"
	WebhookIgnoredEvent        = "ignored_event"
	WebhookUnsupportedCurrency = "unsupported_currency"
	WebhookCredited            = "credited"
)

type WebhookResult struct {
	Outcome string
	Capture *CaptureResult
}

func NewPaymentService(
	credits repository.CreditRepository,
	orders repository.PaymentOrderRepository,
	processor PaymentProcessor,
	logger *zap.Logger,
) (*PaymentService, error) {
	if credits == nil || orders == nil {
		return nil, fmt.Errorf("credit and payment order repositories are required")
	}
	if processor == nil {
		return nil, fmt.Errorf("payment processor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PaymentService{
		credits:   credits,
		orders:    orders,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *PaymentService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Credit adds round(amount*10) messages to the company balance exactly once per
// transaction id. A replay reports Duplicated with the same count.
func (s *PaymentService) Credit(ctx context.Context, companyID string, transactionID string, amount decimal.Decimal) (domain.CreditResult, error) {
	credit, err := domain.NewCredit(companyID, transactionID, amount)
	if err != nil {
		return domain.CreditResult{}, err
	}
	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("companyId", credit.CompanyID),
		zap.String("transactionId", credit.TransactionID),
	)

	exists, err := s.credits.TransactionExists(ctx, credit.TransactionID)
	if err != nil {
		s.metrics.IncCreditFailed()
		return domain.CreditResult{}, err
	}
	if exists {
		s.metrics.ObserveCredit(credit.Messages, true)
		logger.Info("payment transaction already credited")
		return domain.CreditResult{CreditedMessageCount: credit.Messages, Duplicated: true}, nil
	}

	credit.CreatedAt = s.now().UTC()
	if err := s.credits.ApplyCredit(ctx, credit); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			s.metrics.ObserveCredit(credit.Messages, true)
			logger.Info("payment transaction credited concurrently")
			return domain.CreditResult{CreditedMessageCount: credit.Messages, Duplicated: true}, nil
		}
		s.metrics.IncCreditFailed()
		logger.Error("failed to apply credit", zap.Error(err))
		return domain.CreditResult{}, err
	}

	s.metrics.ObserveCredit(credit.Messages, false)
	logger.Info("balance credited",
		zap.String("amount", credit.Amount.StringFixed(2)),
		zap.Int64("messages", credit.Messages),
	)
	return domain.CreditResult{CreditedMessageCount: credit.Messages}, nil
}

// CreateOrder opens a processor order and tracks it as CREATED.
func (s *PaymentService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreatedOrder, error) {
	req := paypal.OrderRequest{
		CompanyID: strings.TrimSpace(in.CompanyID),
		Amount:    in.Amount,
		ReturnURL: strings.TrimSpace(in.ReturnURL),
		CancelURL: strings.TrimSpace(in.CancelURL),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order, err := s.processor.CreateOrder(ctx, req)
	if err != nil {
		return nil, externalError("create payment order", err)
	}

	now := s.now().UTC()
	if err := s.orders.Create(ctx, &domain.PaymentOrder{
		OrderID:   order.ID,
		CompanyID: req.CompanyID,
		Amount:    req.Amount,
		Status:    domain.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to store payment order: %w", err)
	}
	s.metrics.IncPaymentOrder(domain.OrderStatusCreated.String())

	observability.WithContextLogger(s.logger, ctx).Info("payment order created",
		zap.String("orderId", order.ID),
		zap.String("companyId", req.CompanyID),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return &CreatedOrder{OrderID: order.ID, ApprovalURL: order.ApprovalURL}, nil
}

// CaptureOrder captures an approved order and credits the company. Orders not
// created through this service are still captured when companyID is given.
func (s *PaymentService) CaptureOrder(ctx context.Context, companyID string, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	companyID = strings.TrimSpace(companyID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		order = nil
		if companyID == "" {
			return nil, fmt.Errorf("%w: company id is required for untracked orders", domain.ErrValidation)
		}
	case err != nil:
		return nil, err
	}

	if order != nil {
		if companyID != "" && companyID != order.CompanyID {
			return nil, fmt.Errorf("%w: order %s belongs to another company", domain.ErrConflict, orderID)
		}
		companyID = order.CompanyID

		switch order.Status {
		case domain.OrderStatusAbandoned:
			return nil, fmt.Errorf("%w: order %s was abandoned", domain.ErrConflict, orderID)
		case domain.OrderStatusCredited, domain.OrderStatusCaptured:
			// Capture already happened; only the credit may be missing.
			if order.TransactionID != nil {
				return s.creditCapture(ctx, order, companyID, *order.TransactionID, order.Amount)
			}
		}
	}

	capture, err := s.processor.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, externalError("capture payment order", err)
	}
	if !capture.Completed() {
		observability.WithContextLogger(s.logger, ctx).Warn("payment order not completed",
			zap.String("orderId", orderID),
			zap.String("status", capture.Status),
		)
		return &CaptureResult{Status: capture.Status, TransactionID: capture.TransactionID, Amount: capture.Amount}, nil
	}
	if err := creditableCurrency(capture, order != nil); err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("captured payment not credited",
			zap.String("orderId", orderID),
			zap.String("transactionId", capture.TransactionID),
			zap.String("currency", capture.Currency),
		)
		return nil, err
	}

	if order != nil && order.Status == domain.OrderStatusCreated {
		txnID := capture.TransactionID
		if err := s.orders.Transition(ctx, orderID, domain.OrderStatusCreated, domain.OrderStatusCaptured, &txnID); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to mark payment order captured", zap.String("orderId", orderID), zap.Error(err))
		} else {
			order.Status = domain.OrderStatusCaptured
			s.metrics.IncPaymentOrder(domain.OrderStatusCaptured.String())
		}
	}

	if companyID == "" {
		companyID = capture.CompanyID
	}
	return s.creditCapture(ctx, order, companyID, capture.TransactionID, capture.Amount)
}

func (s *PaymentService) creditCapture(
	ctx context.Context,
	order *domain.PaymentOrder,
	companyID string,
	transactionID string,
	amount decimal.Decimal,
) (*CaptureResult, error) {
	result, err := s.Credit(ctx, companyID, transactionID, amount)
	if err != nil {
		return nil, err
	}

	if order != nil && order.Status == domain.OrderStatusCaptured {
		if err := s.orders.Transition(ctx, order.OrderID, domain.OrderStatusCaptured, domain.OrderStatusCredited, nil); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to mark payment order credited", zap.String("orderId", order.OrderID), zap.Error(err))
		} else {
			s.metrics.IncPaymentOrder(domain.OrderStatusCredited.String())
		}
	}

	return &CaptureResult{
		Status:           paypal.OrderStatusCompleted,
		TransactionID:    transactionID,
		Amount:           amount,
		CreditedMessages: result.CreditedMessageCount,
		Duplicated:       result.Duplicated,
	}, nil
}

// CancelOrder abandons an order the buyer did not approve.
func (s *PaymentService) CancelOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	if err := s.orders.Transition(ctx, orderID, domain.OrderStatusCreated, domain.OrderStatusAbandoned, nil); err != nil {
		return err
	}
	s.metrics.IncPaymentOrder(domain.OrderStatusAbandoned.String())

	observability.WithContextLogger(s.logger, ctx).Info("payment order abandoned", zap.String("orderId", orderID))
	return nil
}

// HandleWebhook credits completed captures announced by a verified webhook.
// Unverified notifications and other event types are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error) {
	logger := observability.WithContextLogger(s.logger, ctx)

	verified, err := s.processor.VerifyWebhook(ctx, headers, body)
	if err != nil {
		return nil, externalError("verify payment webhook", err)
	}
	if !verified {
		logger.Warn("payment webhook signature not verified")
		return &WebhookResult{Outcome: WebhookUnverified}, nil
	}

	event, err := paypal.ParseWebhookEvent(body)
	if err != nil {
		return nil, err
	}
	if event.EventType != paypal.EventCaptureCompleted {
		logger.Info("payment webhook event ignored", zap.String("eventType", event.EventType))
		return &WebhookResult{Outcome: WebhookIgnoredEvent}, nil
	}

	capture := event.Capture
	var order *domain.PaymentOrder
	if capture.OrderID != "" {
		tracked, err := s.orders.GetByID(ctx, capture.OrderID)
		switch {
		case err == nil:
			order = tracked
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	if err := creditableCurrency(&capture, order != nil); err != nil {
		logger.Warn("payment webhook currency not credited",
			zap.String("eventId", event.ID),
			zap.String("transactionId", capture.TransactionID),
			zap.String("currency", capture.Currency),
		)
		return &WebhookResult{Outcome: WebhookUnsupportedCurrency}, nil
	}

	companyID := capture.CompanyID
	if order != nil {
		companyID = order.CompanyID
		if order.Status == domain.OrderStatusCreated {
			txnID := capture.TransactionID
			if err := s.orders.Transition(ctx, order.OrderID, domain.OrderStatusCreated, domain.OrderStatusCaptured, &txnID); err == nil {
				order.Status = domain.OrderStatusCaptured
				s.metrics.IncPaymentOrder(domain.OrderStatusCaptured.String())
			}
		}
	}

	result, err := s.creditCapture(ctx, order, companyID, capture.TransactionID, capture.Amount)
	if err != nil {
		return nil, err
	}

	logger.Info("payment webhook processed",
		zap.String("eventId", event.ID),
		zap.String("transactionId", capture.TransactionID),
		zap.Bool("duplicated", result.Duplicated),
	)
	return &WebhookResult{Outcome: WebhookCredited, Capture: result}, nil
}

// creditableCurrency rejects captures not paid in USD. Tracked orders were
// created in USD, so a capture without a currency is accepted for them.
func creditableCurrency(capture *paypal.Capture, tracked bool) error {
	if capture.PaidIn(paypal.CurrencyUSD, tracked) {
		return nil
	}
	currency := strings.TrimSpace(capture.Currency)
	if currency == "" {
		currency = "unknown"
	}
	return fmt.Errorf("%w: capture %s is in %s, only %s is credited",
		domain.ErrConflict, capture.TransactionID, currency, paypal.CurrencyUSD)
}

func (s *PaymentService) History(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, fmt.Errorf("%w: company id is required", domain.ErrValidation)
	}
	return s.credits.History(ctx, companyID)
}

func (s *PaymentService) Balance(ctx context.Context, companyID string) (domain.Balance, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return domain.Balance{}, fmt.Errorf("%w: company id is required", domain.ErrValidation)
	}
	return s.credits.Balance(ctx, companyID)
}

// externalError keeps validation errors as they are and tags everything else
// as a retriable external failure.
func externalError(operation string, err error) error {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrExternalService) {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrExternalService, operation, err)
}
