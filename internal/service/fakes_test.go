package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/paypal"
	"github.com/kursadbilgin/renewal-engine/internal/provider"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
)

type fakeAttemptRepo struct {
	mu       sync.Mutex
	records  map[string]*domain.AttemptRecord
	recorded []domain.AttemptOutcome
	getFn    func(ctx context.Context, receiptID string, channel domain.Channel) (*domain.AttemptRecord, error)
	recordFn func(ctx context.Context, outcome domain.AttemptOutcome, sentAt time.Time) error
}

func (f *fakeAttemptRepo) Get(ctx context.Context, receiptID string, channel domain.Channel) (*domain.AttemptRecord, error) {
	if f.getFn != nil {
		return f.getFn(ctx, receiptID, channel)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[receiptID+"|"+channel.String()]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAttemptRepo) Record(ctx context.Context, outcome domain.AttemptOutcome, sentAt time.Time) error {
	f.mu.Lock()
	f.recorded = append(f.recorded, outcome)
	f.mu.Unlock()
	if f.recordFn != nil {
		return f.recordFn(ctx, outcome, sentAt)
	}
	return nil
}

func (f *fakeAttemptRepo) outcomes() []domain.AttemptOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AttemptOutcome(nil), f.recorded...)
}

type fakeReceiptRepo struct {
	listFn func(ctx context.Context, filter repository.ReceiptFilter) ([]domain.Receipt, error)
}

func (f *fakeReceiptRepo) ListCandidates(ctx context.Context, filter repository.ReceiptFilter) ([]domain.Receipt, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return nil, nil
}

type fakeDispatcher struct {
	channel domain.Channel
	mu      sync.Mutex
	sent    []provider.Message
	sendFn  func(ctx context.Context, msg provider.Message) (*provider.ProviderResponse, error)
}

func (f *fakeDispatcher) Channel() domain.Channel { return f.channel }

func (f *fakeDispatcher) Send(ctx context.Context, msg provider.Message) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.ProviderResponse{StatusCode: 201, Body: `{"sid":"SM1"}`, MessageID: "SM1"}, nil
}

func (f *fakeDispatcher) messages() []provider.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Message(nil), f.sent...)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel domain.Channel) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel domain.Channel) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeProcessor struct {
	createFn  func(ctx context.Context, req paypal.OrderRequest) (*paypal.Order, error)
	captureFn func(ctx context.Context, orderID string) (*paypal.Capture, error)
	verifyFn  func(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

func (f *fakeProcessor) CreateOrder(ctx context.Context, req paypal.OrderRequest) (*paypal.Order, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &paypal.Order{ID: "ORD-1", Status: "CREATED", ApprovalURL: "https://paypal.test/approve?token=ORD-1"}, nil
}

func (f *fakeProcessor) CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error) {
	if f.captureFn != nil {
		return f.captureFn(ctx, orderID)
	}
	return &paypal.Capture{OrderID: orderID, Status: paypal.OrderStatusCompleted}, nil
}

func (f *fakeProcessor) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, headers, body)
	}
	return true, nil
}

type fakeCreditRepo struct {
	existsFn  func(ctx context.Context, transactionID string) (bool, error)
	applyFn   func(ctx context.Context, credit domain.Credit) error
	historyFn func(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error)
	balanceFn func(ctx context.Context, companyID string) (domain.Balance, error)
}

func (f *fakeCreditRepo) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, transactionID)
	}
	return false, nil
}

func (f *fakeCreditRepo) ApplyCredit(ctx context.Context, credit domain.Credit) error {
	if f.applyFn != nil {
		return f.applyFn(ctx, credit)
	}
	return nil
}

func (f *fakeCreditRepo) History(ctx context.Context, companyID string) ([]domain.PaymentTransaction, error) {
	if f.historyFn != nil {
		return f.historyFn(ctx, companyID)
	}
	return nil, nil
}

func (f *fakeCreditRepo) Balance(ctx context.Context, companyID string) (domain.Balance, error) {
	if f.balanceFn != nil {
		return f.balanceFn(ctx, companyID)
	}
	return domain.Balance{CompanyID: companyID}, nil
}

type fakeOrderRepo struct {
	mu           sync.Mutex
	orders       map[string]*domain.PaymentOrder
	transitionFn func(ctx context.Context, orderID string, from domain.OrderStatus, to domain.OrderStatus) error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*domain.PaymentOrder{}}
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *domain.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.OrderID]; ok {
		return domain.ErrConflict
	}
	copied := *order
	f.orders[order.OrderID] = &copied
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID string) (*domain.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) Transition(ctx context.Context, orderID string, from domain.OrderStatus, to domain.OrderStatus, transactionID *string) error {
	if f.transitionFn != nil {
		if err := f.transitionFn(ctx, orderID, from, to); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok || order.Status != from || !from.CanTransitionTo(to) {
		return domain.ErrConflict
	}
	order.Status = to
	if transactionID != nil {
		txn := *transactionID
		order.TransactionID = &txn
	}
	return nil
}

func (f *fakeOrderRepo) status(orderID string) domain.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[orderID]; ok {
		return order.Status
	}
	return ""
}
