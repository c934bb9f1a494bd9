package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/message"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"github.com/kursadbilgin/renewal-engine/internal/provider"
	"github.com/kursadbilgin/renewal-engine/internal/ratelimit"
	"github.com/kursadbilgin/renewal-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minDispatchConcurrency = 1
	maxIndividualBatchSize = 1000
)

// Batch item statuses.
const (
	ItemStatusSent    = "sent"
	ItemStatusOmitted = "omitted"
)

type ReceiptServiceConfig struct {
	PendingStatus      string
	ExcludedBranchCode string
	AllowedCompanies   []string
	Window             domain.ExpiryWindow
	Concurrency        int
}

// ReceiptService selects expiring receipts and runs the reminder notifications for them.
type ReceiptService struct {
	receipts repository.ReceiptRepository
	gate     *EligibilityGate
	deliver  *deliverer
	cfg      ReceiptServiceConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

type ScheduledItem struct {
	Receipt      domain.Receipt
	Placeholders map[string]string
}

type ScheduledResult struct {
	Omitted int
	Total   int
	Items   []ScheduledItem
}

type BatchItem struct {
	ReceiptID string
	Status    string
	Reason    string
	MessageID string
	Error     string
}

type BatchResult struct {
	Sent    int
	Omitted int
	Total   int
	Items   []BatchItem
}

// IndividualRequest is one receipt picked and addressed by the frontend.
type IndividualRequest struct {
	ReceiptID     string
	Phone         string
	Placeholders  map[string]string
	ReceiptStatus string
}

type IndividualResult struct {
	ReceiptID      string
	DeliveryStatus domain.DeliveryStatus
	MessageID      string
	Error          string
}

func NewReceiptService(
	receipts repository.ReceiptRepository,
	attempts repository.AttemptRepository,
	gate *EligibilityGate,
	dispatcher provider.Dispatcher,
	rateLimiter ratelimit.RateLimiter,
	cfg ReceiptServiceConfig,
	logger *zap.Logger,
) (*ReceiptService, error) {
	if receipts == nil || attempts == nil || gate == nil {
		return nil, fmt.Errorf("receipt and attempt repositories and eligibility gate are required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if len(cfg.AllowedCompanies) == 0 {
		return nil, fmt.Errorf("%w: at least one allowed company is required", domain.ErrValidation)
	}
	if cfg.Concurrency < minDispatchConcurrency {
		cfg.Concurrency = minDispatchConcurrency
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReceiptService{
		receipts: receipts,
		gate:     gate,
		deliver: &deliverer{
			gate:       gate,
			attempts:   attempts,
			dispatcher: dispatcher,
			limiter:    rateLimiter,
			logger:     logger,
			now:        time.Now,
		},
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *ReceiptService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.deliver.metrics = metrics
}

// ListExpiring returns the receipts due in the expiry window, earliest first.
func (s *ReceiptService) ListExpiring(ctx context.Context) ([]domain.Receipt, error) {
	return s.listExpiring(ctx, "")
}

func (s *ReceiptService) listExpiring(ctx context.Context, companyID string) ([]domain.Receipt, error) {
	candidates, err := s.receipts.ListCandidates(ctx, repository.ReceiptFilter{
		PendingStatus:      s.cfg.PendingStatus,
		ExcludedBranchCode: s.cfg.ExcludedBranchCode,
		AllowedCompanies:   s.cfg.AllowedCompanies,
		CompanyID:          strings.TrimSpace(companyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt candidates: %w", err)
	}

	return domain.SelectExpiring(candidates, s.now(), s.cfg.Window), nil
}

// Scheduled lists the expiring receipts that are currently eligible, with the
// placeholders the frontend uses to send them. A company id narrows the list
// and switches to the extended placeholder set.
func (s *ReceiptService) Scheduled(ctx context.Context, companyID string) (*ScheduledResult, error) {
	receipts, err := s.listExpiring(ctx, companyID)
	if err != nil {
		return nil, err
	}

	result := &ScheduledResult{Total: len(receipts), Items: make([]ScheduledItem, 0, len(receipts))}
	for _, r := range receipts {
		eligible, err := s.gate.CanNotify(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			result.Omitted++
			continue
		}

		placeholders := message.ReceiptPlaceholders(r)
		if strings.TrimSpace(companyID) != "" {
			placeholders = message.ScheduledPlaceholders(r)
		}
		result.Items = append(result.Items, ScheduledItem{Receipt: r, Placeholders: placeholders})
	}

	s.logger.Info("scheduled receipts listed",
		zap.String("companyId", companyID),
		zap.Int("ready", len(result.Items)),
		zap.Int("omitted", result.Omitted),
		zap.Int("total", result.Total),
	)
	return result, nil
}

// RunBatch notifies every expiring receipt. Receipts without a usable phone,
// not yet eligible or whose dispatch failed are counted as omitted; the run
// itself only fails when the candidates cannot be loaded.
func (s *ReceiptService) RunBatch(ctx context.Context) (*BatchResult, error) {
	receipts, err := s.ListExpiring(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(receipts))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i := range receipts {
		r := receipts[i]
		g.Go(func() error {
			items[i] = s.notifyReceipt(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Total: len(receipts), Items: items}
	for _, item := range items {
		if item.Status == ItemStatusSent {
			result.Sent++
			continue
		}
		result.Omitted++
		s.metrics.IncNotificationOmitted(item.Reason)
	}

	observability.WithContextLogger(s.logger, ctx).Info("notification batch completed",
		zap.Int("sent", result.Sent),
		zap.Int("omitted", result.Omitted),
		zap.Int("total", result.Total),
	)
	return result, nil
}

func (s *ReceiptService) notifyReceipt(ctx context.Context, r domain.Receipt) BatchItem {
	item := BatchItem{ReceiptID: r.ID, Status: ItemStatusOmitted}
	if r.Phone == nil {
		item.Reason = observability.OmitNoContact
		return item
	}

	outcome := s.deliver.deliver(ctx, reminder{
		ReceiptID:     r.ID,
		ClientName:    r.ClientName,
		ReceiptStatus: r.Status,
		To:            *r.Phone,
		Placeholders:  message.ReceiptPlaceholders(r),
	})

	switch {
	case outcome.Status == domain.DeliveryStatusSent:
		item.Status = ItemStatusSent
		if outcome.Response != nil {
			item.MessageID = outcome.Response.MessageID
		}
		if outcome.Err != nil {
			item.Error = outcome.Err.Error()
		}
	case errors.Is(outcome.Err, domain.ErrNotEligible):
		item.Reason = observability.OmitNotEligible
	default:
		item.Reason = observability.OmitDispatchError
		if outcome.Err != nil {
			item.Error = outcome.Err.Error()
		}
	}
	return item
}

// NotifyIndividual sends the frontend-selected reminders. Every request gets a
// result in input order; failures never abort the others.
func (s *ReceiptService) NotifyIndividual(ctx context.Context, requests []IndividualRequest) ([]IndividualResult, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: at least one receipt is required", domain.ErrValidation)
	}
	if len(requests) > maxIndividualBatchSize {
		return nil, fmt.Errorf("%w: at most %d receipts per request", domain.ErrValidation, maxIndividualBatchSize)
	}

	results := make([]IndividualResult, len(requests))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	// A repeated receipt id is dispatched once, by its first copy with a valid phone.
	seen := make(map[string]struct{}, len(requests))
	for i := range requests {
		req := requests[i]
		if id := strings.TrimSpace(req.ReceiptID); id != "" {
			if _, ok := domain.NormalizePhone(req.Phone); ok {
				if _, dup := seen[id]; dup {
					results[i] = s.duplicateIndividual(req)
					continue
				}
				seen[id] = struct{}{}
			}
		}
		g.Go(func() error {
			results[i] = s.notifyIndividual(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *ReceiptService) duplicateIndividual(req IndividualRequest) IndividualResult {
	s.metrics.IncNotificationOmitted(observability.OmitNotEligible)
	return IndividualResult{
		ReceiptID:      req.ReceiptID,
		DeliveryStatus: domain.DeliveryStatusFailed,
		Error:          "receipt cannot be notified yet",
	}
}

func (s *ReceiptService) notifyIndividual(ctx context.Context, req IndividualRequest) IndividualResult {
	result := IndividualResult{ReceiptID: req.ReceiptID, DeliveryStatus: domain.DeliveryStatusFailed}

	if strings.TrimSpace(req.ReceiptID) == "" {
		result.Error = "receipt id is required"
		return result
	}
	phone, ok := domain.NormalizePhone(req.Phone)
	if !ok {
		result.Error = "no valid phone provided"
		s.metrics.IncNotificationOmitted(observability.OmitNoContact)
		return result
	}

	outcome := s.deliver.deliver(ctx, reminder{
		ReceiptID:     req.ReceiptID,
		ClientName:    req.Placeholders["titular"],
		ReceiptStatus: req.ReceiptStatus,
		To:            phone,
		Placeholders:  req.Placeholders,
	})

	if outcome.Status != "" {
		result.DeliveryStatus = outcome.Status
	}
	if outcome.Response != nil {
		result.MessageID = outcome.Response.MessageID
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
		if errors.Is(outcome.Err, domain.ErrNotEligible) {
			result.Error = "receipt cannot be notified yet"
			s.metrics.IncNotificationOmitted(observability.OmitNotEligible)
		}
	}
	return result
}
