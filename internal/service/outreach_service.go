package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/renewal-engine/internal/domain"
	"github.com/kursadbilgin/renewal-engine/internal/message"
	"github.com/kursadbilgin/renewal-engine/internal/observability"
	"github.com/kursadbilgin/renewal-engine/internal/provider"
	"github.com/kursadbilgin/renewal-engine/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxOutreachBatchSize = 5000

// Outreach item statuses.
const (
	OutreachSucceeded = "succeeded"
	OutreachFailed    = "failed"
)

type OutreachItem struct {
	Name      string
	To        string
	Status    string
	MessageID string
	Error     string
}

type OutreachResult struct {
	Mode      message.OutreachMode
	Total     int
	Attempted int
	Succeeded int
	Failed    int
	Items     []OutreachItem
}

// OutreachService sends mass campaign messages to frontend-provided contacts.
// Unlike receipt reminders these sends are not bookkept in the attempt ledger.
type OutreachService struct {
	dispatchers map[domain.Channel]provider.Dispatcher
	limiter     ratelimit.RateLimiter
	quoteURL    string
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewOutreachService(
	whatsApp provider.Dispatcher,
	email provider.Dispatcher,
	rateLimiter ratelimit.RateLimiter,
	quoteURL string,
	concurrency int,
	logger *zap.Logger,
) (*OutreachService, error) {
	if whatsApp == nil || email == nil {
		return nil, fmt.Errorf("whatsapp and email dispatchers are required")
	}
	if concurrency < minDispatchConcurrency {
		concurrency = minDispatchConcurrency
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutreachService{
		dispatchers: map[domain.Channel]provider.Dispatcher{
			domain.ChannelWhatsApp: whatsApp,
			domain.ChannelEmail:    email,
		},
		limiter:     rateLimiter,
		quoteURL:    quoteURL,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

func (s *OutreachService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *OutreachService) SendWhatsApp(ctx context.Context, mode message.OutreachMode, contacts []message.Contact) (*OutreachResult, error) {
	return s.send(ctx, domain.ChannelWhatsApp, mode, contacts)
}

func (s *OutreachService) SendEmail(ctx context.Context, mode message.OutreachMode, contacts []message.Contact) (*OutreachResult, error) {
	return s.send(ctx, domain.ChannelEmail, mode, contacts)
}

func (s *OutreachService) send(ctx context.Context, channel domain.Channel, mode message.OutreachMode, contacts []message.Contact) (*OutreachResult, error) {
	if len(contacts) == 0 {
		return nil, fmt.Errorf("%w: contact list must not be empty", domain.ErrValidation)
	}
	if len(contacts) > maxOutreachBatchSize {
		return nil, fmt.Errorf("%w: at most %d contacts per request", domain.ErrValidation, maxOutreachBatchSize)
	}

	dispatcher := s.dispatchers[channel]
	items := make([]OutreachItem, len(contacts))
	attempted := make([]bool, len(contacts))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range contacts {
		contact := contacts[i]
		to, ok := recipient(channel, contact)
		if !ok {
			items[i] = OutreachItem{Name: contact.Name, Status: OutreachFailed, Error: "contact has no usable " + recipientKind(channel)}
			continue
		}

		attempted[i] = true
		g.Go(func() error {
			items[i] = s.sendOne(ctx, dispatcher, mode, contact, to)
			return nil
		})
	}
	_ = g.Wait()

	result := &OutreachResult{Mode: mode, Total: len(contacts), Items: items}
	for i, item := range items {
		if attempted[i] {
			result.Attempted++
		}
		if item.Status == OutreachSucceeded {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	observability.WithContextLogger(s.logger, ctx).Info("outreach completed",
		zap.String("channel", channel.String()),
		zap.String("mode", mode.String()),
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *OutreachService) sendOne(
	ctx context.Context,
	dispatcher provider.Dispatcher,
	mode message.OutreachMode,
	contact message.Contact,
	to string,
) OutreachItem {
	channel := dispatcher.Channel()
	item := OutreachItem{Name: contact.Name, To: to, Status: OutreachFailed}

	if err := s.limiter.Wait(ctx, channel); err != nil {
		item.Error = err.Error()
		return item
	}

	content := message.Outreach(mode, contact, s.quoteURL)
	s.metrics.IncDispatchInFlight(channel.String())
	resp, err := dispatcher.Send(ctx, provider.Message{
		Channel: channel,
		To:      to,
		Subject: content.Subject,
		Body:    content.Text,
		HTML:    content.HTML,
	})
	s.metrics.DecDispatchInFlight(channel.String())

	if err != nil {
		s.metrics.IncNotificationFailed(channel.String(), "outreach")
		item.Error = err.Error()
		return item
	}

	s.metrics.IncNotificationSent(channel.String())
	item.Status = OutreachSucceeded
	if resp != nil {
		item.MessageID = resp.MessageID
	}
	return item
}

func recipient(channel domain.Channel, c message.Contact) (string, bool) {
	if channel == domain.ChannelWhatsApp {
		return domain.NormalizePhone(c.Phone)
	}
	email := strings.TrimSpace(c.Email)
	return email, email != "" && strings.Contains(email, "@")
}

func recipientKind(channel domain.Channel) string {
	if channel == domain.ChannelWhatsApp {
		return "phone"
	}
	return "email"
}
