package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "renewal_engine"

// Omission reasons for notifications that were selected but not delivered.
const (
	OmitNoContact     = "no_contact"
	OmitNotEligible   = "not_eligible"
	OmitDispatchError = "dispatch_failed"
)

// Metrics stores Prometheus collectors used by the API, the notification runs and crediting.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	notificationsSentTotal   *prometheus.CounterVec
	notificationsFailedTotal *prometheus.CounterVec
	notificationsOmitted     *prometheus.CounterVec
	notificationSendDuration *prometheus.HistogramVec
	dispatchInflight         *prometheus.GaugeVec
	creditsTotal             *prometheus.CounterVec
	creditedMessagesTotal    prometheus.Counter
	paymentOrdersTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total number of notifications accepted by the provider.",
			},
			[]string{"channel"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Total number of notifications the provider rejected or could not be reached for.",
			},
			[]string{"channel", "reason"},
		),
		notificationsOmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_omitted_total",
				Help:      "Total number of selected receipts that were not notified, by reason.",
			},
			[]string{"reason"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight provider sends grouped by channel.",
			},
			[]string{"channel"},
		),
		creditsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_total",
				Help:      "Total number of crediting calls by result.",
			},
			[]string{"result"},
		),
		creditedMessagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credited_messages_total",
				Help:      "Total number of prepaid messages credited to company balances.",
			},
		),
		paymentOrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_orders_total",
				Help:      "Total number of payment order transitions by resulting status.",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsSentTotal,
		m.notificationsFailedTotal,
		m.notificationsOmitted,
		m.notificationSendDuration,
		m.dispatchInflight,
		m.creditsTotal,
		m.creditedMessagesTotal,
		m.paymentOrdersTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncNotificationSent(channel string) {
	if m == nil {
		return
	}
	m.notificationsSentTotal.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) IncNotificationFailed(channel string, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeLabel(channel), normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncNotificationOmitted(reason string) {
	if m == nil {
		return
	}
	m.notificationsOmitted.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveNotificationSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.notificationSendDuration.WithLabelValues(normalizeLabel(channel)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) DecDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(channel)).Dec()
}

// ObserveCredit records one crediting call. Duplicates add no messages.
func (m *Metrics) ObserveCredit(messages int64, duplicated bool) {
	if m == nil {
		return
	}
	if duplicated {
		m.creditsTotal.WithLabelValues("duplicated").Inc()
		return
	}
	m.creditsTotal.WithLabelValues("applied").Inc()
	if messages > 0 {
		m.creditedMessagesTotal.Add(float64(messages))
	}
}

func (m *Metrics) IncCreditFailed() {
	if m == nil {
		return
	}
	m.creditsTotal.WithLabelValues("failed").Inc()
}

func (m *Metrics) IncPaymentOrder(status string) {
	if m == nil {
		return
	}
	m.paymentOrdersTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
