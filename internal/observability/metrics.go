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

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	sendsSentTotal          *prometheus.CounterVec
	sendsFailedTotal        *prometheus.CounterVec
	sendDuration            *prometheus.HistogramVec
	workerInflight          *prometheus.GaugeVec
	retryScheduledTotal     *prometheus.CounterVec
	fallbackAttemptsTotal   prometheus.Counter
	templatesValidatedTotal *prometheus.CounterVec
	qualityScore            *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "template_pipeline",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		sendsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "sends_sent_total",
				Help:      "Total number of template sends delivered successfully.",
			},
			[]string{"category"},
		),
		sendsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "sends_failed_total",
				Help:      "Total number of sends that ended in failed state.",
			},
			[]string{"category", "reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "template_pipeline",
				Name:      "send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by category.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"category"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "template_pipeline",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker operations grouped by category.",
			},
			[]string{"category"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "retry_scheduled_total",
				Help:      "Total number of sends scheduled for retry by failure class.",
			},
			[]string{"class"},
		),
		fallbackAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "fallback_attempts_total",
				Help:      "Total number of fallback template substitutions attempted.",
			},
		),
		templatesValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "template_pipeline",
				Name:      "templates_validated_total",
				Help:      "Total number of template validation runs by result.",
			},
			[]string{"result"},
		),
		qualityScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "template_pipeline",
				Name:      "quality_score",
				Help:      "Latest quality score per template.",
			},
			[]string{"template", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.sendsSentTotal,
		m.sendsFailedTotal,
		m.sendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.fallbackAttemptsTotal,
		m.templatesValidatedTotal,
		m.qualityScore,
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

func (m *Metrics) IncSendSent(category string) {
	if m == nil {
		return
	}
	m.sendsSentTotal.WithLabelValues(normalizeLabel(category)).Inc()
}

func (m *Metrics) IncSendFailed(category string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.sendsFailedTotal.WithLabelValues(normalizeLabel(category), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(category string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeLabel(category)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(category string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(category)).Inc()
}

func (m *Metrics) DecWorkerInFlight(category string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(category)).Dec()
}

func (m *Metrics) IncRetryScheduled(class string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(class)).Inc()
}

func (m *Metrics) IncFallbackAttempted() {
	if m == nil {
		return
	}
	m.fallbackAttemptsTotal.Inc()
}

func (m *Metrics) IncTemplateValidated(result string) {
	if m == nil {
		return
	}
	m.templatesValidatedTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetQualityScore replaces the template's gauge series so only the current
// status label remains exported.
func (m *Metrics) SetQualityScore(templateName string, status string, score float64) {
	if m == nil {
		return
	}
	template := strings.TrimSpace(templateName)
	if template == "" {
		return
	}
	m.qualityScore.DeletePartialMatch(prometheus.Labels{"template": template})
	m.qualityScore.WithLabelValues(template, normalizeLabel(status)).Set(score)
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
