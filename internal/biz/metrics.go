package biz

import (
	"sync"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMetrics is a per-user snapshot of accumulated AI operation errors.
type ErrorMetrics struct {
	TotalErrors  uint
	ErrorsByKind map[string]uint
	LastError    time.Time
}

// MetricsCollector accumulates error counts per user and kind, mirrored into
// Prometheus counters for scraping. Entries are created lazily and are
// resettable for tests and ops tooling.
type MetricsCollector struct {
	mu     sync.RWMutex
	byUser map[string]*ErrorMetrics

	errorsTotal     *prometheus.CounterVec
	recoveriesTotal *prometheus.CounterVec

	logger *log.Helper
}

// NewMetricsCollector creates the collector and registers its Prometheus
// metrics on the given registerer.
func NewMetricsCollector(reg prometheus.Registerer, logger log.Logger) *MetricsCollector {
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "projecthub",
		Subsystem: "ai",
		Name:      "errors_total",
		Help:      "AI operation errors by service and normalized error kind.",
	}, []string{"service", "kind"})

	recoveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "projecthub",
		Subsystem: "ai",
		Name:      "recoveries_total",
		Help:      "AI operations that completed, by recovery method.",
	}, []string{"service", "method"})

	if reg != nil {
		reg.MustRegister(errorsTotal, recoveriesTotal)
	}

	return &MetricsCollector{
		byUser:          make(map[string]*ErrorMetrics),
		errorsTotal:     errorsTotal,
		recoveriesTotal: recoveriesTotal,
		logger:          log.NewHelper(logger),
	}
}

// RecordError accumulates one error for the user and mirrors it to Prometheus.
func (c *MetricsCollector) RecordError(userID, service string, err error) {
	kind := string(aierrors.Classify(err))

	c.mu.Lock()
	m, ok := c.byUser[userID]
	if !ok {
		m = &ErrorMetrics{ErrorsByKind: make(map[string]uint)}
		c.byUser[userID] = m
	}
	m.TotalErrors++
	m.ErrorsByKind[kind]++
	m.LastError = time.Now()
	c.mu.Unlock()

	c.errorsTotal.WithLabelValues(service, kind).Inc()
}

// RecordRecovery counts a completed operation by its recovery method.
func (c *MetricsCollector) RecordRecovery(service string, method RecoveryMethod) {
	c.recoveriesTotal.WithLabelValues(service, string(method)).Inc()
}

// GetMetrics returns a copy of the user's accumulated metrics.
func (c *MetricsCollector) GetMetrics(userID string) (ErrorMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byUser[userID]
	if !ok {
		return ErrorMetrics{}, false
	}

	out := ErrorMetrics{
		TotalErrors:  m.TotalErrors,
		ErrorsByKind: make(map[string]uint, len(m.ErrorsByKind)),
		LastError:    m.LastError,
	}
	for k, v := range m.ErrorsByKind {
		out.ErrorsByKind[k] = v
	}
	return out, true
}

// Reset clears accumulated metrics for one user.
func (c *MetricsCollector) Reset(userID string) {
	c.mu.Lock()
	delete(c.byUser, userID)
	c.mu.Unlock()
}

// ResetAll clears all accumulated per-user metrics. Prometheus counters are
// monotonic and are not reset.
func (c *MetricsCollector) ResetAll() {
	c.mu.Lock()
	c.byUser = make(map[string]*ErrorMetrics)
	c.mu.Unlock()
}
