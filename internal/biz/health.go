package biz

import (
	"sync"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// Default circuit breaker thresholds, used when no configuration is supplied.
const (
	DefaultFailureThreshold = 5
	DefaultCooldownPeriod   = 60 * time.Second
)

// ServiceHealth is a point-in-time snapshot of a tracked service.
type ServiceHealth struct {
	ServiceName         string
	ConsecutiveFailures uint
	ErrorCount          uint
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	CircuitOpen         bool
	CircuitOpenUntil    *time.Time
}

// IsHealthy reports whether the service has no current failure streak.
func (h ServiceHealth) IsHealthy() bool {
	return h.ConsecutiveFailures == 0
}

// serviceEntry is the mutable per-service state. Each entry carries its own
// lock so that concurrent calls against different services never contend.
type serviceEntry struct {
	mu     sync.Mutex
	health ServiceHealth
}

// HealthRegistry tracks per-service failure streaks and embeds a circuit
// breaker per service name. Entries are created lazily on first reference and
// live for the process lifetime unless explicitly reset.
//
// The breaker has no separate half-open counter: an open breaker whose
// cooldown has elapsed lets the next call through as a probe, and stays
// flagged open until a success closes it.
type HealthRegistry struct {
	mu      sync.RWMutex
	entries map[string]*serviceEntry

	failureThreshold uint
	cooldownPeriod   time.Duration

	// now is swapped in tests to control breaker expiry.
	now func() time.Time

	logger *log.Helper
}

// NewHealthRegistry creates a registry using the configured breaker thresholds.
// A nil config falls back to the package defaults.
func NewHealthRegistry(rc *conf.Resilience, logger log.Logger) *HealthRegistry {
	threshold := uint(DefaultFailureThreshold)
	cooldown := DefaultCooldownPeriod
	if rc != nil && rc.Breaker != nil {
		if rc.Breaker.FailureThreshold > 0 {
			threshold = uint(rc.Breaker.FailureThreshold)
		}
		if rc.Breaker.CooldownPeriod > 0 {
			cooldown = rc.Breaker.CooldownPeriod
		}
	}

	return &HealthRegistry{
		entries:          make(map[string]*serviceEntry),
		failureThreshold: threshold,
		cooldownPeriod:   cooldown,
		now:              time.Now,
		logger:           log.NewHelper(logger),
	}
}

// entry returns the per-service state, creating it lazily.
func (r *HealthRegistry) entry(service string) *serviceEntry {
	r.mu.RLock()
	e, ok := r.entries[service]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[service]; ok {
		return e
	}
	e = &serviceEntry{health: ServiceHealth{ServiceName: service}}
	r.entries[service] = e
	return e
}

// IsOpen reports whether the circuit breaker currently rejects requests for
// the service. An open breaker whose cooldown has elapsed reports false: the
// next call is allowed through as a probe.
func (r *HealthRegistry) IsOpen(service string) bool {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.health.CircuitOpen || e.health.CircuitOpenUntil == nil {
		return false
	}
	return r.now().Before(*e.health.CircuitOpenUntil)
}

// Open force-opens the circuit breaker for the service for the given duration.
func (r *HealthRegistry) Open(service string, d time.Duration) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	until := r.now().Add(d)
	e.health.CircuitOpen = true
	e.health.CircuitOpenUntil = &until

	r.logger.Warnw("circuit breaker opened",
		"service", service,
		"until", until,
		"consecutive_failures", e.health.ConsecutiveFailures)
}

// Close clears the open state and resets the failure streak.
func (r *HealthRegistry) Close(service string) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	wasOpen := e.health.CircuitOpen
	e.health.CircuitOpen = false
	e.health.CircuitOpenUntil = nil
	e.health.ConsecutiveFailures = 0

	if wasOpen {
		r.logger.Infow("circuit breaker closed", "service", service)
	}
}

// RecordSuccess marks a successful attempt. It resets the failure streak and
// implicitly closes the breaker.
func (r *HealthRegistry) RecordSuccess(service string) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.now()
	e.health.LastSuccessAt = &now
	e.health.ConsecutiveFailures = 0

	if e.health.CircuitOpen {
		e.health.CircuitOpen = false
		e.health.CircuitOpenUntil = nil
		r.logger.Infow("circuit breaker closed after successful probe", "service", service)
	}
}

// RecordFailure marks a failed attempt. Crossing the failure threshold opens
// the breaker for the configured cooldown.
func (r *HealthRegistry) RecordFailure(service string) {
	e := r.entry(service)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := r.now()
	e.health.LastFailureAt = &now
	e.health.ConsecutiveFailures++
	e.health.ErrorCount++

	if e.health.ConsecutiveFailures >= r.failureThreshold {
		until := now.Add(r.cooldownPeriod)
		e.health.CircuitOpen = true
		e.health.CircuitOpenUntil = &until

		r.logger.Warnw("circuit breaker opened after consecutive failures",
			"service", service,
			"consecutive_failures", e.health.ConsecutiveFailures,
			"cooldown", r.cooldownPeriod)
	}
}

// GetServiceHealth returns a snapshot for one service. The second return
// value is false when the service has never been referenced.
func (r *HealthRegistry) GetServiceHealth(service string) (ServiceHealth, bool) {
	r.mu.RLock()
	e, ok := r.entries[service]
	r.mu.RUnlock()
	if !ok {
		return ServiceHealth{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health, true
}

// GetAllServiceHealth returns snapshots for every tracked service.
func (r *HealthRegistry) GetAllServiceHealth() []ServiceHealth {
	r.mu.RLock()
	entries := make([]*serviceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]ServiceHealth, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.health)
		e.mu.Unlock()
	}
	return out
}

// Reset clears all tracked state for one service.
func (r *HealthRegistry) Reset(service string) {
	r.mu.Lock()
	delete(r.entries, service)
	r.mu.Unlock()

	r.logger.Infow("service health reset", "service", service)
}

// ResetAll clears the registry. Intended for tests and ops tooling.
func (r *HealthRegistry) ResetAll() {
	r.mu.Lock()
	r.entries = make(map[string]*serviceEntry)
	r.mu.Unlock()
}

// sweepStale drops entries that have seen neither success nor failure within
// the retention window. Called from the periodic maintenance job.
func (r *HealthRegistry) sweepStale(retention time.Duration) int {
	cutoff := r.now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, e := range r.entries {
		e.mu.Lock()
		last := e.health.LastSuccessAt
		if e.health.LastFailureAt != nil && (last == nil || e.health.LastFailureAt.After(*last)) {
			last = e.health.LastFailureAt
		}
		stale := last != nil && last.Before(cutoff) && !e.health.CircuitOpen
		e.mu.Unlock()

		if stale {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// SweepStale is the exported entry point used by the cron job.
func (r *HealthRegistry) SweepStale(retention time.Duration) int {
	removed := r.sweepStale(retention)
	if removed > 0 {
		r.logger.Infow("stale service health entries swept", "removed", removed)
	}
	return removed
}
