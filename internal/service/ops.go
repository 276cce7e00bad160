package service

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// ServiceHealthView is the JSON shape of one service's health state.
type ServiceHealthView struct {
	ServiceName         string     `json:"service_name"`
	Healthy             bool       `json:"healthy"`
	ConsecutiveFailures uint       `json:"consecutive_failures"`
	ErrorCount          uint       `json:"error_count"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	CircuitOpen         bool       `json:"circuit_open"`
	CircuitOpenUntil    *time.Time `json:"circuit_open_until,omitempty"`
}

// HealthListResponse is the output of GET /v1/assistant/health.
type HealthListResponse struct {
	Services []ServiceHealthView `json:"services"`
}

// RecommendationsResponse is the output of GET /v1/assistant/health/{name}/recommendations.
type RecommendationsResponse struct {
	ServiceName     string   `json:"service_name"`
	Recommendations []string `json:"recommendations"`
}

// ErrorMetricsView is the JSON shape of one user's error counters.
type ErrorMetricsView struct {
	UserID       string          `json:"user_id"`
	TotalErrors  uint            `json:"total_errors"`
	ErrorsByKind map[string]uint `json:"errors_by_kind"`
	LastErrorAt  time.Time       `json:"last_error_at"`
}

// OpenCircuitRequest optionally overrides the cooldown when forcing a
// circuit open.
type OpenCircuitRequest struct {
	CooldownSeconds int `json:"cooldown_seconds,omitempty"`
}

// OpsService exposes the resilience core's operational surface: health
// inspection, manual circuit control and error metrics.
type OpsService struct {
	registry     *biz.HealthRegistry
	orchestrator *biz.DegradationUsecase
	logger       *log.Helper
}

// NewOpsService creates a new OpsService instance.
func NewOpsService(registry *biz.HealthRegistry, orchestrator *biz.DegradationUsecase, logger log.Logger) *OpsService {
	return &OpsService{
		registry:     registry,
		orchestrator: orchestrator,
		logger:       log.NewHelper(logger),
	}
}

// ListServiceHealth returns the health of every tracked service.
func (s *OpsService) ListServiceHealth(ctx context.Context) *HealthListResponse {
	all := s.registry.GetAllServiceHealth()
	views := make([]ServiceHealthView, 0, len(all))
	for _, h := range all {
		views = append(views, healthView(h))
	}
	return &HealthListResponse{Services: views}
}

// GetServiceHealth returns one service's health.
func (s *OpsService) GetServiceHealth(ctx context.Context, name string) (*ServiceHealthView, error) {
	h, ok := s.registry.GetServiceHealth(name)
	if !ok {
		return nil, errors.NotFound("SERVICE_UNKNOWN", "no activity recorded for service "+name)
	}
	view := healthView(h)
	return &view, nil
}

// ResetServiceHealth clears a service's failure history and closes its
// circuit breaker.
func (s *OpsService) ResetServiceHealth(ctx context.Context, name string) {
	s.logger.Infow("service health reset requested", "service", name)
	s.registry.Reset(name)
}

// OpenCircuit forces a service's circuit breaker open, rejecting requests
// until the cooldown elapses.
func (s *OpsService) OpenCircuit(ctx context.Context, name string, req *OpenCircuitRequest) {
	cooldown := biz.DefaultCooldownPeriod
	if req != nil && req.CooldownSeconds > 0 {
		cooldown = time.Duration(req.CooldownSeconds) * time.Second
	}
	s.logger.Warnw("circuit breaker forced open",
		"service", name,
		"cooldown", cooldown)
	s.registry.Open(name, cooldown)
}

// CloseCircuit closes a service's circuit breaker immediately.
func (s *OpsService) CloseCircuit(ctx context.Context, name string) {
	s.logger.Infow("circuit breaker forced closed", "service", name)
	s.registry.Close(name)
}

// GetRecommendations derives operator guidance from a service's health.
func (s *OpsService) GetRecommendations(ctx context.Context, name string) *RecommendationsResponse {
	return &RecommendationsResponse{
		ServiceName:     name,
		Recommendations: s.orchestrator.GetRecoveryRecommendations(name),
	}
}

// GetErrorMetrics returns the error counters accumulated for a user.
func (s *OpsService) GetErrorMetrics(ctx context.Context, userID string) (*ErrorMetricsView, error) {
	m, ok := s.orchestrator.Metrics().GetMetrics(userID)
	if !ok {
		return nil, errors.NotFound("METRICS_UNKNOWN", "no errors recorded for user "+userID)
	}
	return &ErrorMetricsView{
		UserID:       userID,
		TotalErrors:  m.TotalErrors,
		ErrorsByKind: m.ErrorsByKind,
		LastErrorAt:  m.LastError,
	}, nil
}

// ResetErrorMetrics clears a user's error counters.
func (s *OpsService) ResetErrorMetrics(ctx context.Context, userID string) {
	s.orchestrator.Metrics().Reset(userID)
}

func healthView(h biz.ServiceHealth) ServiceHealthView {
	return ServiceHealthView{
		ServiceName:         h.ServiceName,
		Healthy:             h.IsHealthy(),
		ConsecutiveFailures: h.ConsecutiveFailures,
		ErrorCount:          h.ErrorCount,
		LastSuccessAt:       h.LastSuccessAt,
		LastFailureAt:       h.LastFailureAt,
		CircuitOpen:         h.CircuitOpen,
		CircuitOpenUntil:    h.CircuitOpenUntil,
	}
}
