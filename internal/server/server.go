package server

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewPrometheusRegistry, wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)))

// NewPrometheusRegistry creates the process-wide metrics registry served
// on /metrics.
func NewPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
