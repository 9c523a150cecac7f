package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/atvirokodosprendimai/stripekeys/internal/core/domain"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/ports"
)

type NoopMetrics struct{}

func NewNoopMetrics() ports.APIKeyMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordCreated(domain.APIKeyType, bool) {}

func (n *NoopMetrics) RecordLookup(string) {}

func (n *NoopMetrics) RecordRejected(string) {}

type PrometheusMetrics struct {
	created  *prometheus.CounterVec
	lookups  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewPrometheusMetrics registers the api key counters on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stripekeys_api_keys_created_total",
			Help: "The total number of api key records inserted",
		}, []string{"type", "livemode"}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stripekeys_api_key_lookups_total",
			Help: "The total number of get-or-create lookups",
		}, []string{"result"}), // result: "created", "existing"
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stripekeys_api_keys_rejected_total",
			Help: "The total number of api keys rejected before storage",
		}, []string{"reason"}), // reason: "format", "field"
	}
}

func (p *PrometheusMetrics) RecordCreated(keyType domain.APIKeyType, livemode bool) {
	p.created.WithLabelValues(string(keyType), strconv.FormatBool(livemode)).Inc()
}

func (p *PrometheusMetrics) RecordLookup(result string) {
	p.lookups.WithLabelValues(result).Inc()
}

func (p *PrometheusMetrics) RecordRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}
