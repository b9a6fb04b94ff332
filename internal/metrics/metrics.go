package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Authorizer and rotator metrics. They live in a standalone package so the
// authorizer, jwks and rotation packages can record without import cycles.

var (
	AuthorizerResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgegate_authorizer_responses_total",
		Help: "Edge authorizer responses by status code",
	}, []string{"status"})

	JWKSFetchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edgegate_jwks_fetch_seconds",
		Help:    "Latency of identity provider key set fetches",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"result"})

	RotationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgegate_rotation_runs_total",
		Help: "Key rotation runs by result",
	}, []string{"result"})

	RotationSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgegate_rotation_steps_total",
		Help: "Committed key rotation steps",
	}, []string{"step"})
)

// Register registers all collectors on reg (or the default registerer if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthorizerResponses, JWKSFetchSeconds, RotationRuns, RotationSteps} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveResponse counts one authorizer response.
func ObserveResponse(status int) {
	AuthorizerResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
