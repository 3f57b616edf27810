// Package driver defines the shared Driver-building blocks each provider
// subpackage (openai, stability, recraft, flux, tripo) wraps its HTTP calls
// with. Exactly one Driver instance exists per (provider, operation) pair
// the system supports (spec §4.1).
package driver

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/makeit3d/forge-gateway/internal/observability"
)

// NewHTTPClient builds a provider HTTP client instrumented with OpenTelemetry,
// grounded on the teacher's real-AI-client construction (otelhttp transport,
// per-call timeout). serviceName tags the otelhttp span name formatter.
func NewHTTPClient(serviceName string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return serviceName + " " + r.Method + " " + r.URL.Path
			}),
		),
	}
}

// Breakers is a per-provider registry of circuit breakers, one per Driver
// instance, shared across the Submit/Poll calls a Worker makes for that
// provider. Grounded on internal/adapter/ai/circuit_breaker.go, generalized
// from per-model to per-provider breaking and backed by the already-adapted
// internal/observability.CircuitBreaker mechanism.
type Breakers struct {
	byProvider map[string]*observability.CircuitBreaker
}

// NewBreakers constructs an empty breaker registry.
func NewBreakers() *Breakers {
	return &Breakers{byProvider: make(map[string]*observability.CircuitBreaker)}
}

// For returns (creating if absent) the circuit breaker for a provider.
func (b *Breakers) For(provider string) *observability.CircuitBreaker {
	cb, ok := b.byProvider[provider]
	if !ok {
		cb = observability.NewCircuitBreaker(3, 30*time.Second, 0.5)
		b.byProvider[provider] = cb
	}
	return cb
}
