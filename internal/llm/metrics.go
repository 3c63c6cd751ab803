package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingoflow_llm_requests_total",
			Help: "Generation backend requests by purpose, model and status.",
		},
		[]string{"purpose", "model", "status"},
	)
	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lingoflow_llm_request_duration_seconds",
			Help:    "Generation backend latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"purpose", "model"},
	)
	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingoflow_llm_tokens_total",
			Help: "Tokens consumed by direction (input, output).",
		},
		[]string{"model", "direction"},
	)
)

// MetricsProvider is a decorator exporting prometheus metrics per call.
type MetricsProvider struct {
	inner Provider
}

// WithMetrics wraps a Provider with request counters and latency histograms.
func WithMetrics(p Provider) Provider {
	return &MetricsProvider{inner: p}
}

func (m *MetricsProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	model := modelFor(req, m.inner.ModelID())

	start := time.Now()
	resp, err := m.inner.Generate(ctx, req)
	llmRequestDuration.WithLabelValues(purpose, model).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	llmRequestsTotal.WithLabelValues(purpose, model, status).Inc()

	if resp != nil {
		llmTokensTotal.WithLabelValues(model, "input").Add(float64(resp.Usage.InputTokens))
		llmTokensTotal.WithLabelValues(model, "output").Add(float64(resp.Usage.OutputTokens))
	}
	return resp, err
}

func (m *MetricsProvider) ModelID() string {
	return m.inner.ModelID()
}

func (m *MetricsProvider) Unwrap() Provider {
	return m.inner
}
