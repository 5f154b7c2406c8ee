package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grade",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of LLM completion requests",
	}, []string{"provider", "model", "role"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grade",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of failed LLM completion requests",
	}, []string{"provider", "model", "role", "reason"})
)

func observeCompletion(provider, model string, role Role, started time.Time) {
	completionDuration.WithLabelValues(provider, model, string(role)).Observe(time.Since(started).Seconds())
}

func recordFailure(span trace.Span, provider, model string, role Role, err error) {
	reason := ReasonUnknown
	if upstream, ok := AsUpstreamError(err); ok {
		reason = upstream.Reason
	}
	completionFailures.WithLabelValues(provider, model, string(role), string(reason)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
