package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics records outbox publishing batches.
type PublisherMetrics struct {
	duration  prometheus.Histogram
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewPublisherMetrics registers the outbox publisher metrics on the provided registerer.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox events that failed to publish.",
	}, []string{"event_type"})
	reg.MustRegister(duration, published, failed)
	return &PublisherMetrics{
		duration:  duration,
		published: published,
		failed:    failed,
	}
}

// ObserveBatch records how long a publish batch took.
func (p *PublisherMetrics) ObserveBatch(duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.Observe(duration.Seconds())
}

func (p *PublisherMetrics) IncPublished(eventType string) {
	if p == nil || p.published == nil {
		return
	}
	p.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (p *PublisherMetrics) IncFailed(eventType string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}
