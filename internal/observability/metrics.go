package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BridgeCollector bundles the Prometheus metrics for the encode/delivery
// pipeline. It satisfies the recorder interfaces of the quant, admission,
// and bridge packages so one instance can be injected everywhere; tests use
// a fresh registry per instance.
type BridgeCollector struct {
	gatherer prometheus.Gatherer

	ClampEvents      *prometheus.CounterVec
	Denied           *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	Delivered        *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	EncodeDurations  *prometheus.HistogramVec
}

// NewBridgeCollector registers the bridge metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewBridgeCollector(reg prometheus.Registerer) (*BridgeCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	clamps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_clamp_events_total",
		Help: "Quantizer clamp/wrap corrections, labeled by ingress field name.",
	}, []string{"field"})
	clamps, err := registerCounterVec(reg, clamps, "bridge_clamp_events_total")
	if err != nil {
		return nil, err
	}

	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_denied_total",
		Help: "Records dropped by allow/deny topic membership, labeled by topic.",
	}, []string{"topic"})
	denied, err = registerCounterVec(reg, denied, "bridge_denied_total")
	if err != nil {
		return nil, err
	}

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_rate_limited_total",
		Help: "Records dropped by per-topic token exhaustion, labeled by topic.",
	}, []string{"topic"})
	rateLimited, err = registerCounterVec(reg, rateLimited, "bridge_rate_limited_total")
	if err != nil {
		return nil, err
	}

	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_delivered_total",
		Help: "Frames successfully handed to the transport sink, labeled by topic.",
	}, []string{"topic"})
	delivered, err = registerCounterVec(reg, delivered, "bridge_delivered_total")
	if err != nil {
		return nil, err
	}

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_delivery_failures_total",
		Help: "Frames lost after the sink exhausted its retries, labeled by topic.",
	}, []string{"topic"})
	failures, err = registerCounterVec(reg, failures, "bridge_delivery_failures_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_encode_duration_seconds",
		Help:    "Quantize+pack+parity+build latency in seconds, excluding sink I/O.",
		Buckets: []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005},
	}, []string{"topic"})
	durations, err = registerHistogramVec(reg, durations, "bridge_encode_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &BridgeCollector{
		gatherer:         gatherer,
		ClampEvents:      clamps,
		Denied:           denied,
		RateLimited:      rateLimited,
		Delivered:        delivered,
		DeliveryFailures: failures,
		EncodeDurations:  durations,
	}, nil
}

// IncClamp satisfies quant.ClampRecorder.
func (c *BridgeCollector) IncClamp(field string) {
	if c == nil {
		return
	}
	c.ClampEvents.WithLabelValues(field).Inc()
}

// IncDenied satisfies admission.Recorder.
func (c *BridgeCollector) IncDenied(topic string) {
	if c == nil {
		return
	}
	c.Denied.WithLabelValues(topic).Inc()
}

// IncRateLimited satisfies admission.Recorder.
func (c *BridgeCollector) IncRateLimited(topic string) {
	if c == nil {
		return
	}
	c.RateLimited.WithLabelValues(topic).Inc()
}

// IncDelivered counts a successful sink handoff.
func (c *BridgeCollector) IncDelivered(topic string) {
	if c == nil {
		return
	}
	c.Delivered.WithLabelValues(topic).Inc()
}

// IncDeliveryFailure counts a frame lost after retries.
func (c *BridgeCollector) IncDeliveryFailure(topic string) {
	if c == nil {
		return
	}
	c.DeliveryFailures.WithLabelValues(topic).Inc()
}

// ObserveEncode records one encode-path latency sample.
func (c *BridgeCollector) ObserveEncode(topic string, d time.Duration) {
	if c == nil {
		return
	}
	c.EncodeDurations.WithLabelValues(topic).Observe(d.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *BridgeCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
