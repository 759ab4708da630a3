package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records HTTP and prediction-call metrics in Prometheus.
type Collector struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	predictLatency  prometheus.Histogram
	contactMessages prometheus.Counter
}

// NewCollector registers the collectors on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c, err := NewCollectorWith(reg, reg)
	if err != nil {
		// a fresh registry cannot hold duplicates
		panic(err)
	}
	return c
}

// NewCollectorWith registers the collectors on reg. Collectors that are
// already registered are reused.
func NewCollectorWith(reg prometheus.Registerer, g prometheus.Gatherer) (*Collector, error) {
	c := &Collector{gatherer: g}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airscope_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"route", "method", "status"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "airscope_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	predictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "airscope_prediction_requests_total",
		Help: "Prediction calls by outcome",
	}, []string{"outcome"})
	predictLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "airscope_prediction_duration_seconds",
		Help:    "Latency of prediction calls",
		Buckets: prometheus.DefBuckets,
	})
	contactMessages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "airscope_contact_messages_total",
		Help: "Contact form submissions (never forwarded)",
	})

	var err error
	if c.requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if c.requestDuration, err = register(reg, requestDuration); err != nil {
		return nil, err
	}
	if c.predictions, err = register(reg, predictions); err != nil {
		return nil, err
	}
	if c.predictLatency, err = register(reg, predictLatency); err != nil {
		return nil, err
	}
	if c.contactMessages, err = register(reg, contactMessages); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(route, method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// ObservePrediction records one prediction call. outcome is "success" or
// "error".
func (c *Collector) ObservePrediction(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.predictions.WithLabelValues(outcome).Inc()
	c.predictLatency.Observe(d.Seconds())
}

// ContactSubmitted counts a contact form submission.
func (c *Collector) ContactSubmitted() {
	if c == nil {
		return
	}
	c.contactMessages.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
