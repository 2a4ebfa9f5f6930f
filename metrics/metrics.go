// Package metrics exports gateway telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "imgapi"

// Observer implements imgapi.Observer and records HTTP traffic.
type Observer struct {
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
	uploadBytes      prometheus.Counter
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewObserver registers the gateway metrics with reg (default:
// prometheus.DefaultRegisterer). Registering twice reuses the existing
// collectors.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &Observer{}

	o.upstreamDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_duration_seconds",
		Help:      "Latency of storage, purge and transformation calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	o.upstreamErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Count of failed storage, purge and transformation calls.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	o.uploadBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative decoded payload size written to object storage.",
	}))
	if err != nil {
		return nil, err
	}

	o.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"}))
	if err != nil {
		return nil, err
	}

	o.requestDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"}))
	if err != nil {
		return nil, err
	}

	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// ObserveUpstream tracks call latency and failures per operation.
func (o *Observer) ObserveUpstream(op string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.upstreamDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		o.upstreamErrors.WithLabelValues(op).Inc()
	}
}

// ObserveUpload adds to the uploaded bytes counter.
func (o *Observer) ObserveUpload(sizeBytes int64) {
	if o == nil || sizeBytes <= 0 {
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
}

// Middleware counts requests by chi route pattern. Image requests share the
// "/*" pattern so paths never become label values.
func (o *Observer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if o == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		o.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		o.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves /metrics from gatherer (default: prometheus.DefaultGatherer)
// and a /healthz liveness probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
