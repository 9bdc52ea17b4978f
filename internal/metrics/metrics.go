// Package metrics exposes HTTP server metrics through the OpenTelemetry
// Prometheus exporter.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	export "go.opentelemetry.io/otel/sdk/export/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"
)

var (
	methodKey = attribute.Key("http.method")
	routeKey  = attribute.Key("http.route")
	statusKey = attribute.Key("http.status_code")
)

// Metrics records one counter and one latency distribution per request.
type Metrics struct {
	exporter *prometheus.Exporter
	requests metric.Int64Counter
	duration metric.Float64ValueRecorder
}

// New builds a pull based exporter with its own registry and the
// instruments used by Middleware.
func New(service string) (*Metrics, error) {
	config := prometheus.Config{}
	c := controller.New(
		processor.New(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(config.DefaultHistogramBoundaries),
			),
			export.CumulativeExportKindSelector(),
			processor.WithMemory(true),
		),
	)

	exporter, err := prometheus.New(config, c)
	if err != nil {
		return nil, fmt.Errorf("initialize prometheus exporter: %w", err)
	}

	meter := metric.Must(exporter.MeterProvider().Meter(service))

	return &Metrics{
		exporter: exporter,
		requests: meter.NewInt64Counter(
			"http.server.requests",
			metric.WithDescription("Count of completed requests, by HTTP method, route and response status"),
		),
		duration: meter.NewFloat64ValueRecorder(
			"http.server.duration",
			metric.WithDescription("Request handling time in seconds, by HTTP method, route and response status"),
		),
	}, nil
}

// ServeHTTP serves the Prometheus scrape endpoint.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.exporter.ServeHTTP(w, r)
}

// Middleware records every request once routing has finished, so the route
// label is the matched pattern rather than the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			labels := []attribute.KeyValue{
				methodKey.String(r.Method),
				routeKey.String(route),
				statusKey.Int(status),
			}

			m.requests.Add(r.Context(), 1, labels...)
			m.duration.Record(r.Context(), time.Since(start).Seconds(), labels...)
		}()

		next.ServeHTTP(ww, r)
	})
}
