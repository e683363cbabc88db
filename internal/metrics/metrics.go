// Package metrics exports storefront metrics over OTLP/HTTP.
package metrics

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/example/pianostore/internal/config"
	"github.com/example/pianostore/internal/query"
)

const exportInterval = 10 * time.Second

// Millisecond buckets up to 60s.
var durationBuckets = []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

var idSegment = regexp.MustCompile(`/[0-9]+(/|$)`)

// AppMetrics holds every instrument the gateway records. A nil *AppMetrics
// records nothing.
type AppMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	BackendCallsTotal   metric.Int64Counter
	BackendCallDuration metric.Float64Histogram

	OrdersSubmitted     metric.Int64Counter
	OrderValue          metric.Float64Counter
	DiscountValidations metric.Int64Counter
	PaymentReturns      metric.Int64Counter
	NotificationsPushed metric.Int64Counter
	RealtimeChannels    metric.Int64Gauge
	CheckoutsOpen       metric.Int64Gauge

	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	serviceName string
}

// Init builds the OTLP exporter and meter provider and installs the provider
// globally.
func Init(ctx context.Context, cfg *config.Config) (*AppMetrics, *sdkmetric.MeterProvider, error) {
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}

	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
			attribute.String("deployment.environment", cfg.OTELDeploymentEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if headers := parseHeaders(cfg.OTELExporterOTLPHeaders); len(headers) > 0 {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(headers))
	}
	if cfg.OTELExporterOTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	m, err := newAppMetrics(provider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[Metrics] Exporting to %s/v1/metrics every %s", cfg.OTELExporterOTLPEndpoint, exportInterval)
	return m, provider, nil
}

// NewWithMeter builds the instruments on an existing meter.
func NewWithMeter(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	return newAppMetrics(meter, serviceName)
}

// Noop returns metrics that record nothing.
func Noop() *AppMetrics {
	m, _ := newAppMetrics(noop.NewMeterProvider().Meter("noop"), "noop")
	return m
}

func newAppMetrics(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	m := &AppMetrics{serviceName: serviceName}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http.server.request.count", "Total number of HTTP requests"},
		{&m.HTTPRequestsErrors, "http.server.request.error.count", "Total number of HTTP error responses"},
		{&m.BackendCallsTotal, "backend.client.request.count", "Total number of backend API calls"},
		{&m.OrdersSubmitted, "orders_submitted_total", "Orders placed through checkout"},
		{&m.DiscountValidations, "discount_validations_total", "Discount code validations by result"},
		{&m.PaymentReturns, "payment_returns_total", "Payment gateway returns by outcome"},
		{&m.NotificationsPushed, "notifications_pushed_total", "Notifications received on realtime channels"},
		{&m.CacheHits, "cache_hits_total", "Total number of cache hits"},
		{&m.CacheMisses, "cache_misses_total", "Total number of cache misses"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1")); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.HTTPRequestDuration, "http.server.request.duration", "HTTP request duration in milliseconds"},
		{&m.BackendCallDuration, "backend.client.request.duration", "Backend API call duration in milliseconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("ms"),
			metric.WithExplicitBucketBoundaries(durationBuckets...),
		); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", h.name, err)
		}
	}

	gauges := []struct {
		dst  *metric.Int64Gauge
		name string
		desc string
	}{
		{&m.RealtimeChannels, "realtime_channels_open", "Open realtime notification channels"},
		{&m.CheckoutsOpen, "checkouts_open", "Checkouts held in memory"},
	}
	for _, g := range gauges {
		if *g.dst, err = meter.Int64Gauge(g.name, metric.WithDescription(g.desc), metric.WithUnit("1")); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", g.name, err)
		}
	}

	if m.OrderValue, err = meter.Float64Counter("order_value_total",
		metric.WithDescription("Total value of submitted orders"),
		metric.WithUnit("VND"),
	); err != nil {
		return nil, fmt.Errorf("failed to create order_value_total: %w", err)
	}

	return m, nil
}

// WithServiceName adds service.name to attrs.
func (m *AppMetrics) WithServiceName(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(attrs, attribute.String("service.name", m.serviceName))
}

func (m *AppMetrics) with(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(m.WithServiceName(attrs)...)
}

// RecordHTTP records one served request.
func (m *AppMetrics) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := m.with(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, opt)
	if status >= 400 {
		m.HTTPRequestsErrors.Add(ctx, 1, opt)
	}
	m.HTTPRequestDuration.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

// RecordBackendCall matches services.Observer.
func (m *AppMetrics) RecordBackendCall(ctx context.Context, method, path string, status int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	opt := m.with(
		attribute.String("http.method", method),
		attribute.String("backend.route", NormalizePath(path)),
		attribute.Int("http.status_code", status),
		attribute.String("status", outcome),
	)
	m.BackendCallsTotal.Add(ctx, 1, opt)
	m.BackendCallDuration.Record(ctx, float64(elapsed.Milliseconds()), opt)
}

func (m *AppMetrics) OrderSubmitted(ctx context.Context, paymentMethod string, total decimal.Decimal) {
	if m == nil {
		return
	}
	opt := m.with(attribute.String("payment_method", paymentMethod))
	m.OrdersSubmitted.Add(ctx, 1, opt)
	m.OrderValue.Add(ctx, total.InexactFloat64(), opt)
}

func (m *AppMetrics) DiscountValidated(ctx context.Context, accepted bool) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.DiscountValidations.Add(ctx, 1, m.with(attribute.String("result", result)))
}

func (m *AppMetrics) PaymentReturn(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.PaymentReturns.Add(ctx, 1, m.with(attribute.String("outcome", state)))
}

func (m *AppMetrics) NotificationPushed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.NotificationsPushed.Add(ctx, 1, m.with(attribute.String("type", kind)))
}

// Gauges records the sizes of the in-memory registries.
func (m *AppMetrics) Gauges(ctx context.Context, channels, checkouts int) {
	if m == nil {
		return
	}
	m.RealtimeChannels.Record(ctx, int64(channels), m.with())
	m.CheckoutsOpen.Record(ctx, int64(checkouts), m.with())
}

// CacheHooks counts query cache traffic by resource name, the last key
// segment.
func (m *AppMetrics) CacheHooks() query.Hooks {
	if m == nil {
		return query.Hooks{}
	}
	record := func(counter metric.Int64Counter) func(query.Key) {
		return func(key query.Key) {
			resource := "unknown"
			if len(key) > 1 {
				resource = key[1]
			}
			counter.Add(context.Background(), 1, m.with(attribute.String("resource", resource)))
		}
	}
	return query.Hooks{Hit: record(m.CacheHits), Miss: record(m.CacheMisses)}
}

// NormalizePath replaces numeric path segments so ids do not become labels.
func NormalizePath(path string) string {
	for idSegment.MatchString(path) {
		path = idSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}

// parseHeaders parses "key1=value1,key2=value2".
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	for _, pair := range strings.Split(headerStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
