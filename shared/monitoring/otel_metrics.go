package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Portal-specific attribute keys. HTTP metrics use the semconv keys instead.
const (
	attrBusinessAction    = "portal.business.action"
	attrBusinessOutcome   = "portal.business.outcome"
	attrExternalTarget    = "portal.external.target"
	attrExternalOperation = "portal.external.operation"
)

var (
	httpRequestsCounter   metric.Int64Counter
	httpRequestDuration   metric.Float64Histogram
	externalCallsCounter  metric.Int64Counter
	externalCallErrors    metric.Int64Counter
	externalCallDuration  metric.Float64Histogram
	businessEventsCounter metric.Int64Counter
	metricsHandler        http.Handler
	initialized           int32
	otelInitOnce          sync.Once
	otelInitErr           error
)

// Config holds the configuration for OpenTelemetry metrics
type Config struct {
	// ExporterType can be "prometheus", "otlp", or "none"
	ExporterType   string
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is the full collector URL, e.g. "https://otel.example.com:4318"
	OTLPEndpoint    string
	OTLPHeaders     map[string]string
	OTLPTLSInsecure bool
	// HistogramBuckets are the boundaries (seconds) for every duration histogram
	HistogramBuckets []float64
}

var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// DefaultConfig returns a configuration populated from the OTEL_* environment variables
func DefaultConfig(serviceName string) Config {
	return Config{
		ExporterType:     utils.GetEnvOrDefault("OTEL_METRICS_EXPORTER", "prometheus"),
		ServiceName:      serviceName,
		ServiceVersion:   utils.GetEnvOrDefault("SERVICE_VERSION", "dev"),
		OTLPEndpoint:     utils.GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPHeaders:      parseHeaders(utils.GetEnvOrDefault("OTEL_EXPORTER_OTLP_HEADERS", "")),
		OTLPTLSInsecure:  utils.GetEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		HistogramBuckets: defaultBuckets,
	}
}

// Initialize sets up the global meter provider and instruments.
// Only the first call does any work; later calls return the first result.
func Initialize(config Config) error {
	otelInitOnce.Do(func() {
		otelInitErr = initializeInternal(context.Background(), config)
		if otelInitErr == nil {
			atomic.StoreInt32(&initialized, 1)
		}
	})
	return otelInitErr
}

func initializeInternal(ctx context.Context, config Config) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var reader sdkmetric.Reader

	switch config.ExporterType {
	case "prometheus", "":
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		slog.Info("Initialized OpenTelemetry metrics with Prometheus exporter", "service", config.ServiceName)

	case "otlp":
		opts, err := otlpOptions(config)
		if err != nil {
			return err
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
		metricsHandler = staticHandler(http.StatusOK, "# Metrics exported via OTLP\n")
		slog.Info("Initialized OpenTelemetry metrics with OTLP exporter",
			"service", config.ServiceName,
			"endpoint", config.OTLPEndpoint,
			"insecure", config.OTLPTLSInsecure)

	case "none":
		reader = sdkmetric.NewManualReader()
		metricsHandler = staticHandler(http.StatusOK, "# Metrics disabled\n")
		slog.Info("OpenTelemetry metrics disabled", "service", config.ServiceName)

	default:
		return fmt.Errorf("unknown exporter type: %s (supported: prometheus, otlp, none)", config.ExporterType)
	}

	buckets := config.HistogramBuckets
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}
	histogramView := func(name string) sdkmetric.Option {
		return sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: buckets}},
		))
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		histogramView("http_request_duration_seconds"),
		histogramView("external_call_duration_seconds"),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(
		runtime.WithMinimumReadMemStatsInterval(10*time.Second),
		runtime.WithMeterProvider(meterProvider),
	); err != nil {
		slog.Warn("Failed to start runtime metrics", "error", err)
	}

	return createInstruments(otel.Meter("concierge-portal"))
}

func createInstruments(meter metric.Meter) error {
	var err error
	if httpRequestsCounter, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if externalCallsCounter, err = meter.Int64Counter("external_calls_total",
		metric.WithDescription("Total number of external service calls"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create external_calls_total counter: %w", err)
	}
	if externalCallErrors, err = meter.Int64Counter("external_call_errors_total",
		metric.WithDescription("Total number of failed external service calls"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create external_call_errors_total counter: %w", err)
	}
	if externalCallDuration, err = meter.Float64Histogram("external_call_duration_seconds",
		metric.WithDescription("External service call duration in seconds"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("failed to create external_call_duration_seconds histogram: %w", err)
	}
	if businessEventsCounter, err = meter.Int64Counter("business_events_total",
		metric.WithDescription("Total number of business events"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("failed to create business_events_total counter: %w", err)
	}
	return nil
}

func otlpOptions(config Config) ([]otlpmetrichttp.Option, error) {
	if config.OTLPEndpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
	}
	endpointURL, err := url.Parse(config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint URL: %w", err)
	}
	if endpointURL.Scheme != "https" && !config.OTLPTLSInsecure {
		return nil, fmt.Errorf("OTLP endpoint must use HTTPS (got: %s); set OTEL_EXPORTER_OTLP_INSECURE=true to allow plain HTTP", endpointURL.Scheme)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpointURL.Host)}
	if config.OTLPTLSInsecure && endpointURL.Scheme == "http" {
		slog.Warn("Using insecure HTTP connection for OTLP endpoint", "endpoint", config.OTLPEndpoint)
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(config.OTLPHeaders))
	}
	return opts, nil
}

func staticHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func recordHTTPRequest(method, route string, status int, duration time.Duration) {
	ctx := context.Background()
	httpRequestsCounter.Add(ctx, 1,
		metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(status),
		),
	)
	httpRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		),
	)
}

// RecordExternalCall records a call to Postgres, Redis or a remote function
func RecordExternalCall(target, operation string, duration time.Duration, err error) {
	if atomic.LoadInt32(&initialized) == 0 {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String(attrExternalTarget, target),
		attribute.String(attrExternalOperation, operation),
	)
	externalCallsCounter.Add(ctx, 1, attrs)
	externalCallDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		externalCallErrors.Add(ctx, 1, attrs)
	}
}

// RecordBusinessEvent counts a domain event such as "transaction_created" with its outcome
func RecordBusinessEvent(action, outcome string) {
	if atomic.LoadInt32(&initialized) == 0 {
		return
	}
	businessEventsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(attrBusinessAction, action),
			attribute.String(attrBusinessOutcome, outcome),
		),
	)
}

// parseHeaders parses "key1=value1,key2=value2"
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(headerStr, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
