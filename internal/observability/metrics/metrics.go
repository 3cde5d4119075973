package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	entriesRegistered metric.Int64Counter
	gramsRegistered   metric.Float64Counter
	backupUploads     metric.Int64Counter
	authExchanges     metric.Int64Counter
	catalogLoads      metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "macrolog"
	}
	meter := provider.Meter(name)

	entriesRegistered, err := meter.Int64Counter("macrolog_entries_registered_total")
	if err != nil {
		return nil, err
	}
	gramsRegistered, err := meter.Float64Counter("macrolog_grams_registered_total")
	if err != nil {
		return nil, err
	}
	backupUploads, err := meter.Int64Counter("macrolog_backup_uploads_total")
	if err != nil {
		return nil, err
	}
	authExchanges, err := meter.Int64Counter("macrolog_auth_exchanges_total")
	if err != nil {
		return nil, err
	}
	catalogLoads, err := meter.Int64Counter("macrolog_catalog_loads_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		entriesRegistered: entriesRegistered,
		gramsRegistered:   gramsRegistered,
		backupUploads:     backupUploads,
		authExchanges:     authExchanges,
		catalogLoads:      catalogLoads,
	}, nil
}

// RecordEntry counts a registered consumption entry.
func (m *Metrics) RecordEntry(ctx context.Context, quantityGrams float64) {
	if m == nil {
		return
	}
	m.entriesRegistered.Add(ctx, 1)
	m.gramsRegistered.Add(ctx, quantityGrams)
}

// RecordBackupUpload counts upload attempts by provider and outcome.
func (m *Metrics) RecordBackupUpload(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.backupUploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuthExchange counts authorization code exchanges by outcome.
func (m *Metrics) RecordAuthExchange(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.authExchanges.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

// RecordCatalogLoad counts reference catalog loads by outcome.
func (m *Metrics) RecordCatalogLoad(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.catalogLoads.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider":    {},
	"outcome":     {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
