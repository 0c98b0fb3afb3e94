// Package otel installs the global tracer provider used by the bridge spans
// and the HTTP host instrumentation.
package otel

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config controls tracing for one bridge process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// AppID and AdsEnabled describe the game the bridge serves; they are
	// attached to every span's resource.
	AppID      string
	AdsEnabled bool
	// SampleRatio is the fraction of new traces recorded; zero or above one
	// records all.
	SampleRatio float64
	// UseStdout exports spans to Writer, or stdout when Writer is nil.
	UseStdout bool
	Writer    io.Writer
}

// Init configures a global tracer provider and returns its shutdown func.
// Without an exporter spans are still created so trace ids reach error bodies.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	res, err := resource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	}
	if cfg.UseStdout {
		exp, err := stdoutExporter(cfg.Writer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(200*time.Millisecond)))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func resource(ctx context.Context, cfg Config) (*sdkresource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "y8bridge"
	}
	version := cfg.ServiceVersion
	if version == "" {
		version = os.Getenv("Y8BRIDGE_VERSION")
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
		attribute.Bool("y8.ads_enabled", cfg.AdsEnabled),
	}
	if cfg.AppID != "" {
		attrs = append(attrs, attribute.String("y8.app_id", cfg.AppID))
	}
	return sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithAttributes(attrs...),
	)
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func stdoutExporter(w io.Writer) (*stdouttrace.Exporter, error) {
	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	return stdouttrace.New(opts...)
}
