// Package observability wires optional OpenTelemetry tracing across the
// HTTP surface and the job worker harness. It is opt-in: with OTEL_ENABLED
// unset, Init is a no-op and the rest of the module never touches a
// real tracer.
package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenmind/memoryengine/internal/platform/envutil"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// Config names the resource attributes attached to every span this process
// emits.
type Config struct {
	ServiceName string
	Environment string
	Version     string
}

var (
	initOnce     sync.Once
	shutdownFunc func(context.Context) error
)

// Init sets the global tracer provider when OTEL_ENABLED is truthy,
// exporting via OTLP/HTTP if OTEL_EXPORTER_OTLP_ENDPOINT is set, or to
// stdout otherwise. It returns a shutdown func safe to call unconditionally
// (a no-op when tracing was never enabled). Idempotent: only the first call
// across the process does any work.
func Init(ctx context.Context, log *logger.Logger, cfg Config) func(context.Context) error {
	initOnce.Do(func() {
		if !enabled(log) {
			shutdownFunc = func(context.Context) error { return nil }
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "memoryengine"
		}
		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(serviceName),
				semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
				attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
			),
		)
		if err != nil {
			log.Warn("otel resource init failed, continuing without resource attributes", "error", err)
		}

		exporter, err := buildExporter(ctx, log)
		if err != nil {
			log.Warn("otel exporter init failed, tracing disabled", "error", err)
			shutdownFunc = func(context.Context) error { return nil }
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(log)))),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		shutdownFunc = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName, "endpoint", endpoint(log))
	})
	return shutdownFunc
}

// Tracer returns a named tracer off the global provider; with tracing
// disabled this is otel's no-op tracer, so call sites never branch on
// whether OTEL_ENABLED is set.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func enabled(log *logger.Logger) bool {
	return envutil.GetEnvAsBool("OTEL_ENABLED", false, log)
}

func sampleRatio(log *logger.Logger) float64 {
	f := envutil.GetEnvAsFloat("OTEL_SAMPLER_RATIO", 0.1, log)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func endpoint(log *logger.Logger) string {
	return strings.TrimSpace(envutil.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "", log))
}

func buildExporter(ctx context.Context, log *logger.Logger) (sdktrace.SpanExporter, error) {
	if ep := endpoint(log); ep != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep)}
		if envutil.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false, log) {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	log.Warn("otel enabled with no OTLP endpoint configured, exporting to stdout")
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}
