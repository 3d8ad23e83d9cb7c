package telemetry


import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
)


const export_timeout time.Duration = 5 * time.Second


type ShutdownFunc func(context.Context) error

func nothingToShutdown(context.Context) error {
	return nil
}


// Install the global tracer provider.
// With an empty `endpoint` spans are dropped. Otherwise they are batched
// to the OTLP/HTTP collector at `endpoint`, either a full URL or a bare
// `host:port` reached in clear text. `instance` tags every span of this
// process, typically with the run id.
// The returned function flushes pending spans and must be called before
// exit.
//
func InitTracer(ctx context.Context, service, instance, endpoint string) (ShutdownFunc, error) {
	var options []otlptracehttp.Option
	var exporter *otlptracehttp.Exporter
	var provider *sdktrace.TracerProvider
	var res *resource.Resource
	var err error

	otel.SetTextMapPropagator(propagation.TraceContext{})

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nothingToShutdown, nil
	}

	options = []otlptracehttp.Option{
		otlptracehttp.WithTimeout(export_timeout),
	}

	if strings.HasPrefix(endpoint, "http://") ||
		strings.HasPrefix(endpoint, "https://") {
		options = append(options,
			otlptracehttp.WithEndpointURL(endpoint))
	} else {
		options = append(options, otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure())
	}

	exporter, err = otlptracehttp.New(ctx, options...)
	if err != nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nothingToShutdown, err
	}

	res, err = resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(service),
		semconv.ServiceInstanceID(instance)))
	if err != nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nothingToShutdown, err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
