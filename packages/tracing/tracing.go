// Package tracing wires OpenTelemetry for test runs. Every scenario attempt
// becomes one span carrying the test identity, attempt number and outcome.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/abdul-hamid-achik/bankspec"

// Span attribute keys.
var (
	AttrTestID   = attribute.Key("bankspec.test.id")
	AttrAttempt  = attribute.Key("bankspec.test.attempt")
	AttrPlatform = attribute.Key("bankspec.test.platform")
	AttrWorker   = attribute.Key("bankspec.worker")
	AttrSession  = attribute.Key("bankspec.session.id")
	AttrStatus   = attribute.Key("bankspec.test.status")
	AttrRunID    = attribute.Key("bankspec.run.id")
	AttrStep     = attribute.Key("bankspec.step")
)

// Provider owns the SDK tracer provider and the exporter's output file.
type Provider struct {
	provider *sdktrace.TracerProvider
	out      io.Closer
}

// NewProvider exports spans as JSON to path, or to stdout when path is
// empty, and installs the provider globally.
func NewProvider(serviceName, version, path string) (*Provider, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &Provider{provider: provider, out: closer}, nil
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(tracerName)
}

// Shutdown flushes pending spans and closes the output file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.provider.Shutdown(ctx)
	if p.out != nil {
		if cerr := p.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Tracer returns the global bankspec tracer. It is a no-op until a
// Provider is installed.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
