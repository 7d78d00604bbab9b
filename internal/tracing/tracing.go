// Package tracing wires an OpenTelemetry TracerProvider, selectable between
// an OTLP exporter, a Jaeger exporter, or a noop tracer that costs nothing
// when tracing is disabled. Its tracer is handed to internal/server's HTTP
// middleware; AgentRuntime's entry points and rewriter.Registry.Prepare
// start no spans.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"fieldwatch-agent/internal/config"
)

// Provider owns the process-wide TracerProvider and the tracer this agent's
// components pull spans from.
type Provider struct {
	cfg      config.TracingConfig
	log      *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewProvider builds a Provider. When cfg.Enabled is false, or the
// exporter is "noop", the returned Provider wraps otel's own global noop
// tracer, so every Start call is a handful of interface calls that do
// nothing.
func NewProvider(cfg config.TracingConfig, log *logrus.Logger) (*Provider, error) {
	if !cfg.Enabled || cfg.Exporter == "noop" {
		return &Provider{cfg: cfg, log: log, tracer: otel.Tracer("noop")}, nil
	}

	p := &Provider{cfg: cfg, log: log}
	if err := p.initialize(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) initialize() error {
	exporter, err := p.createExporter()
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(p.cfg.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("create trace resource: %w", err)
	}

	p.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(p.cfg.SampleRatio)),
	)
	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	p.tracer = otel.Tracer(p.cfg.ServiceName)

	p.log.WithFields(logrus.Fields{
		"exporter":     p.cfg.Exporter,
		"endpoint":     p.cfg.Endpoint,
		"sample_ratio": p.cfg.SampleRatio,
	}).Info("distributed tracing initialized")
	return nil
}

func (p *Provider) createExporter() (trace.SpanExporter, error) {
	switch p.cfg.Exporter {
	case "jaeger":
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(p.cfg.Endpoint)))
	case "otlp":
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(p.cfg.Endpoint),
		))
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", p.cfg.Exporter)
	}
}

// Tracer returns the tracer components should pull spans from.
func (p *Provider) Tracer() oteltrace.Tracer { return p.tracer }

// Shutdown flushes and shuts down the tracer provider, if one was created.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// Span wraps a single span so callers get a small, chainable surface
// instead of the raw oteltrace.Span API.
type Span struct {
	ctx  context.Context
	span oteltrace.Span
}

// StartSpan starts a span named after the AgentRuntime/rewriter operation
// being traced (e.g. "CaptureFieldWrite", "rewriter.Prepare").
func StartSpan(ctx context.Context, tracer oteltrace.Tracer, operation string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operation)
	return ctx, &Span{ctx: ctx, span: span}
}

func (s *Span) Context() context.Context { return s.ctx }

func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.span.SetAttributes(attr)
}

func (s *Span) SetError(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

func (s *Span) End() { s.span.End() }

// Middleware wraps an http.Handler with a span per request, for
// internal/server's routes.
func Middleware(tracer oteltrace.Tracer, operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, operation)
			defer span.End()

			span.SetAttributes(
				semconv.HTTPMethod(r.Method),
				semconv.HTTPTarget(r.URL.Path),
			)
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractTraceInfo reads the active trace/span IDs off ctx, for attaching
// to a log line at the point an error is handled.
func ExtractTraceInfo(ctx context.Context) (traceID, spanID string) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", ""
	}
	return span.SpanContext().TraceID().String(), span.SpanContext().SpanID().String()
}
