package dispatch

import (
	"time"

	"github.com/courierkit/dispatch/model"
	"github.com/courierkit/dispatch/service/event"
	"github.com/courierkit/dispatch/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customizes the simulation service.
type Option func(s *Service)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithWorkers replaces the worker roster.
func WithWorkers(specs ...model.WorkerSpec) Option {
	return func(s *Service) {
		s.config.Workers = specs
	}
}

// WithInitialTasks sets how many generated tasks seed the pool at startup.
func WithInitialTasks(count int) Option {
	return func(s *Service) {
		s.config.InitialTasks = count
	}
}

// WithTickInterval sets the shared tick period; zero disables the ticker.
func WithTickInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.config.TickInterval = interval
	}
}

// WithEventService wires the display/log event stream into every actor.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file
// path. Safe to call multiple times; the first successful initialisation
// wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, e.g. OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
