// Package telemetry provides observability instrumentation for intfdf.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one configuration.
//
// # Usage
//
// Initialize telemetry at process startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer.StartCommandSpan(ctx, "run")
//	defer span.End()
//
// # Structured Logging
//
// Commands pass the zerolog.Logger to the engine, which derives its own
// component loggers:
//
//	pipeline, err := engine.NewPipeline(engine.Config{Logger: tel.Logger.Zerolog(), ...})
//
// Log levels: trace, debug, info, warn, error, fatal. Logs go to stderr by
// default so that command output on stdout stays parseable.
//
// # Distributed Tracing
//
// NewTracer installs the global tracer provider. The engine starts its
// spans from the global provider, so enabling tracing here is enough to
// export pipeline.run, pipeline.plan, pipeline.fetch, pipeline.execute,
// pipeline.aggregate and pipeline.publish spans.
//
// Supported exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// Metrics implements engine.Metrics against its own Prometheus registry.
// A disabled Metrics value is safe to use and records nothing. Batch
// commands write the registry to Metrics.TextfilePath on shutdown; the
// watch command serves it over HTTP.
package telemetry
