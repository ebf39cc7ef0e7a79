package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
	"github.com/fomightez/pdbepisa-binder/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartCommandSpan(context.Background(), "run")
	defer span.End()

	logger := tel.Logger.Zerolog()
	logger.Info().Str("trace_id", telemetry.TraceID(ctx)).Msg("Application started")
}

// Example_pipelineMetrics demonstrates recording pipeline metrics.
func Example_pipelineMetrics() {
	cfg := telemetry.DefaultConfig()

	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		panic(err)
	}

	metrics.RecordPlan(2, 1, 1)
	metrics.RecordExecution(engine.ExecutionSucceeded, 3*time.Second)
	metrics.RecordArchive(3, 4096)
	metrics.RecordRun(engine.RunStatusSucceeded, 10*time.Second)

	fmt.Println(metrics.Enabled())
	// Output: true
}
