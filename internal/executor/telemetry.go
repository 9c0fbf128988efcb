package executor

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/specialistvlad/habitatgrid/internal/executor"

// instruments holds the OpenTelemetry instruments of one executor.
type instruments struct {
	tracer trace.Tracer

	// steps counts every step that reached the engine.
	steps metric.Int64Counter
	// failures counts the steps whose engine call returned an error.
	failures metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	ins := &instruments{tracer: tp.Tracer(instrumentationName)}
	var err error
	ins.steps, err = meter.Int64Counter(
		"habitatgrid.steps",
		metric.WithDescription("Number of recipe steps executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create steps counter: %w", err)
	}
	ins.failures, err = meter.Int64Counter(
		"habitatgrid.step_failures",
		metric.WithDescription("Number of recipe steps whose engine call failed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create step failures counter: %w", err)
	}
	return ins, nil
}
