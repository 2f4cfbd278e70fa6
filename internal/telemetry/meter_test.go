package telemetry

import (
	"context"
	"testing"
)

func TestSetupMeterProviderRecordsWithoutPanic(t *testing.T) {
	shutdown := SetupMeterProvider("contextstore-test")
	defer shutdown(context.Background())

	m := NewOtelMetrics()
	m.IncCounter("test_counter", map[string]string{"tier": "immediate"})
	m.ObserveHistogram("test_histogram", 1.5, nil)
}
