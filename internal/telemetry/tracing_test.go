package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		Endpoint: "http://localhost:4318",
		Enabled:  false,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{Enabled: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_CreatesProvider(t *testing.T) {
	// Non-routable address: nothing is exported, shutdown still flushes cleanly.
	shutdown, err := SetupTracing(context.Background(), TracingConfig{
		ServiceName: "nbhd-test",
		Endpoint:    "http://192.0.2.1:4318",
		Enabled:     true,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
