package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowr/common/config"
	"github.com/lyzr/flowr/common/logger"
)

func noNetworkConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Service.LogLevel = "error"
	cfg.Service.LogFormat = "text"
	cfg.Telemetry.EnablePprof = false
	return cfg
}

func TestSetupSkipsDBAndTraceWhenRequested(t *testing.T) {
	components, err := Setup(context.Background(), "flowc-test",
		WithoutDB(), WithoutTrace(), WithCustomConfig(noNetworkConfig()))
	require.NoError(t, err)
	require.Nil(t, components.DB)
	require.Nil(t, components.Trace)
	require.Nil(t, components.Telemetry)
	require.NoError(t, components.Shutdown(context.Background()))
}

func TestSetupUsesCustomLoggerOverConfigDerived(t *testing.T) {
	log := logger.New("debug", "text")

	components, err := Setup(context.Background(), "flowc-test",
		WithoutDB(), WithoutTrace(), WithCustomConfig(noNetworkConfig()), WithCustomLogger(log))
	require.NoError(t, err)
	require.Same(t, log, components.Logger)
}

func TestMustSetupPanicsOnFailure(t *testing.T) {
	badDB := noNetworkConfig()
	badDB.Database.Host = "flowr-test-unresolvable.invalid"
	badDB.Database.Database = "flowr_test"

	require.Panics(t, func() {
		MustSetup(context.Background(), "flowc-test", WithoutTrace(), WithCustomConfig(badDB))
	})
}

func TestShutdownRunsCleanupFuncsInReverseOrder(t *testing.T) {
	components := &Components{Logger: logger.New("error", "text")}
	var order []int
	components.addCleanup(func() error { order = append(order, 1); return nil })
	components.addCleanup(func() error { order = append(order, 2); return nil })

	require.NoError(t, components.Shutdown(context.Background()))
	require.Equal(t, []int{2, 1}, order)
}
