package appliance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/hardware"
	"github.com/insolesplug-ops/selimcam/internal/input"
	"github.com/insolesplug-ops/selimcam/internal/render"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := conf.GetTestSettings()
	settings.Capture.OutputDir = t.TempDir()
	settings.Main.Log.Enabled = false
	return settings
}

func leakChecks() []goleak.Option {
	// signal.Notify keeps one runtime goroutine alive for the process.
	return []goleak.Option{goleak.IgnoreTopFunction("os/signal.signal_recv")}
}

func TestApplianceSimRunAndContextShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, leakChecks()...)

	settings := testSettings(t)
	renderer := &render.StatsRenderer{}

	// Three clockwise detents, spaced safely above the debounce floor.
	app, err := New(Options{
		Settings: settings,
		Sim:      true,
		Script:   hardware.DetentScript(3, true, 3*time.Millisecond),
		Renderer: renderer,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	collector := app.Collector()
	require.Eventually(t, func() bool {
		snap := collector.Snapshot()
		return snap.Render.Cycles >= 3 && snap.Input.Detents >= 4 && snap.Capture.Captured >= 1
	}, 5*time.Second, 10*time.Millisecond, "pipeline never became active")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("appliance did not shut down")
	}

	snap := collector.Snapshot()
	assert.Positive(t, snap.Input.Position, "clockwise detents must advance position")
	assert.Positive(t, renderer.Snapshot().Cycles)
	assert.False(t, collector.Degraded())
}

func TestApplianceShutdownRequestedOnBus(t *testing.T) {
	defer goleak.VerifyNone(t, leakChecks()...)

	settings := testSettings(t)
	app, err := New(Options{Settings: settings, Sim: true})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- app.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		return app.Collector().Snapshot().Render.Cycles >= 1
	}, 5*time.Second, 10*time.Millisecond)

	app.Bus().Publish(events.ShutdownRequested{Reason: "test"})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("appliance did not honor shutdown request")
	}
}

func TestApplianceShutterSavesPhoto(t *testing.T) {
	defer goleak.VerifyNone(t, leakChecks()...)

	settings := testSettings(t)

	// Give capture time to publish a frame, then press the shutter long
	// enough to clear the button debounce window.
	script := []hardware.SimEdge{
		{After: 300 * time.Millisecond, Edge: input.Edge{Line: input.LineShutter, High: true}},
		{After: 100 * time.Millisecond, Edge: input.Edge{Line: input.LineShutter, High: false}},
	}
	app, err := New(Options{Settings: settings, Sim: true, Script: script})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	collector := app.Collector()
	require.Eventually(t, func() bool {
		return collector.Snapshot().Photos.Saved >= 1
	}, 10*time.Second, 20*time.Millisecond, "shutter press never produced a saved photo")

	cancel()
	require.NoError(t, <-done)

	entries, err := os.ReadDir(settings.Capture.OutputDir)
	require.NoError(t, err)
	var jpegs int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".jpg") {
			jpegs++
			info, err := e.Info()
			require.NoError(t, err)
			assert.Positive(t, info.Size())
		}
	}
	assert.GreaterOrEqual(t, jpegs, 1, "expected a JPEG in %s", filepath.Clean(settings.Capture.OutputDir))
}

func TestApplianceRequiresSettings(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.Error(t, err)
}

func TestCloseReverseReleasesInReverseAcquisitionOrder(t *testing.T) {
	t.Parallel()

	var order []string
	wantErr := assert.AnError
	hw := []hwCloser{
		{name: "i2c", close: func() error { order = append(order, "i2c"); return wantErr }},
		{name: "gpio", close: func() error { order = append(order, "gpio"); return nil }},
	}

	err := closeReverse(hw)
	assert.Equal(t, []string{"gpio", "i2c"}, order, "last acquired releases first")
	assert.Equal(t, wantErr, err, "first close error survives")
}

func TestApplianceRecordsHardwareInAcquisitionOrder(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	require.True(t, settings.Haptic.Enabled)

	app, err := New(Options{Settings: settings, Sim: true})
	require.NoError(t, err)

	var names []string
	for _, h := range app.hw {
		names = append(names, h.name)
	}
	// The I2C actuator bus is opened before the input lines, so teardown
	// must walk this slice backwards.
	assert.Equal(t, []string{"haptic-driver", "edge-source"}, names)
}
