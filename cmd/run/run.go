// Package run implements the appliance runtime command.
package run

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insolesplug-ops/selimcam/internal/appliance"
	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/logging"
)

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	var sim bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the camera appliance",
		Long: "Start the capture, input, haptic, and render pipeline and run " +
			"until interrupted. With --sim the hardware layer is simulated, " +
			"which is useful on a development machine.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appliance.New(appliance.Options{
				Settings: settings,
				Sim:      sim,
				Logger:   logging.Structured(),
			})
			if err != nil {
				return err
			}
			return app.Run(context.Background())
		},
	}

	cmd.Flags().BoolVar(&sim, "sim", false, "Simulate GPIO and the actuator bus")
	cmd.Flags().IntVar(&settings.Preview.FPS, "fps", viper.GetInt("preview.fps"), "Preview frame rate")
	cmd.Flags().BoolVar(&settings.Realtime.Metrics.Enabled, "metrics", viper.GetBool("realtime.metrics.enabled"), "Enable the Prometheus metrics endpoint")
	cmd.Flags().StringVar(&settings.Realtime.Metrics.Listen, "listen", viper.GetString("realtime.metrics.listen"), "Listen address of the metrics endpoint")

	return cmd
}
