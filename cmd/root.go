// Package cmd wires the selimcam command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insolesplug-ops/selimcam/cmd/benchmark"
	"github.com/insolesplug-ops/selimcam/cmd/diag"
	"github.com/insolesplug-ops/selimcam/cmd/run"
	"github.com/insolesplug-ops/selimcam/cmd/support"
	"github.com/insolesplug-ops/selimcam/internal/buildinfo"
	"github.com/insolesplug-ops/selimcam/internal/conf"
)

// RootCommand creates and returns the root command with every subcommand
// attached.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "selimcam",
		Short:   "SelimCam camera appliance runtime",
		Version: fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		run.Command(settings),
		diag.Command(settings),
		support.Command(settings, build),
		benchmark.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that apply to the whole command tree.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
