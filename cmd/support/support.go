// Package support implements the support bundle command.
package support

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insolesplug-ops/selimcam/internal/buildinfo"
	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/diagnostics"
)

// Command creates the support command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var outputDir string
	var skipLogs bool

	cmd := &cobra.Command{
		Use:   "support",
		Short: "Collect a support bundle for troubleshooting",
		Long: "Gather system information, the redacted configuration, recent " +
			"logs, and a diagnostics snapshot into a zip that can be attached " +
			"to a bug report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Collecting support data (system %s, version %s)...\n",
				build.GetSystemID(), build.GetVersion())

			opts := diagnostics.DefaultSupportOptions()
			opts.OutputDir = outputDir
			opts.IncludeLogs = !skipLogs

			// No runtime is attached here, so the snapshot carries only
			// static sections; counters come from a running appliance.
			path, err := diagnostics.CollectSupport(settings, diagnostics.NewCollector(diagnostics.Sources{}), opts)
			if err != nil {
				return fmt.Errorf("support collection failed: %w", err)
			}
			fmt.Printf("Support bundle written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write the bundle to (default: config directory)")
	cmd.Flags().BoolVar(&skipLogs, "no-logs", false, "Exclude log files from the bundle")

	return cmd
}
