// Package diag implements the hardware diagnostics command.
package diag

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/diagnostics"
)

// Command creates the diag command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Probe the board the appliance runs on",
		Long: "Check GPIO and I2C device nodes, memory and disk headroom, and " +
			"the photo output directory, and print a pass/fail table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := diagnostics.RunProbes(settings)

			failed := 0
			for _, r := range results {
				mark := "PASS"
				if !r.OK {
					mark = "FAIL"
					failed++
				}
				fmt.Printf("%-4s  %-10s %s\n", mark, r.Name, r.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d probes failed", failed, len(results))
			}
			fmt.Printf("all %d probes passed\n", len(results))
			return nil
		},
	}
}
