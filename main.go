package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/insolesplug-ops/selimcam/cmd"
	"github.com/insolesplug-ops/selimcam/internal/buildinfo"
	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/logging"
)

// Injected at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := conf.Load()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logging.Init()
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	configDir := "."
	if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
		configDir = paths[0]
	}
	build := buildinfo.NewContext(version, buildDate, buildinfo.LoadOrCreateSystemID(configDir))

	return cmd.RootCommand(settings, build).Execute()
}
