package diagnostics

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"

	"github.com/insolesplug-ops/selimcam/internal/conf"
)

// logTailBytes bounds how much of the service log ships in a bundle.
const logTailBytes = 256 * 1024

// SupportOptions selects what goes into a bundle.
type SupportOptions struct {
	IncludeConfig   bool
	IncludeLogs     bool
	IncludeSnapshot bool
	// OutputDir is where the zip lands. Empty uses the config directory.
	OutputDir string
}

// DefaultSupportOptions includes everything.
func DefaultSupportOptions() SupportOptions {
	return SupportOptions{IncludeConfig: true, IncludeLogs: true, IncludeSnapshot: true}
}

// CollectSupport writes a support bundle zip and returns its path. The
// bundle is named with a fresh UUID so repeated collections never clash
// and upload portals can deduplicate.
func CollectSupport(settings *conf.Settings, collector *Collector, opts SupportOptions) (string, error) {
	tmpDir, err := os.MkdirTemp("", "selimcam-support-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := writeSystemInfo(tmpDir); err != nil {
		return "", err
	}
	if opts.IncludeConfig && settings != nil {
		if err := writeConfigDump(tmpDir, settings); err != nil {
			return "", err
		}
	}
	if opts.IncludeSnapshot && collector != nil {
		if err := writeSnapshot(tmpDir, collector); err != nil {
			return "", err
		}
	}
	if opts.IncludeLogs && settings != nil && settings.Main.Log.Enabled {
		// Best effort: a missing or unreadable log is not worth failing
		// the whole collection over.
		_ = writeLogTail(tmpDir, settings.Main.Log.Path)
	}

	outDir := opts.OutputDir
	if outDir == "" {
		if configPath, err := conf.FindConfigFile(); err == nil {
			outDir = filepath.Dir(configPath)
		} else {
			outDir = "."
		}
	}
	zipPath := filepath.Join(outDir, fmt.Sprintf("selimcam-support-%s.zip", uuid.New().String()))
	if err := zipDirectory(tmpDir, zipPath); err != nil {
		return "", fmt.Errorf("failed to compress support bundle: %w", err)
	}
	return zipPath, nil
}

func writeSystemInfo(dir string) error {
	f, err := os.Create(filepath.Join(dir, "system.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "collected: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(f, "go: %s %s/%s cpus=%d\n", runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	if info, err := host.Info(); err == nil {
		fmt.Fprintf(f, "host: %s %s %s kernel=%s arch=%s uptime=%ds\n",
			info.OS, info.Platform, info.PlatformVersion, info.KernelVersion, info.KernelArch, info.Uptime)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(f, "memory: total=%dMB available=%dMB used=%.1f%%\n",
			vm.Total/(1<<20), vm.Available/(1<<20), vm.UsedPercent)
	}
	return nil
}

// writeConfigDump serializes the live settings as YAML. The appliance
// configuration carries no credentials, but the instance name still gets
// masked so bundles can be shared without identifying the household.
func writeConfigDump(dir string, settings *conf.Settings) error {
	redacted := *settings
	if redacted.Main.Name != "" {
		redacted.Main.Name = "[redacted]"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644)
}

func writeSnapshot(dir string, collector *Collector) error {
	snap := collector.Snapshot()
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize diagnostics snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "diagnostics.json"), data, 0o644)
}

func writeLogTail(dir, logPath string) error {
	src, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	if info.Size() > logTailBytes {
		if _, err := src.Seek(-logTailBytes, io.SeekEnd); err != nil {
			return err
		}
	}
	dst, err := os.Create(filepath.Join(dir, "log-tail.txt"))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func zipDirectory(srcDir, zipPath string) error {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	w := zip.NewWriter(zipFile)
	defer w.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		entry, err := w.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(entry, f)
		return err
	})
}
