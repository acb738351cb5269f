package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/insolesplug-ops/selimcam/internal/conf"
)

// Headroom floors for the target board. The appliance must stay under
// 512 MB resident on a 1 GB board, so less than this much free memory
// means something else is eating the budget.
const (
	minFreeMemoryMB = 128
	minFreeDiskMB   = 256
)

// ProbeResult is one pass/fail hardware or resource check.
type ProbeResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// RunProbes checks the board the appliance is about to run on: input and
// actuator device nodes, memory and disk headroom, and the photo output
// directory. Probes never mutate anything; a failed probe is a report,
// not an error.
func RunProbes(settings *conf.Settings) []ProbeResult {
	results := []ProbeResult{
		probeHost(),
		probeMemory(),
		probeGPIO(),
	}
	if settings != nil {
		if settings.Haptic.Enabled {
			results = append(results, probeI2C(settings.Haptic.Bus))
		}
		results = append(results,
			probeOutputDir(settings.Capture.OutputDir),
			probeDisk(settings.Capture.OutputDir),
		)
	}
	return results
}

func probeHost() ProbeResult {
	info, err := host.Info()
	if err != nil {
		return ProbeResult{Name: "host", OK: false, Detail: err.Error()}
	}
	return ProbeResult{
		Name:   "host",
		OK:     true,
		Detail: fmt.Sprintf("%s %s %s (%s)", info.OS, info.Platform, info.PlatformVersion, info.KernelArch),
	}
}

func probeMemory() ProbeResult {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return ProbeResult{Name: "memory", OK: false, Detail: err.Error()}
	}
	availMB := vm.Available / (1 << 20)
	return ProbeResult{
		Name:   "memory",
		OK:     availMB >= minFreeMemoryMB,
		Detail: fmt.Sprintf("%d MB available of %d MB", availMB, vm.Total/(1<<20)),
	}
}

func probeGPIO() ProbeResult {
	matches, err := filepath.Glob("/dev/gpiochip*")
	if err != nil || len(matches) == 0 {
		return ProbeResult{Name: "gpio", OK: false, Detail: "no gpio character device found"}
	}
	return ProbeResult{Name: "gpio", OK: true, Detail: matches[0]}
}

func probeI2C(busName string) ProbeResult {
	if busName != "" {
		if _, err := os.Stat(busName); err == nil {
			return ProbeResult{Name: "i2c", OK: true, Detail: busName}
		}
		return ProbeResult{Name: "i2c", OK: false, Detail: busName + " not present"}
	}
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil || len(matches) == 0 {
		return ProbeResult{Name: "i2c", OK: false, Detail: "no i2c device node found"}
	}
	return ProbeResult{Name: "i2c", OK: true, Detail: matches[0]}
}

func probeOutputDir(dir string) ProbeResult {
	if dir == "" {
		return ProbeResult{Name: "photo-dir", OK: false, Detail: "output directory not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ProbeResult{Name: "photo-dir", OK: false, Detail: err.Error()}
	}
	probe := filepath.Join(dir, ".selimcam-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return ProbeResult{Name: "photo-dir", OK: false, Detail: "not writable: " + err.Error()}
	}
	_ = os.Remove(probe)
	return ProbeResult{Name: "photo-dir", OK: true, Detail: dir}
}

func probeDisk(dir string) ProbeResult {
	if dir == "" {
		dir = "."
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return ProbeResult{Name: "disk", OK: false, Detail: err.Error()}
	}
	freeMB := usage.Free / (1 << 20)
	return ProbeResult{
		Name:   "disk",
		OK:     freeMB >= minFreeDiskMB,
		Detail: fmt.Sprintf("%d MB free on %s (%.1f%% used)", freeMB, usage.Path, usage.UsedPercent),
	}
}
