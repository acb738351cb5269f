// Package benchmark implements latency micro-benchmarks used to validate
// that a board meets the appliance's timing budget before deployment.
package benchmark

import (
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"

	"github.com/insolesplug-ops/selimcam/internal/conf"
	"github.com/insolesplug-ops/selimcam/internal/events"
	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/input"
)

// iterations per benchmark. Small enough to finish in seconds on a
// quad-core SBC, large enough to average out scheduler noise.
const defaultIterations = 100_000

// Command creates the benchmark command.
func Command(settings *conf.Settings) *cobra.Command {
	var iterations int

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run frame pool, decode, and event bus micro-benchmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 {
				return fmt.Errorf("iterations must be positive, got %d", iterations)
			}
			printCPUHeader()

			if err := benchmarkFramePool(settings, iterations); err != nil {
				return err
			}
			benchmarkQuadrature(iterations)
			benchmarkEdgeRing(iterations)
			if err := benchmarkBus(iterations); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", defaultIterations, "iterations per benchmark")
	return cmd
}

func printCPUHeader() {
	fmt.Printf("CPU: %s\n", cpuid.CPU.BrandName)
	fmt.Printf("Cores: %d physical, %d logical\n", cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores)
	if cpuid.CPU.VendorString != "" {
		fmt.Printf("Vendor: %s\n", cpuid.CPU.VendorString)
	}
	fmt.Println()
}

func report(name string, iterations int, elapsed time.Duration) {
	perOp := elapsed / time.Duration(iterations)
	fmt.Printf("%-28s %10d ops  %12v total  %10v/op\n", name, iterations, elapsed.Round(time.Millisecond), perOp)
}

// benchmarkFramePool measures one full producer/consumer slot cycle:
// acquire, publish, lease, release. This is the per-frame overhead the
// 30 FPS preview pays on top of the actual pixel work.
func benchmarkFramePool(settings *conf.Settings, iterations int) error {
	pool, err := framebuf.NewPool(framebuf.Config{
		Slots:       settings.Preview.BufferCount,
		Width:       settings.Preview.Width,
		Height:      settings.Preview.Height,
		PixelFormat: settings.Preview.PixelFormat,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	for n := 0; n < iterations; n++ {
		ws, err := pool.AcquireForWrite()
		if err != nil {
			return err
		}
		frame := ws.Publish(framebuf.FrameMeta{CapturedAt: time.Now()})
		lease, err := pool.Lease(frame)
		if err != nil {
			return err
		}
		lease.Release()
	}
	report("frame pool cycle", iterations, time.Since(start))
	return nil
}

func benchmarkQuadrature(iterations int) {
	// One clockwise Gray cycle, repeated.
	states := [][2]bool{{false, true}, {true, true}, {true, false}, {false, false}}

	var q input.Quadrature
	start := time.Now()
	for i := 0; i < iterations; i++ {
		s := states[i%len(states)]
		q.Apply(s[0], s[1])
	}
	report("quadrature decode", iterations, time.Since(start))
}

func benchmarkEdgeRing(iterations int) {
	ring := input.NewEdgeRing(input.DefaultRingCapacity)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		ring.Push(input.Edge{Line: input.LineA, Nanos: int64(i)})
		ring.Pop()
	}
	report("edge ring push/pop", iterations, time.Since(start))
}

func benchmarkBus(iterations int) error {
	bus := events.NewBus(events.Config{QueueSize: 256})
	sub, err := bus.Subscribe("bench", 256, events.TopicInput)
	if err != nil {
		return err
	}
	bus.Start()

	var wg sync.WaitGroup
	received := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range sub.Events() {
			received++
		}
	}()

	start := time.Now()
	for i := 0; i < iterations; i++ {
		bus.Publish(events.EncoderTick{Position: int64(i)})
	}
	elapsed := time.Since(start)

	if err := bus.Close(5 * time.Second); err != nil {
		return err
	}
	wg.Wait()

	report("bus publish/deliver", iterations, elapsed)
	fmt.Printf("%-28s %10d delivered, %d dropped\n", "", received, iterations-received)
	return nil
}
