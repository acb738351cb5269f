package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' by default, got '%s'", ee.Category)
	}

	if ee.GetTimestamp().IsZero() {
		t.Error("Expected timestamp to be set on Build")
	}
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	ee := Newf("slot %d busy", 2).
		Component("framebuf").
		Category(CategoryFramePool).
		Context("slot", 2).
		Priority(PriorityLow).
		Build()

	if got := ee.GetComponent(); got != "framebuf" {
		t.Errorf("Expected component 'framebuf', got '%s'", got)
	}
	if ee.Category != CategoryFramePool {
		t.Errorf("Expected category 'frame-pool', got '%s'", ee.Category)
	}
	if ee.GetPriority() != PriorityLow {
		t.Errorf("Expected priority 'low', got '%s'", ee.GetPriority())
	}
	ctx := ee.GetContext()
	if ctx["slot"] != 2 {
		t.Errorf("Expected context slot=2, got %v", ctx["slot"])
	}
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Priority("urgent").Build()
	if ee.GetPriority() != PriorityMedium {
		t.Errorf("Expected invalid priority to fall back to 'medium', got '%s'", ee.GetPriority())
	}
}

func TestTimingContext(t *testing.T) {
	t.Parallel()

	ee := Newf("register write failed").
		Timing("waveform-select", 42*time.Millisecond).
		Build()

	ctx := ee.GetContext()
	if ctx["operation"] != "waveform-select" {
		t.Errorf("Expected operation context, got %v", ctx["operation"])
	}
	if ctx["duration_ms"] != int64(42) {
		t.Errorf("Expected duration_ms 42, got %v", ctx["duration_ms"])
	}
}

func TestUnwrapPreservesSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("device gone")
	wrapped := New(fmt.Errorf("probe: %w", sentinel)).
		Category(CategoryHardware).
		Build()

	if !Is(wrapped, sentinel) {
		t.Error("Expected errors.Is to find the wrapped sentinel")
	}
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	ee := Newf("pool exhausted").Category(CategoryResource).Build()
	wrapped := fmt.Errorf("acquire: %w", ee)

	if !IsCategory(wrapped, CategoryResource) {
		t.Error("Expected IsCategory to match through wrapping")
	}
	if IsCategory(wrapped, CategoryTimeout) {
		t.Error("Expected IsCategory to reject a different category")
	}
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Context("pin", 17).Build()
	ctx := ee.GetContext()
	ctx["pin"] = 99

	if ee.GetContext()["pin"] != 17 {
		t.Error("Expected GetContext to return an isolated copy")
	}
}

func TestHelperConstructors(t *testing.T) {
	t.Parallel()

	ee := ValidationError("fps out of range")
	if ee.Category != CategoryValidation {
		t.Errorf("Expected validation category, got '%s'", ee.Category)
	}

	he := HardwareError(NewStd("nak"), "drv2605")
	if he.Category != CategoryHardware {
		t.Errorf("Expected hardware category, got '%s'", he.Category)
	}
	if he.GetContext()["device"] != "drv2605" {
		t.Errorf("Expected device context, got %v", he.GetContext()["device"])
	}
}
