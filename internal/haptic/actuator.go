// Package haptic turns decoded input and scene events into tactile
// feedback. A controller subscribes to the event bus, shapes detent
// amplitude from encoder velocity, and drives a register-addressed
// actuator through a bounded-retry driver that degrades instead of
// blocking the input path.
package haptic

import (
	"math"
	"time"
)

// RegisterBus is the write side of a register-addressed actuator device.
// Implementations live in the hardware package; tests use recording fakes.
type RegisterBus interface {
	WriteRegister(reg, value byte) error
	Close() error
}

// Effect identifies a waveform in the actuator's built-in library. The
// ids follow the DRV2605 ROM library numbering.
type Effect byte

const (
	EffectNone            Effect = 0 // sequence terminator
	EffectLightClick      Effect = 1
	EffectSoftBump        Effect = 2
	EffectSharpClick      Effect = 4
	EffectStrongClick     Effect = 9
	EffectDoubleClick     Effect = 12
	EffectShortDoubleTap  Effect = 14
	EffectBuzz            Effect = 16
	EffectTransitionClick Effect = 19
	EffectTransitionHum   Effect = 20
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectLightClick:
		return "light_click"
	case EffectSoftBump:
		return "soft_bump"
	case EffectSharpClick:
		return "sharp_click"
	case EffectStrongClick:
		return "strong_click"
	case EffectDoubleClick:
		return "double_click"
	case EffectShortDoubleTap:
		return "short_double_tap"
	case EffectBuzz:
		return "buzz"
	case EffectTransitionClick:
		return "transition_click"
	case EffectTransitionHum:
		return "transition_hum"
	default:
		return "effect"
	}
}

// Pattern is a semantic feedback request. Each pattern owns a ladder of
// library effects ordered weakest to strongest; the clamped command
// amplitude selects the rung.
type Pattern string

const (
	PatternDetent      Pattern = "detent"
	PatternClickDown   Pattern = "click_down"
	PatternClickUp     Pattern = "click_up"
	PatternLongPress   Pattern = "long_press"
	PatternSceneChange Pattern = "scene_change"
	PatternShutter     Pattern = "shutter"
	PatternSuccess     Pattern = "success"
	PatternError       Pattern = "error"
)

// patternSpec binds a pattern to its effect ladder and nominal duration.
type patternSpec struct {
	levels   []Effect // weakest first
	duration time.Duration
}

// patternTable is the closed dispatch set. Durations are the library's
// nominal playback times, carried for diagnostics and command validation.
var patternTable = map[Pattern]patternSpec{
	PatternDetent:      {levels: []Effect{EffectSoftBump, EffectLightClick, EffectSharpClick}, duration: 15 * time.Millisecond},
	PatternClickDown:   {levels: []Effect{EffectSharpClick}, duration: 15 * time.Millisecond},
	PatternClickUp:     {levels: []Effect{EffectLightClick}, duration: 10 * time.Millisecond},
	PatternLongPress:   {levels: []Effect{EffectTransitionHum}, duration: 25 * time.Millisecond},
	PatternSceneChange: {levels: []Effect{EffectTransitionClick}, duration: 15 * time.Millisecond},
	PatternShutter:     {levels: []Effect{EffectStrongClick}, duration: 30 * time.Millisecond},
	PatternSuccess:     {levels: []Effect{EffectDoubleClick}, duration: 80 * time.Millisecond},
	PatternError:       {levels: []Effect{EffectBuzz}, duration: 40 * time.Millisecond},
}

// Command is one actuation request. Amplitude is clamped to 0.0..1.0
// before transmission; Duration is never negative.
type Command struct {
	Pattern   Pattern
	Amplitude float64
	Duration  time.Duration
}

// NewCommand builds a command with the amplitude clamped and the
// pattern's nominal duration filled in.
func NewCommand(p Pattern, amplitude float64) Command {
	spec, ok := patternTable[p]
	if !ok {
		spec = patternTable[PatternClickDown]
	}
	return Command{
		Pattern:   p,
		Amplitude: clamp01(amplitude),
		Duration:  spec.duration,
	}
}

// resolveEffect selects the ladder rung for the command's amplitude.
// A higher amplitude never selects a weaker effect.
func resolveEffect(cmd Command) Effect {
	spec, ok := patternTable[cmd.Pattern]
	if !ok || len(spec.levels) == 0 {
		return EffectSharpClick
	}
	if len(spec.levels) == 1 {
		return spec.levels[0]
	}
	idx := int(math.Round(clamp01(cmd.Amplitude) * float64(len(spec.levels)-1)))
	if idx >= len(spec.levels) {
		idx = len(spec.levels) - 1
	}
	return spec.levels[idx]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
