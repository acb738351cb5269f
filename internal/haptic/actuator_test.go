package haptic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCommandClampsAmplitude(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, NewCommand(PatternDetent, -0.5).Amplitude)
	assert.Equal(t, 1.0, NewCommand(PatternDetent, 3.0).Amplitude)
	assert.Equal(t, 0.4, NewCommand(PatternDetent, 0.4).Amplitude)
}

func TestNewCommandFillsNominalDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Millisecond, NewCommand(PatternShutter, 1.0).Duration)
	assert.Equal(t, 80*time.Millisecond, NewCommand(PatternSuccess, 1.0).Duration)
}

func TestResolveEffectSingleRungIgnoresAmplitude(t *testing.T) {
	t.Parallel()

	assert.Equal(t, EffectBuzz, resolveEffect(NewCommand(PatternError, 0.0)))
	assert.Equal(t, EffectBuzz, resolveEffect(NewCommand(PatternError, 1.0)))
}

func TestEffectNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "strong_click", EffectStrongClick.String())
	assert.Equal(t, "soft_bump", EffectSoftBump.String())
	assert.Equal(t, "effect", Effect(99).String())
}
