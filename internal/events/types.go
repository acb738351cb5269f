// Package events provides the in-process event bus that carries decoded
// input, scene, capture, and lifecycle events between the runtime
// components. Topics are a closed set, payloads are typed values, and
// delivery is non-blocking with drop-oldest backpressure.
package events

import (
	"time"
)

// Topic identifies an event stream on the bus.
type Topic string

const (
	// TopicInput carries decoded encoder and button events.
	TopicInput Topic = "input"
	// TopicNavigation carries scene navigation requests.
	TopicNavigation Topic = "navigation"
	// TopicScene carries scene, overlay, filter, and power tier changes.
	TopicScene Topic = "scene"
	// TopicCapture carries still-capture requests and results.
	TopicCapture Topic = "capture"
	// TopicUI carries user-facing toast messages.
	TopicUI Topic = "ui"
	// TopicLifecycle carries shutdown and degradation notices.
	TopicLifecycle Topic = "lifecycle"
)

// Topics lists every topic the bus routes. Subscribing to an unknown topic
// is a programming error surfaced at subscription time.
var Topics = []Topic{TopicInput, TopicNavigation, TopicScene, TopicCapture, TopicUI, TopicLifecycle}

// Payload is implemented by every event type carried on the bus.
type Payload interface {
	EventTopic() Topic
}

// Envelope wraps a payload with its delivery metadata. The timestamp is
// stamped at publish time and carries a monotonic clock reading.
type Envelope struct {
	Topic   Topic
	At      time.Time
	Seq     uint64 // per-topic publish sequence
	Payload Payload
}

// Direction is the rotation sense of an encoder tick.
type Direction int8

const (
	Clockwise        Direction = 1
	CounterClockwise Direction = -1
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Button identifies a physical push input.
type Button string

const (
	ButtonShutter Button = "shutter"
	ButtonEncoder Button = "encoder"
)

// SceneID identifies an application scene.
type SceneID string

const (
	SceneCamera   SceneID = "camera"
	SceneGallery  SceneID = "gallery"
	SceneSettings SceneID = "settings"
)

// FilterID identifies a preview filter. The set is closed; the transform
// implementation lives outside the runtime core.
type FilterID string

const (
	FilterNone     FilterID = "none"
	FilterVintage  FilterID = "vintage"
	FilterBW       FilterID = "bw"
	FilterVivid    FilterID = "vivid"
	FilterPortrait FilterID = "portrait"
)

// Filters lists the preview filters in cycling order.
var Filters = []FilterID{FilterNone, FilterVintage, FilterBW, FilterVivid, FilterPortrait}

// PowerTier is the activity-based preview cadence tier.
type PowerTier string

const (
	TierActive PowerTier = "active"
	TierIdle   PowerTier = "idle"
	TierSleep  PowerTier = "sleep"
)

// EncoderTick is one validated encoder detent.
type EncoderTick struct {
	Direction Direction
	Position  int64   // absolute position after this tick
	Velocity  float64 // smoothed ticks/sec, signless
}

func (EncoderTick) EventTopic() Topic { return TopicInput }

// ButtonDown fires when a debounced press is recognized.
type ButtonDown struct {
	Button Button
}

func (ButtonDown) EventTopic() Topic { return TopicInput }

// ButtonUp fires when a debounced release is recognized. Held is the time
// the button spent pressed.
type ButtonUp struct {
	Button Button
	Held   time.Duration
}

func (ButtonUp) EventTopic() Topic { return TopicInput }

// ButtonLongPress fires once when a press crosses the long-press threshold
// while still held.
type ButtonLongPress struct {
	Button Button
}

func (ButtonLongPress) EventTopic() Topic { return TopicInput }

// Navigate requests a transition to the target scene.
type Navigate struct {
	Target SceneID
}

func (Navigate) EventTopic() Topic { return TopicNavigation }

// SceneChanged fires on every stable scene entry.
type SceneChanged struct {
	From SceneID
	To   SceneID
}

func (SceneChanged) EventTopic() Topic { return TopicScene }

// OverlayToggled fires when the camera info overlay is shown or hidden.
type OverlayToggled struct {
	Visible bool
}

func (OverlayToggled) EventTopic() Topic { return TopicScene }

// FilterChanged fires when the active preview filter changes.
type FilterChanged struct {
	Filter FilterID
}

func (FilterChanged) EventTopic() Topic { return TopicScene }

// PowerTierChanged fires when the activity tier changes. FPS is the preview
// rate the new tier calls for.
type PowerTierChanged struct {
	Tier PowerTier
	FPS  int
}

func (PowerTierChanged) EventTopic() Topic { return TopicScene }

// CaptureRequest asks the photo pipeline to save the next frame.
type CaptureRequest struct {
	Filter FilterID // filter active at request time
}

func (CaptureRequest) EventTopic() Topic { return TopicCapture }

// CaptureSaved reports a completed photo save.
type CaptureSaved struct {
	Path    string
	Elapsed time.Duration
}

func (CaptureSaved) EventTopic() Topic { return TopicCapture }

// CaptureFailed reports a failed photo save.
type CaptureFailed struct {
	Reason string
}

func (CaptureFailed) EventTopic() Topic { return TopicCapture }

// Toast asks the renderer to show a short status message.
type Toast struct {
	Text string
	For  time.Duration
}

func (Toast) EventTopic() Topic { return TopicUI }

// ShutdownRequested starts cooperative shutdown of every component.
type ShutdownRequested struct {
	Reason string
}

func (ShutdownRequested) EventTopic() Topic { return TopicLifecycle }

// SubsystemDegraded reports a component entering or leaving degraded mode.
type SubsystemDegraded struct {
	Subsystem string
	Degraded  bool
}

func (SubsystemDegraded) EventTopic() Topic { return TopicLifecycle }
