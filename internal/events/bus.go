package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

// MetricsRecorder receives bus activity for the observability layer. A nil
// recorder is replaced with a no-op.
type MetricsRecorder interface {
	EventPublished(topic string)
	EventDropped(topic, subscriber string)
}

type noopMetrics struct{}

func (noopMetrics) EventPublished(string)       {}
func (noopMetrics) EventDropped(string, string) {}

// Config controls bus construction.
type Config struct {
	// QueueSize is the default per-subscriber queue depth.
	QueueSize int
	// Logger receives bus lifecycle and misuse logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives publish and drop counts. Optional.
	Metrics MetricsRecorder
}

// DefaultQueueSize is used when Config.QueueSize is not positive.
const DefaultQueueSize = 64

// SubscriberStats describes one subscription's delivery counters. Sent
// counts events placed on the queue; Dropped counts events that will never
// reach the consumer, whether evicted from the queue or refused outright.
// consumed + Dropped equals the number published on the subscribed topics.
type SubscriberStats struct {
	Name    string
	Queued  int
	Sent    uint64
	Dropped uint64
}

// TopicStats describes one topic's publish counters.
type TopicStats struct {
	Published uint64
	Dropped   uint64
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published   uint64
	Dropped     uint64
	PerTopic    map[Topic]TopicStats
	Subscribers []SubscriberStats
}

// Subscription is one registered consumer. Events arrive on the channel
// returned by Events in per-topic publish order.
type Subscription struct {
	name    string
	topics  []Topic
	ch      chan Envelope
	sent    atomic.Uint64
	dropped atomic.Uint64
	closed  bool // guarded by the owning bus's mu
}

// Events returns the delivery channel. It is closed when the bus closes.
func (s *Subscription) Events() <-chan Envelope { return s.ch }

// Name returns the subscriber name given at registration.
func (s *Subscription) Name() string { return s.name }

// Stats returns this subscription's delivery counters.
func (s *Subscription) Stats() SubscriberStats {
	return SubscriberStats{
		Name:    s.name,
		Queued:  len(s.ch),
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
	}
}

// topicState holds the per-topic registry, counters, and ordering lock.
type topicState struct {
	mu        sync.Mutex // serializes publishes on this topic
	seq       uint64     // guarded by mu
	published atomic.Uint64
	dropped   atomic.Uint64
	subs      atomic.Pointer[[]*Subscription]
}

// Bus routes typed events between components. Subscriptions are registered
// during setup only; steady-state publishing touches no registry lock.
type Bus struct {
	logger  *slog.Logger
	metrics MetricsRecorder

	queueSize int
	topics    map[Topic]*topicState

	mu      sync.Mutex // guards subscriptions and channel close
	subs    []*Subscription
	started atomic.Bool
	closed  atomic.Bool
}

// NewBus creates a bus routing the closed topic set.
func NewBus(cfg Config) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	topics := make(map[Topic]*topicState, len(Topics))
	for _, t := range Topics {
		st := &topicState{}
		empty := make([]*Subscription, 0)
		st.subs.Store(&empty)
		topics[t] = st
	}

	return &Bus{
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		queueSize: cfg.QueueSize,
		topics:    topics,
	}
}

// Subscribe registers a consumer for the given topics. queue <= 0 uses the
// bus default. Subscribe is a setup-time operation: it fails once Start has
// been called so the hot delivery path never contends with registration.
func (b *Bus) Subscribe(name string, queue int, topics ...Topic) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.Newf("subscriber %s requested no topics", name).
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}
	if b.started.Load() {
		return nil, errors.Newf("subscriber %s registered after bus start", name).
			Component("events").
			Category(errors.CategoryState).
			Build()
	}
	if queue <= 0 {
		queue = b.queueSize
	}

	sub := &Subscription{
		name:   name,
		topics: topics,
		ch:     make(chan Envelope, queue),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return nil, errors.Newf("subscriber %s registered on closed bus", name).
			Component("events").
			Category(errors.CategoryState).
			Build()
	}

	for _, t := range topics {
		st, ok := b.topics[t]
		if !ok {
			return nil, errors.Newf("unknown topic %q", t).
				Component("events").
				Category(errors.CategoryValidation).
				Build()
		}
		st.mu.Lock()
		current := *st.subs.Load()
		next := make([]*Subscription, len(current), len(current)+1)
		copy(next, current)
		next = append(next, sub)
		st.subs.Store(&next)
		st.mu.Unlock()
	}

	b.subs = append(b.subs, sub)
	b.logger.Debug("subscriber registered", "name", name, "topics", topics, "queue", queue)
	return sub, nil
}

// Start marks the end of the registration phase.
func (b *Bus) Start() {
	b.started.Store(true)
}

// Publish stamps and delivers the payload to every subscriber of its topic.
// It never blocks. The return value reports whether the bus accepted the
// event; a closed bus or unknown topic returns false.
func (b *Bus) Publish(p Payload) bool {
	if b.closed.Load() {
		return false
	}
	st, ok := b.topics[p.EventTopic()]
	if !ok {
		b.logger.Error("publish on unknown topic", "topic", p.EventTopic())
		return false
	}

	st.mu.Lock()
	if b.closed.Load() {
		st.mu.Unlock()
		return false
	}
	st.seq++
	env := Envelope{
		Topic:   p.EventTopic(),
		At:      time.Now(),
		Seq:     st.seq,
		Payload: p,
	}
	for _, s := range *st.subs.Load() {
		b.deliver(s, env)
	}
	st.mu.Unlock()

	st.published.Add(1)
	b.metrics.EventPublished(string(env.Topic))
	return true
}

// deliver enqueues non-blocking with drop-oldest backpressure. The caller
// holds the topic lock of the envelope being delivered.
func (b *Bus) deliver(s *Subscription, env Envelope) {
	select {
	case s.ch <- env:
		s.sent.Add(1)
		return
	default:
	}

	// Queue full: evict the oldest entry, then retry once. The newest event
	// is the one the latency budget cares about.
	select {
	case old := <-s.ch:
		b.countDrop(s, old.Topic)
	default:
	}
	select {
	case s.ch <- env:
		s.sent.Add(1)
	default:
		// Consumer raced the eviction and refilled the queue.
		b.countDrop(s, env.Topic)
	}
}

func (b *Bus) countDrop(s *Subscription, t Topic) {
	s.dropped.Add(1)
	if st, ok := b.topics[t]; ok {
		st.dropped.Add(1)
	}
	b.metrics.EventDropped(string(t), s.name)
}

// Close stops the bus. It waits up to drain for queued events to be
// consumed, then closes every subscription channel. Publishing after Close
// returns false. Close is idempotent.
func (b *Bus) Close(drain time.Duration) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Give consumers a bounded chance to drain their queues. Queued events
	// stay readable after the channels close; this only avoids racing
	// consumers that still want ordered hand-off before teardown.
	deadline := time.Now().Add(drain)
	for drain > 0 && b.queued() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Hold every topic lock while closing so no publisher is mid-enqueue.
	// Topics lock in declaration order, so there is a single lock order.
	for _, t := range Topics {
		b.topics[t].mu.Lock()
	}
	for _, s := range b.subs {
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
	for i := len(Topics) - 1; i >= 0; i-- {
		b.topics[Topics[i]].mu.Unlock()
	}

	b.logger.Debug("event bus closed", "subscribers", len(b.subs))
	return nil
}

func (b *Bus) queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, s := range b.subs {
		total += len(s.ch)
	}
	return total
}

// GetStats returns a snapshot of bus counters.
func (b *Bus) GetStats() Stats {
	b.mu.Lock()
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	stats := Stats{PerTopic: make(map[Topic]TopicStats, len(b.topics))}
	for _, s := range subs {
		ss := s.Stats()
		stats.Subscribers = append(stats.Subscribers, ss)
	}
	for t, st := range b.topics {
		ts := TopicStats{
			Published: st.published.Load(),
			Dropped:   st.dropped.Load(),
		}
		stats.PerTopic[t] = ts
		stats.Published += ts.Published
		stats.Dropped += ts.Dropped
	}
	return stats
}
