// Package telemetry merges pushed aircraft telemetry into the live-drone
// collection of one mission view.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/tacmap/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrAlreadyOpen is returned by a second Open on the same bridge.
	ErrAlreadyOpen = errors.New("telemetry subscription already opened")
	// ErrNoChannel is returned when the bridge has no channel to subscribe to.
	ErrNoChannel = errors.New("no telemetry channel configured")
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithSequenceGuard drops a record whose Seq is not newer than the stored
// record's, when both are sequenced.
func WithSequenceGuard(on bool) Option {
	return func(b *Bridge) {
		b.guard = on
	}
}

// WithLastKnown writes every applied record through to lk and seeds the
// bridge on Open from the serials returned by fleet.
func WithLastKnown(lk LastKnown, fleet func() []string) Option {
	return func(b *Bridge) {
		b.lastKnown = lk
		b.fleet = fleet
	}
}

// WithOnUpdate registers a callback run after each applied record.
func WithOnUpdate(fn func(core.TelemetryRecord)) Option {
	return func(b *Bridge) {
		b.onUpdate = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// Bridge owns one subscription and the live-drone collection it feeds.
// Records are upserted by serial and never removed.
type Bridge struct {
	channel   Channel
	lastKnown LastKnown
	fleet     func() []string
	onUpdate  func(core.TelemetryRecord)
	guard     bool
	logger    *slog.Logger

	applied metric.Int64Counter
	stale   metric.Int64Counter

	mu      sync.RWMutex
	topic   string
	sub     Subscription
	opened  bool
	closed  bool
	records []core.TelemetryRecord
	index   map[string]int
}

// NewBridge creates a bridge over ch. ch may be nil, in which case Open fails.
func NewBridge(ch Channel, opts ...Option) *Bridge {
	b := &Bridge{
		channel: ch,
		logger:  slog.Default(),
		index:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}

	m := meter()
	var err error
	b.applied, err = m.Int64Counter(
		"telemetry.records.applied",
		metric.WithDescription("Telemetry records merged into the live collection"),
	)
	if err != nil {
		b.logger.Warn("Failed to create applied counter", "error", err)
	}
	b.stale, err = m.Int64Counter(
		"telemetry.records.stale",
		metric.WithDescription("Telemetry records dropped by the sequence guard"),
	)
	if err != nil {
		b.logger.Warn("Failed to create stale counter", "error", err)
	}
	return b
}

// Open subscribes to the mission's topic. It may be called once per bridge;
// a failed subscribe is not retried and leaves the live collection empty.
func (b *Bridge) Open(ctx context.Context, missionID string) error {
	b.mu.Lock()
	if b.opened {
		b.mu.Unlock()
		return ErrAlreadyOpen
	}
	b.opened = true
	b.topic = missionID
	b.mu.Unlock()

	b.seed(ctx)

	if b.channel == nil {
		return &core.SubscriptionFailure{Topic: missionID, Err: ErrNoChannel}
	}
	sub, err := b.channel.Subscribe(ctx, missionID, func(rec core.TelemetryRecord) {
		b.Apply(rec)
	})
	if err != nil {
		b.logger.Error("Failed to subscribe to telemetry", "topic", missionID, "error", err)
		return &core.SubscriptionFailure{Topic: missionID, Err: err}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		// closed while subscribing
		_ = sub.Unsubscribe()
		return nil
	}
	b.sub = sub
	b.mu.Unlock()

	b.logger.Debug("Telemetry subscription open", "topic", missionID)
	return nil
}

func (b *Bridge) seed(ctx context.Context) {
	if b.lastKnown == nil || b.fleet == nil {
		return
	}
	serials := b.fleet()
	if len(serials) == 0 {
		return
	}
	recs, err := b.lastKnown.Get(ctx, serials)
	if err != nil {
		b.logger.Warn("Failed to read last known telemetry", "error", err)
		return
	}
	for _, rec := range recs {
		b.apply(rec)
	}
	b.logger.Debug("Seeded live drones", "count", len(recs))
}

// Apply upserts rec by serial. It returns false when the record was dropped,
// either by the sequence guard or because the bridge is closed.
func (b *Bridge) Apply(rec core.TelemetryRecord) bool {
	if !b.apply(rec) {
		return false
	}
	if b.lastKnown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := b.lastKnown.Put(ctx, rec); err != nil {
			b.logger.Warn("Failed to store last known telemetry", "serial", rec.Serial, "error", err)
		}
		cancel()
	}
	if b.onUpdate != nil {
		b.onUpdate(rec)
	}
	return true
}

func (b *Bridge) apply(rec core.TelemetryRecord) bool {
	if rec.Serial == "" {
		return false
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if i, ok := b.index[rec.Serial]; ok {
		prev := b.records[i]
		if b.guard && prev.Seq != 0 && rec.Seq != 0 && rec.Seq <= prev.Seq {
			b.mu.Unlock()
			b.count(b.stale, rec.Serial)
			return false
		}
		b.records[i] = rec
	} else {
		b.index[rec.Serial] = len(b.records)
		b.records = append(b.records, rec)
	}
	b.mu.Unlock()

	b.count(b.applied, rec.Serial)
	return true
}

func (b *Bridge) count(c metric.Int64Counter, serial string) {
	if c == nil {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("serial", serial)))
}

// Drones returns the live records in first-seen order.
func (b *Bridge) Drones() []core.TelemetryRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.TelemetryRecord(nil), b.records...)
}

// Drone returns the live record for serial.
func (b *Bridge) Drone(serial string) (core.TelemetryRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[serial]
	if !ok {
		return core.TelemetryRecord{}, false
	}
	return b.records[i], true
}

// Len returns the number of tracked aircraft.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Close releases the subscription. Records arriving afterwards are dropped.
// Calling Close more than once is a no-op.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	sub, topic := b.sub, b.topic
	b.sub = nil
	b.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		b.logger.Warn("Failed to release telemetry subscription", "topic", topic, "error", err)
		return err
	}
	return nil
}
