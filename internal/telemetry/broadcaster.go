package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/tacmap/internal/queue"
	"github.com/OCAP2/tacmap/pkg/core"
)

// ErrBroadcasterClosed is returned by Subscribe after Close.
var ErrBroadcasterClosed = errors.New("broadcaster closed")

// Broadcaster is an in-process Channel. Each subscriber keeps only the
// newest undelivered record per serial, drained by its own goroutine. When
// more than bufferSize serials are pending the oldest one is discarded.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	topics      map[uint64]string
	nextID      atomic.Uint64
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

type subscriber struct {
	mu      sync.Mutex
	latest  map[string]core.TelemetryRecord
	order   *queue.Queue[string]
	limit   int
	wake    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

// push replaces any pending record for the same serial.
func (s *subscriber) push(rec core.TelemetryRecord) {
	s.mu.Lock()
	if _, pending := s.latest[rec.Serial]; pending {
		s.dropped.Add(1)
	} else {
		if s.order.Len() >= s.limit {
			if oldest, ok := s.order.Pop(); ok {
				delete(s.latest, oldest)
				s.dropped.Add(1)
			}
		}
		s.order.Push(rec.Serial)
	}
	s.latest[rec.Serial] = rec
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (core.TelemetryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	serial, ok := s.order.Pop()
	if !ok {
		return core.TelemetryRecord{}, false
	}
	rec := s.latest[serial]
	delete(s.latest, serial)
	return rec, true
}

// NewBroadcaster creates a broadcaster whose subscribers hold up to bufferSize pending serials.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
		topics:      make(map[uint64]string),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers h for topic.
func (b *Broadcaster) Subscribe(_ context.Context, topic string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBroadcasterClosed
	}

	id := b.nextID.Add(1)
	s := &subscriber{
		latest: make(map[string]core.TelemetryRecord),
		order:  queue.New[string](),
		limit:  b.bufferSize,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.subscribers[id] = s
	b.topics[id] = topic

	go func() {
		defer close(s.done)
		for range s.wake {
			for rec, ok := s.pop(); ok; rec, ok = s.pop() {
				h(rec)
			}
		}
	}()

	return &broadcastSub{b: b, id: id}, nil
}

// Publish queues rec for every subscriber of topic and returns how many there were.
func (b *Broadcaster) Publish(topic string, rec core.TelemetryRecord) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for id, s := range b.subscribers {
		if b.topics[id] != topic {
			continue
		}
		s.push(rec)
		n++
	}
	return n
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription and waits for their handlers to return.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subscribers))
	for id, s := range b.subscribers {
		close(s.wake)
		subs = append(subs, s)
		delete(b.subscribers, id)
		delete(b.topics, id)
	}
	b.mu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	s, ok := b.subscribers[id]
	if ok {
		close(s.wake)
		delete(b.subscribers, id)
		delete(b.topics, id)
	}
	b.mu.Unlock()

	if ok {
		<-s.done
	}
}

type broadcastSub struct {
	b    *Broadcaster
	id   uint64
	once sync.Once
}

// Unsubscribe stops delivery and waits for the handler goroutine to exit.
func (s *broadcastSub) Unsubscribe() error {
	s.once.Do(func() { s.b.unsubscribe(s.id) })
	return nil
}
