// Package monitor samples engine status on an interval and hands each sample
// to the configured sinks.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = 10 * time.Second

// Measurement is the influx measurement status samples are written as.
const Measurement = "engine_status"

// PointWriter accepts performance points.
type PointWriter interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Status is one sample of engine health.
type Status struct {
	Time       time.Time `json:"time"`
	OpenViews  int64     `json:"openViews"`
	Goroutines int       `json:"goroutines"`
	HeapAlloc  uint64    `json:"heapAllocBytes"`
	Uptime     float64   `json:"uptimeSeconds"`
}

// Point converts the sample to an influx point tagged with host.
func (s Status) Point(host string) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(Measurement,
		map[string]string{"host": host},
		map[string]any{
			"openViews":  s.OpenViews,
			"goroutines": s.Goroutines,
			"heapAlloc":  s.HeapAlloc,
			"uptime":     s.Uptime,
		},
		s.Time,
	)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	OpenViews  func() int64
	Points     PointWriter // optional
	StatusFile string      // optional, rewritten on every sample
	Interval   time.Duration
	Logger     *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps    Dependencies
	host    string
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	done      chan struct{}
	last      Status
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.OpenViews == nil {
		deps.OpenViews = func() int64 { return 0 }
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Service{deps: deps, host: host, started: time.Now()}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent sample.
func (s *Service) Last() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Sample collects the current status without recording it.
func (s *Service) Sample() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := time.Now()
	return Status{
		Time:       now,
		OpenViews:  s.deps.OpenViews(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		Uptime:     now.Sub(s.started).Seconds(),
	}
}

// Record samples once and writes the sample to every sink.
func (s *Service) Record(ctx context.Context) Status {
	st := s.Sample()

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Points != nil {
		if err := s.deps.Points.WritePoint(ctx, st.Point(s.host)); err != nil {
			s.deps.Logger.Error("Error writing status point", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Record(ctx)
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	select {
	case <-stop:
	default:
		close(stop)
	}
	s.mu.Unlock()
	<-done
}
