// Package snapshot captures the visible map region as a PNG and stores it
// against the mission.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/tacmap/internal/storage"
	"github.com/OCAP2/tacmap/pkg/core"
)

const (
	DefaultSettleDelay = 600 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
	ContentType        = "image/png"
)

var (
	// ErrCaptureInProgress is returned when a capture is requested while another runs.
	ErrCaptureInProgress = errors.New("capture already in progress")
	// ErrEmptyImage is returned when the host produced no image.
	ErrEmptyImage = errors.New("rasterizer returned no image")
)

// Options tell the host what to rasterize.
type Options struct {
	ExcludeChrome bool `json:"excludeChrome"`
}

// Rasterizer renders the host's current map viewport.
type Rasterizer interface {
	Rasterize(ctx context.Context, opts Options) (image.Image, error)
}

// BlobStore persists encoded images and returns their public reference.
type BlobStore interface {
	Store(ctx context.Context, missionID string, data []byte, contentType string) (string, error)
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithSettleDelay sets how long to wait for in-flight map rendering.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Capturer) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// WithTimeout bounds one whole capture.
func WithTimeout(d time.Duration) Option {
	return func(c *Capturer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRecorder records every stored reference in the mission's snapshot history.
func WithRecorder(r storage.SnapshotRecorder) Option {
	return func(c *Capturer) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) {
		c.logger = l
	}
}

// Capturer runs at most one capture at a time.
type Capturer struct {
	raster   Rasterizer
	blobs    BlobStore
	recorder storage.SnapshotRecorder
	settle   time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	busy atomic.Bool
}

// New creates a capturer over a host rasterizer and a blob store.
func New(raster Rasterizer, blobs BlobStore, opts ...Option) *Capturer {
	c := &Capturer{
		raster:  raster,
		blobs:   blobs,
		settle:  DefaultSettleDelay,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InProgress reports whether a capture is running.
func (c *Capturer) InProgress() bool {
	return c.busy.Load()
}

// Capture waits for the map to settle, rasterizes it without controls,
// encodes PNG and stores it under missionID. It returns the stored image's
// public reference. Failures are *core.CaptureFailure and are not retried.
func (c *Capturer) Capture(ctx context.Context, missionID string) (string, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrCaptureInProgress
	}
	defer c.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	fail := func(stage string, err error) (string, error) {
		c.logger.Warn("Snapshot capture failed", "mission", missionID, "stage", stage, "error", err)
		return "", &core.CaptureFailure{MissionID: missionID, Stage: stage, Err: err}
	}

	if c.settle > 0 {
		t := time.NewTimer(c.settle)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fail("settle", ctx.Err())
		}
	}

	img, err := c.raster.Rasterize(ctx, Options{ExcludeChrome: true})
	if err != nil {
		return fail("rasterize", err)
	}
	if img == nil || img.Bounds().Empty() {
		return fail("rasterize", ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fail("encode", err)
	}

	ref, err := c.blobs.Store(ctx, missionID, buf.Bytes(), ContentType)
	if err != nil {
		return fail("store", err)
	}

	if c.recorder != nil {
		if err := c.recorder.RecordSnapshot(ctx, missionID, ref); err != nil {
			return fail("record", fmt.Errorf("stored as %s: %w", ref, err))
		}
	}

	c.logger.Info("Snapshot captured", "mission", missionID, "ref", ref, "bytes", buf.Len())
	return ref, nil
}
