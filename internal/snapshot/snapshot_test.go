package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/tacmap/internal/storage/memory"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRaster struct {
	img    image.Image
	err    error
	gate   chan struct{}
	called chan struct{}
	opts   []Options
	mu     sync.Mutex
}

func (f *fakeRaster) Rasterize(ctx context.Context, opts Options) (image.Image, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.img, f.err
}

type fakeBlobs struct {
	mu      sync.Mutex
	err     error
	stored  [][]byte
	mission string
	ctype   string
}

func (f *fakeBlobs) Store(_ context.Context, missionID string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, append([]byte(nil), data...))
	f.mission = missionID
	f.ctype = contentType
	return "https://blobs.example/" + missionID + ".png", nil
}

type failingRecorder struct{}

func (failingRecorder) RecordSnapshot(context.Context, string, string) error {
	return errors.New("db down")
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func TestCapture_EncodesAndStores(t *testing.T) {
	raster := &fakeRaster{img: testImage()}
	blobs := &fakeBlobs{}
	rec := memory.New()
	c := New(raster, blobs, WithSettleDelay(0), WithRecorder(rec))

	ref, err := c.Capture(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.example/m1.png", ref)
	assert.Equal(t, []Options{{ExcludeChrome: true}}, raster.opts)
	assert.Equal(t, ContentType, blobs.ctype)
	assert.False(t, c.InProgress())

	require.Len(t, blobs.stored, 1)
	decoded, err := png.Decode(bytes.NewReader(blobs.stored[0]))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), decoded.Bounds())
	r, _, _, _ := decoded.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	snaps := rec.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, ref, snaps[0].Ref)
}

func TestCapture_OverlappingRequestRejected(t *testing.T) {
	raster := &fakeRaster{img: testImage(), gate: make(chan struct{}), called: make(chan struct{}, 1)}
	c := New(raster, &fakeBlobs{}, WithSettleDelay(0))

	done := make(chan error, 1)
	go func() {
		_, err := c.Capture(context.Background(), "m1")
		done <- err
	}()
	<-raster.called
	assert.True(t, c.InProgress())

	_, err := c.Capture(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrCaptureInProgress)

	close(raster.gate)
	require.NoError(t, <-done)
	assert.False(t, c.InProgress())
}

func TestCapture_FailuresClearFlag(t *testing.T) {
	tests := []struct {
		name   string
		raster *fakeRaster
		blobs  *fakeBlobs
		opts   []Option
		stage  string
	}{
		{"rasterize error", &fakeRaster{err: errors.New("gpu lost")}, &fakeBlobs{}, nil, "rasterize"},
		{"nil image", &fakeRaster{}, &fakeBlobs{}, nil, "rasterize"},
		{"empty image", &fakeRaster{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}, &fakeBlobs{}, nil, "rasterize"},
		{"store error", &fakeRaster{img: testImage()}, &fakeBlobs{err: errors.New("denied")}, nil, "store"},
		{"record error", &fakeRaster{img: testImage()}, &fakeBlobs{}, []Option{WithRecorder(failingRecorder{})}, "record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.raster, tt.blobs, append([]Option{WithSettleDelay(0)}, tt.opts...)...)

			ref, err := c.Capture(context.Background(), "m1")
			assert.Empty(t, ref)
			var cf *core.CaptureFailure
			require.ErrorAs(t, err, &cf)
			assert.Equal(t, tt.stage, cf.Stage)
			assert.Equal(t, "m1", cf.MissionID)
			assert.False(t, c.InProgress())
		})
	}
}

func TestCapture_WaitsForSettle(t *testing.T) {
	raster := &fakeRaster{img: testImage()}
	c := New(raster, &fakeBlobs{}, WithSettleDelay(30*time.Millisecond))

	start := time.Now()
	_, err := c.Capture(context.Background(), "m1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestCapture_CancelledDuringSettle(t *testing.T) {
	raster := &fakeRaster{img: testImage()}
	c := New(raster, &fakeBlobs{}, WithSettleDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Capture(ctx, "m1")

	var cf *core.CaptureFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, "settle", cf.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, raster.opts)
}

func TestCapture_Timeout(t *testing.T) {
	raster := &fakeRaster{img: testImage(), gate: make(chan struct{})}
	c := New(raster, &fakeBlobs{}, WithSettleDelay(0), WithTimeout(20*time.Millisecond))

	_, err := c.Capture(context.Background(), "m1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.InProgress())
}
