// Package hostmap talks to the host mapping surface over a WebSocket. It
// carries draw-tool commands and rasterize requests out and host events in.
package hostmap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/tacmap/internal/draw"
	"github.com/OCAP2/tacmap/internal/snapshot"
	"github.com/OCAP2/tacmap/pkg/streaming"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize     = 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 32 << 20 // rasterized viewports arrive inline
)

var (
	// ErrClosed is returned for sends and requests on a closed connection.
	ErrClosed = errors.New("host connection closed")
	// ErrSendBufferFull is returned when the write loop cannot keep up.
	ErrSendBufferFull = errors.New("host send buffer full")
)

// Conn manages one host WebSocket with a single write goroutine.
type Conn struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan []byte
	done    chan struct{} // closed on shutdown
	closed  bool
	pending map[string]chan streaming.CaptureResultPayload

	drawReady atomic.Bool

	logger *slog.Logger
}

// New wraps an upgraded connection. Call Run to start it.
func New(conn *ws.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		conn:    conn,
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan streaming.CaptureResultPayload),
		logger:  logger,
	}
}

// Run starts the write loop and reads until the connection fails or is
// closed. Every inbound envelope other than capture_result is passed to
// handle on the read goroutine. Run closes the connection before returning.
func (c *Conn) Run(handle func(streaming.Envelope)) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	err := c.readLoop(handle)
	_ = c.Close()
	wg.Wait()
	return err
}

func (c *Conn) readLoop(handle func(streaming.Envelope)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("host read: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed host message", "error", err)
			continue
		}

		if env.Type == streaming.TypeCaptureResult {
			c.resolve(env)
			continue
		}
		handle(env)
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("WebSocket ping failed", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

// Send queues one envelope for the host. It never blocks.
func (c *Conn) Send(msgType string, payload any) error {
	return c.send(msgType, "", payload)
}

func (c *Conn) send(msgType, id string, payload any) error {
	env, err := streaming.NewEnvelope(msgType, id, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		c.logger.Warn("WebSocket send channel full, dropping message", "type", msgType)
		return ErrSendBufferFull
	}
}

// SetDrawReady records whether the host's drawing tools are initialised.
func (c *Conn) SetDrawReady(ready bool) {
	c.drawReady.Store(ready)
}

// Available implements draw.Tools.
func (c *Conn) Available() bool {
	if !c.drawReady.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Enable implements draw.Tools.
func (c *Conn) Enable(tool draw.ToolKind) error {
	return c.Send(streaming.TypeEnableTool, streaming.EnableToolPayload{Tool: string(tool)})
}

// DisableAll implements draw.Tools.
func (c *Conn) DisableAll() error {
	return c.Send(streaming.TypeDisableTools, nil)
}

// RemoveLayer implements draw.Tools.
func (c *Conn) RemoveLayer(layerID string) error {
	return c.Send(streaming.TypeRemoveLayer, streaming.RemoveLayerPayload{LayerID: layerID})
}

// Rasterize implements snapshot.Rasterizer. It asks the host for the current
// viewport and waits for the matching capture_result.
func (c *Conn) Rasterize(ctx context.Context, opts snapshot.Options) (image.Image, error) {
	id := uuid.NewString()
	ch := make(chan streaming.CaptureResultPayload, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(streaming.TypeRasterize, id, streaming.RasterizePayload{ExcludeChrome: opts.ExcludeChrome}); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return decodeImage(res)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Conn) resolve(env streaming.Envelope) {
	res, err := streaming.Decode[streaming.CaptureResultPayload](env)
	if err != nil {
		res = streaming.CaptureResultPayload{Error: err.Error()}
	}

	c.mu.Lock()
	ch, ok := c.pending[env.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Unmatched capture result", "id", env.ID)
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func decodeImage(res streaming.CaptureResultPayload) (image.Image, error) {
	if res.Error != "" {
		return nil, fmt.Errorf("host rasterize: %s", res.Error)
	}
	raw, err := base64.StdEncoding.DecodeString(res.Image)
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return img, nil
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}
