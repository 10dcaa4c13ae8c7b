package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/tacmap/internal/config"
	"github.com/OCAP2/tacmap/internal/geo"
	"github.com/OCAP2/tacmap/internal/handlers"
	"github.com/OCAP2/tacmap/internal/hostmap"
	"github.com/OCAP2/tacmap/internal/snapshot"
	"github.com/OCAP2/tacmap/internal/storage/memory"
	"github.com/OCAP2/tacmap/internal/telemetry"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/OCAP2/tacmap/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ snapshot.Rasterizer = (*hostmap.Conn)(nil)
	_ handlers.Host       = (*hostmap.Conn)(nil)
	_ publisher           = localPublisher{}
)

func testServer(t *testing.T) (*httptest.Server, *memory.Backend, core.Mission) {
	t.Helper()
	backend := memory.New()
	m := backend.AddMission(core.Mission{Name: "Delta", Origin: core.LatLng{Lat: 44, Lng: 8}})

	b := telemetry.NewBroadcaster(16)
	svc := &services{
		backend:   backend,
		channel:   b,
		publisher: localPublisher{b: b},
		closers:   []func(){b.Close},
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := newServer(ctx, svc, slog.Default())
	hs := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		cancel()
		hs.Close()
		srv.Wait()
		svc.Close()
	})
	return hs, backend, m
}

func dial(t *testing.T, hs *httptest.Server, query string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws?" + query
	c, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readUntil(t *testing.T, c *ws.Conn, typ string) streaming.Envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		var env streaming.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env
		}
	}
}

func TestHealthz(t *testing.T) {
	hs, _, _ := testServer(t)

	resp, err := http.Get(hs.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestWS_RequiresMission(t *testing.T) {
	hs, _, _ := testServer(t)

	resp, err := http.Get(hs.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_RendersMissionAndAppliesTelemetry(t *testing.T) {
	hs, backend, m := testServer(t)
	backend.AddAircraft(core.Aircraft{Serial: "SN-9", Callsign: "Kite"})

	c := dial(t, hs, "mission="+m.ID+"&width=1280&height=720")

	env := readUntil(t, c, streaming.TypeRender)
	render, err := streaming.Decode[streaming.RenderPayload](env)
	require.NoError(t, err)
	assert.Equal(t, m.ID, render.Mission.ID)
	require.NotEmpty(t, render.POIs)
	assert.True(t, render.POIs[0].CommandPost)

	// the subscription opens during Enter, before the first render
	rec := core.TelemetryRecord{Serial: "SN-9", Position: core.LatLng{Lat: 44.01, Lng: 8.01}}
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	resp, err := http.Post(hs.URL+"/api/v1/telemetry/"+m.ID, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	for {
		env = readUntil(t, c, streaming.TypeRender)
		render, err = streaming.Decode[streaming.RenderPayload](env)
		require.NoError(t, err)
		if len(render.Live) == 1 {
			break
		}
	}
	assert.Equal(t, "SN-9", render.Live[0].Serial)
	assert.Equal(t, "Kite", render.Live[0].Callsign)
}

func TestWS_UnknownMissionNotifies(t *testing.T) {
	hs, _, _ := testServer(t)
	c := dial(t, hs, "mission=nope")

	env := readUntil(t, c, streaming.TypeNotify)
	n, err := streaming.Decode[core.Notification](env)
	require.NoError(t, err)
	assert.Equal(t, core.NotifyError, n.Level)
}

func TestTelemetry_RejectsMissingSerial(t *testing.T) {
	hs, _, m := testServer(t)

	resp, err := http.Post(hs.URL+"/api/v1/telemetry/"+m.ID, "application/json", strings.NewReader(`{"position":{"lat":1,"lng":2}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateStorageBackend(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		wantErr bool
	}{
		{"memory", "memory", false},
		{"default", "", false},
		{"sqlite", "sqlite", false},
		{"unknown", "mongo", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := createStorageBackend(config.StorageConfig{Type: tt.typ}, slog.Default(), zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
		})
	}
}

func TestSeedDemo(t *testing.T) {
	b := memory.New()
	m, err := seedDemo(b, "")
	require.NoError(t, err)
	assert.Equal(t, defaultDemoOrigin, m.Origin)

	m, err = seedDemo(b, " 39.47, -0.38 ")
	require.NoError(t, err)
	got, err := b.GetMission(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, core.LatLng{Lat: 39.47, Lng: -0.38}, got.Origin)

	_, err = seedDemo(b, "north")
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = createStorageBackend(config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{DemoOrigin: "95,0"}}, slog.Default(), zerolog.Nop())
	assert.Error(t, err)
}

func TestInitBlobs(t *testing.T) {
	s := &services{}
	dir := t.TempDir()
	require.NoError(t, s.initBlobs(context.Background(), config.BlobConfig{
		Type: "file",
		File: config.FileConfig{Dir: dir, PublicBaseURL: "/snapshots"},
	}, slog.Default()))
	assert.NotNil(t, s.blobs)
	assert.Equal(t, dir, s.fileDir)

	s = &services{}
	require.NoError(t, s.initBlobs(context.Background(), config.BlobConfig{Type: "none"}, slog.Default()))
	assert.Nil(t, s.blobs)

	assert.Error(t, (&services{}).initBlobs(context.Background(), config.BlobConfig{Type: "ftp"}, slog.Default()))
	assert.Error(t, (&services{}).initBlobs(context.Background(), config.BlobConfig{Type: "file"}, slog.Default()))
}
