package logging

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name        string
		logsDir     string
		serviceName string
		want        string
	}{
		{
			name:        "basic path",
			logsDir:     "tacmaplogs",
			serviceName: "tacmap",
			want:        filepath.Join("tacmaplogs", "tacmap.20260212_213836.log"),
		},
		{
			name:        "relative path with dot",
			logsDir:     "./tacmaplogs",
			serviceName: "tacmap",
			want:        filepath.Join(".", "tacmaplogs", "tacmap.20260212_213836.log"),
		},
		{
			name:        "absolute path",
			logsDir:     filepath.Join("/var", "log", "tacmap"),
			serviceName: "tacmap",
			want:        filepath.Join("/var", "log", "tacmap", "tacmap.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.serviceName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRotatingFile(t *testing.T) {
	start := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)
	w := NewRotatingFile("logs", "tacmap", start)

	assert.Equal(t, filepath.Join("logs", "tacmap.20260212_213836.log"), w.Filename)
	assert.Equal(t, 64, w.MaxSize)
	assert.True(t, w.Compress)
}

func TestNewGraylogWriter(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	w, err := NewGraylogWriter(pc.LocalAddr().String())
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("level=INFO msg=\"View opened\"\n"))
	require.NoError(t, err)

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8192)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Positive(t, n)
}
