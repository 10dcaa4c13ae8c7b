package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"listenAddr": ":9000",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, ":9000", viper.GetString("listenAddr"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./tacmaplogs", viper.GetString("logsDir"))
	assert.Equal(t, ":8088", viper.GetString("listenAddr"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "tacmap", viper.GetString("db.database"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "local", viper.GetString("telemetry.type"))
	assert.Equal(t, "file", viper.GetString("blob.type"))
	assert.Equal(t, 64, viper.GetInt("map.circleSegments"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "type": "sqlite", "sqlite": { "path": "/tmp/ops.db" } }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/ops.db", sc.SQLite.Path)
	assert.Equal(t, "45.4642,9.19", sc.Memory.DemoOrigin)
}

func TestGetStorageConfig_DemoOrigin(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "memory": { "demoOrigin": "39.47,-0.38" } }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "memory", sc.Type)
	assert.Equal(t, "39.47,-0.38", sc.Memory.DemoOrigin)
}

func TestGetTelemetryConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	tc := GetTelemetryConfig()
	assert.Equal(t, "local", tc.Type)
	assert.Equal(t, "nats://localhost:4222", tc.NatsURL)
	assert.Equal(t, "tacmap.telemetry", tc.SubjectPrefix)
	assert.True(t, tc.SequenceGuard)
	assert.Equal(t, 5*time.Second, tc.DialTimeout)
	assert.False(t, tc.Redis.Enabled)
	assert.Equal(t, time.Hour, tc.Redis.TTL)
}

func TestGetBlobConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"blob": {
			"type": "s3",
			"s3": { "bucket": "ops-snapshots", "region": "us-east-1", "publicBaseUrl": "https://cdn.example.org" }
		}
	}`)))

	bc := GetBlobConfig()
	assert.Equal(t, "s3", bc.Type)
	assert.Equal(t, "ops-snapshots", bc.S3.Bucket)
	assert.Equal(t, "us-east-1", bc.S3.Region)
	assert.Equal(t, "snapshots/", bc.S3.Prefix)
	assert.Equal(t, "https://cdn.example.org", bc.S3.PublicBaseURL)
}

func TestGetMapConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	mc := GetMapConfig()
	assert.Equal(t, 64, mc.CircleSegments)
	assert.Equal(t, 512, mc.IconCacheSize)
	assert.Equal(t, 600*time.Millisecond, mc.SettleDelay)
	assert.Equal(t, 30*time.Second, mc.CaptureTimeout)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "ops-map",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "ops-map", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxAndMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "token": "tok", "backupPath": "/tmp/perf.gz" },
		"monitor": { "interval": "2s" }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "http://localhost:8086", ic.URL)
	assert.Equal(t, "tok", ic.Token)
	assert.Equal(t, "tacmap_performance", ic.Bucket)
	assert.Equal(t, "/tmp/perf.gz", ic.BackupPath)

	mc := GetMonitorConfig()
	assert.Equal(t, 2*time.Second, mc.Interval)
	assert.Empty(t, mc.StatusFile)
}
