package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON file read from the config directory.
const ConfigFileName = "tacmap.cfg.json"

// StorageConfig selects the entity store backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // memory, postgres, sqlite
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// MemoryConfig seeds the in-memory backend.
type MemoryConfig struct {
	DemoOrigin string `json:"demoOrigin" mapstructure:"demoOrigin"` // "lat,lng"
}

// SQLiteConfig holds local database settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// TelemetryConfig configures the live telemetry push channel.
type TelemetryConfig struct {
	Type          string        `json:"type" mapstructure:"type"` // nats, local, none
	NatsURL       string        `json:"natsUrl" mapstructure:"natsUrl"`
	SubjectPrefix string        `json:"subjectPrefix" mapstructure:"subjectPrefix"`
	SequenceGuard bool          `json:"sequenceGuard" mapstructure:"sequenceGuard"`
	Redis         RedisConfig   `json:"redis" mapstructure:"redis"`
	DialTimeout   time.Duration `json:"dialTimeout" mapstructure:"dialTimeout"`
}

// RedisConfig configures the last-known telemetry cache.
type RedisConfig struct {
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
	Addr    string        `json:"addr" mapstructure:"addr"`
	TTL     time.Duration `json:"ttl" mapstructure:"ttl"`
}

// BlobConfig selects where map snapshots are uploaded.
type BlobConfig struct {
	Type string       `json:"type" mapstructure:"type"` // s3, api, file
	S3   S3BlobConfig `json:"s3" mapstructure:"s3"`
	API  APIConfig    `json:"api" mapstructure:"api"`
	File FileConfig   `json:"file" mapstructure:"file"`
}

// S3BlobConfig holds S3 bucket settings
type S3BlobConfig struct {
	Bucket          string `json:"bucket" mapstructure:"bucket"`
	Region          string `json:"region" mapstructure:"region"`
	Prefix          string `json:"prefix" mapstructure:"prefix"`
	PublicBaseURL   string `json:"publicBaseUrl" mapstructure:"publicBaseUrl"`
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"` // S3-compatible stores
	AccessKeyID     string `json:"accessKeyId" mapstructure:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" mapstructure:"secretAccessKey"`
}

// APIConfig holds the operations web API endpoint
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// FileConfig holds local snapshot directory settings
type FileConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	PublicBaseURL string `json:"publicBaseUrl" mapstructure:"publicBaseUrl"`
}

// MapConfig holds drawing and rendering settings.
type MapConfig struct {
	CircleSegments int           `json:"circleSegments" mapstructure:"circleSegments"`
	IconCacheSize  int           `json:"iconCacheSize" mapstructure:"iconCacheSize"`
	SettleDelay    time.Duration `json:"settleDelay" mapstructure:"settleDelay"`
	CaptureTimeout time.Duration `json:"captureTimeout" mapstructure:"captureTimeout"`
}

// InfluxConfig holds the performance point sink settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// MonitorConfig controls the periodic status monitor.
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./tacmaplogs")
	viper.SetDefault("listenAddr", ":8088")
	viper.SetDefault("graylogAddr", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "tacmap")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.path", "./tacmap.db")
	viper.SetDefault("storage.memory.demoOrigin", "45.4642,9.19")

	viper.SetDefault("telemetry.type", "local")
	viper.SetDefault("telemetry.natsUrl", "nats://localhost:4222")
	viper.SetDefault("telemetry.subjectPrefix", "tacmap.telemetry")
	viper.SetDefault("telemetry.sequenceGuard", true)
	viper.SetDefault("telemetry.dialTimeout", "5s")
	viper.SetDefault("telemetry.redis.enabled", false)
	viper.SetDefault("telemetry.redis.addr", "localhost:6379")
	viper.SetDefault("telemetry.redis.ttl", "1h")

	viper.SetDefault("blob.type", "file")
	viper.SetDefault("blob.s3.region", "eu-west-1")
	viper.SetDefault("blob.s3.prefix", "snapshots/")
	viper.SetDefault("blob.api.serverUrl", "http://localhost:5000")
	viper.SetDefault("blob.file.dir", "./snapshots")
	viper.SetDefault("blob.file.publicBaseUrl", "/snapshots")

	viper.SetDefault("map.circleSegments", 64)
	viper.SetDefault("map.iconCacheSize", 512)
	viper.SetDefault("map.settleDelay", "600ms")
	viper.SetDefault("map.captureTimeout", "30s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.org", "tacmap")
	viper.SetDefault("influx.bucket", "tacmap_performance")

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tacmap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the entity store configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Memory: MemoryConfig{
			DemoOrigin: viper.GetString("storage.memory.demoOrigin"),
		},
	}
}

// GetTelemetryConfig returns the telemetry channel configuration.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Type:          viper.GetString("telemetry.type"),
		NatsURL:       viper.GetString("telemetry.natsUrl"),
		SubjectPrefix: viper.GetString("telemetry.subjectPrefix"),
		SequenceGuard: viper.GetBool("telemetry.sequenceGuard"),
		DialTimeout:   viper.GetDuration("telemetry.dialTimeout"),
		Redis: RedisConfig{
			Enabled: viper.GetBool("telemetry.redis.enabled"),
			Addr:    viper.GetString("telemetry.redis.addr"),
			TTL:     viper.GetDuration("telemetry.redis.ttl"),
		},
	}
}

// GetBlobConfig returns the snapshot upload configuration.
func GetBlobConfig() BlobConfig {
	return BlobConfig{
		Type: viper.GetString("blob.type"),
		S3: S3BlobConfig{
			Bucket:          viper.GetString("blob.s3.bucket"),
			Region:          viper.GetString("blob.s3.region"),
			Prefix:          viper.GetString("blob.s3.prefix"),
			PublicBaseURL:   viper.GetString("blob.s3.publicBaseUrl"),
			Endpoint:        viper.GetString("blob.s3.endpoint"),
			AccessKeyID:     viper.GetString("blob.s3.accessKeyId"),
			SecretAccessKey: viper.GetString("blob.s3.secretAccessKey"),
		},
		API: APIConfig{
			ServerURL: viper.GetString("blob.api.serverUrl"),
			APIKey:    viper.GetString("blob.api.apiKey"),
		},
		File: FileConfig{
			Dir:           viper.GetString("blob.file.dir"),
			PublicBaseURL: viper.GetString("blob.file.publicBaseUrl"),
		},
	}
}

// GetMapConfig returns drawing, icon and snapshot settings.
func GetMapConfig() MapConfig {
	return MapConfig{
		CircleSegments: viper.GetInt("map.circleSegments"),
		IconCacheSize:  viper.GetInt("map.iconCacheSize"),
		SettleDelay:    viper.GetDuration("map.settleDelay"),
		CaptureTimeout: viper.GetDuration("map.captureTimeout"),
	}
}

// GetInfluxConfig returns the performance point sink configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetMonitorConfig returns the status monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
