// Package config holds the YAML configuration model for the data-access
// layer: storage, blob, auth, and realtime driver selection plus ambient
// settings. Environment variables override unset fields.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
type Config struct {
	Storage       StorageConfig  `yaml:"storage"`
	Blob          BlobConfig     `yaml:"blob"`
	Auth          AuthConfig     `yaml:"auth"`
	Realtime      RealtimeConfig `yaml:"realtime"`
	MetricsAddr   string         `yaml:"metricsAddr"`
	AdminUsername string         `yaml:"adminUsername"`
}

// StorageConfig selects the row-store driver.
type StorageConfig struct {
	// Driver: memory|sqlite|postgres (default memory).
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlitePath"`
	PostgresDSN string `yaml:"postgresDSN"`
}

// BlobConfig selects the image-storage driver.
type BlobConfig struct {
	// Driver: memory|fs|s3 (default fs).
	Driver    string   `yaml:"driver"`
	FSRoot    string   `yaml:"fsRoot"`
	FSBaseURL string   `yaml:"fsBaseURL"`
	S3        S3Config `yaml:"s3"`
}

// S3Config configures the S3 blob driver. Endpoint and PathStyle support
// MinIO-compatible deployments.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"pathStyle"`
	PublicBaseURL   string `yaml:"publicBaseURL"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	SessionToken    string `yaml:"sessionToken"`
}

// AuthConfig selects the session-subsystem driver.
type AuthConfig struct {
	// Driver: local|httpapi (default local).
	Driver   string `yaml:"driver"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// RealtimeConfig configures the optional websocket change-feed bridge.
type RealtimeConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Token   string   `yaml:"token"`
	Tables  []string `yaml:"tables"`
}

// Default returns the development configuration: memory storage, local
// filesystem blobs, local auth, no realtime bridge.
func Default() Config {
	return Config{
		Storage:       StorageConfig{Driver: "memory", SQLitePath: "./warbler.db"},
		Blob:          BlobConfig{Driver: "fs", FSRoot: "./blobdata"},
		Auth:          AuthConfig{Driver: "local"},
		AdminUsername: "ccrsxx",
	}
}

// ResolveEnv fills unset fields from WARBLER_* environment variables.
func (c *Config) ResolveEnv() {
	setIfEmpty(&c.Storage.Driver, "WARBLER_STORAGE_DRIVER")
	setIfEmpty(&c.Storage.SQLitePath, "WARBLER_SQLITE_PATH")
	setIfEmpty(&c.Storage.PostgresDSN, "WARBLER_POSTGRES_DSN")
	setIfEmpty(&c.Blob.Driver, "WARBLER_BLOB_DRIVER")
	setIfEmpty(&c.Blob.FSRoot, "WARBLER_BLOB_FS_ROOT")
	setIfEmpty(&c.Blob.FSBaseURL, "WARBLER_BLOB_FS_BASE_URL")
	setIfEmpty(&c.Blob.S3.Bucket, "WARBLER_BLOB_S3_BUCKET")
	setIfEmpty(&c.Blob.S3.Region, "WARBLER_BLOB_S3_REGION")
	setIfEmpty(&c.Blob.S3.Endpoint, "WARBLER_BLOB_S3_ENDPOINT")
	setIfEmpty(&c.Blob.S3.PublicBaseURL, "WARBLER_BLOB_S3_PUBLIC_BASE_URL")
	setIfEmpty(&c.Blob.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setIfEmpty(&c.Blob.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setIfEmpty(&c.Blob.S3.SessionToken, "AWS_SESSION_TOKEN")
	if !c.Blob.S3.PathStyle {
		c.Blob.S3.PathStyle = strings.EqualFold(os.Getenv("WARBLER_BLOB_S3_PATH_STYLE"), "true")
	}
	setIfEmpty(&c.Auth.Driver, "WARBLER_AUTH_DRIVER")
	setIfEmpty(&c.Auth.Endpoint, "WARBLER_AUTH_ENDPOINT")
	setIfEmpty(&c.Auth.APIKey, "WARBLER_AUTH_API_KEY")
	setIfEmpty(&c.Realtime.URL, "WARBLER_REALTIME_URL")
	setIfEmpty(&c.Realtime.Token, "WARBLER_REALTIME_TOKEN")
	if !c.Realtime.Enabled {
		c.Realtime.Enabled = strings.EqualFold(os.Getenv("WARBLER_REALTIME_ENABLED"), "true")
	}
	setIfEmpty(&c.MetricsAddr, "WARBLER_METRICS_ADDR")
	setIfEmpty(&c.AdminUsername, "WARBLER_ADMIN_USERNAME")
}

func setIfEmpty(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// Load reads YAML config from path and resolves environment fallbacks.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("config: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
