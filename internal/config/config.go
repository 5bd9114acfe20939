// Package config loads settings for the elkan command.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. ELKAN_* environment variables
//
// Command-line flags are applied on top by the caller.
//
// Example file:
//
//	store:
//	  url: s3://audio-embeddings/podcasts
//	  cache_bytes: 268435456
//	dataset:
//	  frames_per_segment: 8192
//	  compression: zstd
//	cluster:
//	  k: 256
//	  seed: 42
//	log:
//	  level: debug
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/elkan/internal/compress"
	"github.com/hupe1980/elkan/internal/kmeans"
	"gopkg.in/yaml.v3"
)

// Config holds all settings of the elkan command.
type Config struct {
	Store     StoreConfig    `yaml:"store"`
	Dataset   DatasetConfig  `yaml:"dataset"`
	Cluster   ClusterConfig  `yaml:"cluster"`
	Resources ResourceConfig `yaml:"resources"`
	Log       LogConfig      `yaml:"log"`
}

// StoreConfig selects and tunes the blob store.
type StoreConfig struct {
	// URL is one of mem://, file://<dir>, s3://<bucket>/<prefix> or
	// minio://<endpoint>/<bucket>/<prefix>. A bare path means file://.
	URL string `yaml:"url"`
	// CacheBytes sizes the block cache in front of remote stores. 0 disables it.
	CacheBytes int64 `yaml:"cache_bytes"`
	// CacheBlockSize is the cache block size in bytes.
	CacheBlockSize int64 `yaml:"cache_block_size"`
	// CommitTable is the DynamoDB table used to publish results atomically on S3.
	CommitTable string `yaml:"commit_table"`

	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`
}

// S3Config holds S3 client settings.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// MinIOConfig holds MinIO credentials.
type MinIOConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// DatasetConfig controls the segmented dataset layout.
type DatasetConfig struct {
	FramesPerSegment int     `yaml:"frames_per_segment"`
	Compression      string  `yaml:"compression"`
	Fraction         float64 `yaml:"fraction"`
	VerifyChecksums  bool    `yaml:"verify_checksums"`
}

// ClusterConfig holds clustering parameters.
type ClusterConfig struct {
	K int `yaml:"k"`
	// Seed fixes center sampling. Nil picks a time-based seed.
	Seed               *int64 `yaml:"seed"`
	MaxIterations      int    `yaml:"max_iterations"`
	EmptyClusterPolicy string `yaml:"empty_cluster_policy"`
	Exhaustive         bool   `yaml:"exhaustive"`
}

// ResourceConfig bounds memory, transfer concurrency and IO throughput.
type ResourceConfig struct {
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	MaxWorkers         int   `yaml:"max_workers"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			URL:            "file://./data",
			CacheBytes:     256 << 20,
			CacheBlockSize: 1 << 20,
		},
		Dataset: DatasetConfig{
			FramesPerSegment: 4096,
			Compression:      "lz4",
			Fraction:         1,
			VerifyChecksums:  true,
		},
		Cluster: ClusterConfig{
			MaxIterations:      100,
			EmptyClusterPolicy: "reseed-farthest",
		},
		Resources: ResourceConfig{
			MaxWorkers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves defaults, the optional file at path and the environment.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides settings from ELKAN_* environment variables.
func (c *Config) ApplyEnv() {
	c.Store.URL = getEnv("ELKAN_STORE_URL", c.Store.URL)
	c.Store.CacheBytes = getEnvInt64("ELKAN_CACHE_BYTES", c.Store.CacheBytes)
	c.Store.CacheBlockSize = getEnvInt64("ELKAN_CACHE_BLOCK_SIZE", c.Store.CacheBlockSize)
	c.Store.CommitTable = getEnv("ELKAN_COMMIT_TABLE", c.Store.CommitTable)
	c.Store.S3.Region = getEnv("ELKAN_S3_REGION", c.Store.S3.Region)
	c.Store.S3.Endpoint = getEnv("ELKAN_S3_ENDPOINT", c.Store.S3.Endpoint)
	c.Store.S3.UsePathStyle = getEnvBool("ELKAN_S3_USE_PATH_STYLE", c.Store.S3.UsePathStyle)
	c.Store.MinIO.AccessKey = getEnv("ELKAN_MINIO_ACCESS_KEY", c.Store.MinIO.AccessKey)
	c.Store.MinIO.SecretKey = getEnv("ELKAN_MINIO_SECRET_KEY", c.Store.MinIO.SecretKey)
	c.Store.MinIO.Region = getEnv("ELKAN_MINIO_REGION", c.Store.MinIO.Region)
	c.Store.MinIO.Secure = getEnvBool("ELKAN_MINIO_SECURE", c.Store.MinIO.Secure)

	c.Dataset.FramesPerSegment = getEnvInt("ELKAN_FRAMES_PER_SEGMENT", c.Dataset.FramesPerSegment)
	c.Dataset.Compression = getEnv("ELKAN_COMPRESSION", c.Dataset.Compression)
	c.Dataset.Fraction = getEnvFloat("ELKAN_FRACTION", c.Dataset.Fraction)
	c.Dataset.VerifyChecksums = getEnvBool("ELKAN_VERIFY_CHECKSUMS", c.Dataset.VerifyChecksums)

	c.Cluster.K = getEnvInt("ELKAN_K", c.Cluster.K)
	if val := os.Getenv("ELKAN_SEED"); val != "" {
		if seed, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Cluster.Seed = &seed
		}
	}
	c.Cluster.MaxIterations = getEnvInt("ELKAN_MAX_ITERATIONS", c.Cluster.MaxIterations)
	c.Cluster.EmptyClusterPolicy = getEnv("ELKAN_EMPTY_CLUSTER_POLICY", c.Cluster.EmptyClusterPolicy)
	c.Cluster.Exhaustive = getEnvBool("ELKAN_EXHAUSTIVE", c.Cluster.Exhaustive)

	c.Resources.MemoryLimitBytes = getEnvInt64("ELKAN_MEMORY_LIMIT_BYTES", c.Resources.MemoryLimitBytes)
	c.Resources.MaxWorkers = getEnvInt("ELKAN_MAX_WORKERS", c.Resources.MaxWorkers)
	c.Resources.IOLimitBytesPerSec = getEnvInt64("ELKAN_IO_LIMIT_BYTES_PER_SEC", c.Resources.IOLimitBytesPerSec)

	c.Log.Level = getEnv("ELKAN_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("ELKAN_LOG_FORMAT", c.Log.Format)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.URL == "" {
		errs = append(errs, errors.New("store.url is required"))
	}
	if c.Store.CacheBytes < 0 {
		errs = append(errs, fmt.Errorf("store.cache_bytes must not be negative, got %d", c.Store.CacheBytes))
	}
	if c.Store.CacheBytes > 0 && c.Store.CacheBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("store.cache_block_size must be positive, got %d", c.Store.CacheBlockSize))
	}

	if c.Dataset.FramesPerSegment <= 0 {
		errs = append(errs, fmt.Errorf("dataset.frames_per_segment must be positive, got %d", c.Dataset.FramesPerSegment))
	}
	if _, err := compress.ParseType(c.Dataset.Compression); err != nil {
		errs = append(errs, fmt.Errorf("dataset.compression: %w", err))
	}
	if c.Dataset.Fraction <= 0 || c.Dataset.Fraction > 1 {
		errs = append(errs, fmt.Errorf("dataset.fraction must be in (0, 1], got %v", c.Dataset.Fraction))
	}

	if c.Cluster.K < 0 {
		errs = append(errs, fmt.Errorf("cluster.k must not be negative, got %d", c.Cluster.K))
	}
	if _, err := kmeans.ParseEmptyClusterPolicy(c.Cluster.EmptyClusterPolicy); err != nil {
		errs = append(errs, fmt.Errorf("cluster.empty_cluster_policy: %w", err))
	}

	if c.Resources.MemoryLimitBytes < 0 || c.Resources.IOLimitBytesPerSec < 0 {
		errs = append(errs, errors.New("resource limits must not be negative"))
	}
	if c.Resources.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("resources.max_workers must be positive, got %d", c.Resources.MaxWorkers))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
