// Package config loads graphdb's configuration from environment variables,
// adapted from the teacher's Neo4j-compatible env-var loader
// (pkg/config/config.go in the straga-Mimir_lite reference): this module
// keeps the same LoadFromEnv/Validate/String shape and the same getEnv*
// helper family, but the section structs are rebuilt around spec §4.G's
// persistence/WAL settings, §4.C's default HNSW tuning, §5's default
// quotas, and ambient logging instead of the teacher's bolt/http server and
// GDPR/HIPAA compliance knobs (both out of this spec's scope).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting for one graphdb process.
// Struct tags mirror the field names LoadFromFile expects in a config.yaml.
type Config struct {
	Persistence PersistenceConfig `yaml:"persistence"`
	Index       IndexConfig       `yaml:"index"`
	Tenancy     TenancyConfig     `yaml:"tenancy"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// PersistenceConfig controls spec §4.G's WAL and KV layer.
type PersistenceConfig struct {
	// DataDir holds the WAL segments and the badger KV directory.
	DataDir string `yaml:"data_dir"`
	// SyncMode selects the WAL fsync policy: "always", "interval", "never".
	SyncMode string `yaml:"sync_mode"`
	// SyncInterval is the fsync period when SyncMode is "interval".
	SyncInterval time.Duration `yaml:"sync_interval"`
	// SegmentMaxBytes rotates to a new WAL segment once exceeded.
	SegmentMaxBytes int64 `yaml:"segment_max_bytes"`
	// CompactAfterCheckpoint gzip-compresses rotated segments once a
	// checkpoint has made them unnecessary for recovery.
	CompactAfterCheckpoint bool `yaml:"compact_after_checkpoint"`
}

// IndexConfig holds the default HNSW tuning applied to vector indices that
// don't specify their own (spec §4.C).
type IndexConfig struct {
	DefaultM              int `yaml:"default_m"`
	DefaultEfConstruction int `yaml:"default_ef_construction"`
	DefaultEfSearch       int `yaml:"default_ef_search"`
}

// TenancyConfig holds the default resource quotas assigned to newly
// created tenants (spec §5) when none are given explicitly.
type TenancyConfig struct {
	DefaultMaxNodes        int64 `yaml:"default_max_nodes"`
	DefaultMaxEdges        int64 `yaml:"default_max_edges"`
	DefaultMaxMemoryBytes  int64 `yaml:"default_max_memory_bytes"`
	DefaultMaxStorageBytes int64 `yaml:"default_max_storage_bytes"`
	DefaultMaxConnections  int64 `yaml:"default_max_connections"`
	DefaultMaxQueryTimeMs  int64 `yaml:"default_max_query_time_ms"`
}

// LoggingConfig controls the go-logr facade (pkg/logging).
type LoggingConfig struct {
	// Level is a zero-or-positive logr verbosity (0 = info, higher = more
	// verbose), matching go-logr's V(n) convention.
	Level int `yaml:"level"`
	// Format selects "text" or "json" output.
	Format string `yaml:"format"`
}

// LoadFromEnv builds a Config from the process environment, falling back
// to sane defaults for anything unset.
func LoadFromEnv() *Config {
	return &Config{
		Persistence: PersistenceConfig{
			DataDir:                getEnv("GRAPHDB_DATA_DIR", "./data"),
			SyncMode:                getEnv("GRAPHDB_WAL_SYNC_MODE", "interval"),
			SyncInterval:           getEnvDuration("GRAPHDB_WAL_SYNC_INTERVAL", time.Second),
			SegmentMaxBytes:        int64(getEnvInt("GRAPHDB_WAL_SEGMENT_MAX_BYTES", 64*1024*1024)),
			CompactAfterCheckpoint: getEnvBool("GRAPHDB_WAL_COMPACT", true),
		},
		Index: IndexConfig{
			DefaultM:              getEnvInt("GRAPHDB_HNSW_M", 16),
			DefaultEfConstruction: getEnvInt("GRAPHDB_HNSW_EF_CONSTRUCTION", 200),
			DefaultEfSearch:       getEnvInt("GRAPHDB_HNSW_EF_SEARCH", 100),
		},
		Tenancy: TenancyConfig{
			DefaultMaxNodes:        int64(getEnvInt("GRAPHDB_TENANT_MAX_NODES", 1_000_000)),
			DefaultMaxEdges:        int64(getEnvInt("GRAPHDB_TENANT_MAX_EDGES", 10_000_000)),
			DefaultMaxMemoryBytes:  parseMemorySize(getEnv("GRAPHDB_TENANT_MAX_MEMORY", "1GB")),
			DefaultMaxStorageBytes: parseMemorySize(getEnv("GRAPHDB_TENANT_MAX_STORAGE", "10GB")),
			DefaultMaxConnections:  int64(getEnvInt("GRAPHDB_TENANT_MAX_CONNECTIONS", 100)),
			DefaultMaxQueryTimeMs:  int64(getEnvInt("GRAPHDB_TENANT_MAX_QUERY_TIME_MS", 60_000)),
		},
		Logging: LoggingConfig{
			Level:  getEnvInt("GRAPHDB_LOG_LEVEL", 0),
			Format: getEnv("GRAPHDB_LOG_FORMAT", "text"),
		},
	}
}

// Validate rejects configurations that can never produce a working store.
func (c *Config) Validate() error {
	if c.Persistence.DataDir == "" {
		return fmt.Errorf("config: GRAPHDB_DATA_DIR must not be empty")
	}
	switch c.Persistence.SyncMode {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("config: invalid GRAPHDB_WAL_SYNC_MODE %q", c.Persistence.SyncMode)
	}
	if c.Persistence.SegmentMaxBytes <= 0 {
		return fmt.Errorf("config: GRAPHDB_WAL_SEGMENT_MAX_BYTES must be positive")
	}
	if c.Index.DefaultM <= 0 || c.Index.DefaultEfConstruction <= 0 || c.Index.DefaultEfSearch <= 0 {
		return fmt.Errorf("config: HNSW tuning parameters must be positive")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: invalid GRAPHDB_LOG_FORMAT %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{DataDir:%s SyncMode:%s LogFormat:%s}",
		c.Persistence.DataDir, c.Persistence.SyncMode, c.Logging.Format)
}

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

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}
