// Package config provides layered configuration.
// Priority: defaults < user < project < --config file < env < flags
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/telemetry"
	"github.com/logflow/procmap/pkg/validate"
)

// OutputFormats lists the file exporters that can be selected by name.
var OutputFormats = []string{"json", "csv", "text", "dot", "parquet", "xlsx", "duckdb"}

// Config holds all procmap configuration.
type Config struct {
	Version int `yaml:"version"`

	Columns   validate.Columns `yaml:"columns"`
	Input     InputConfig      `yaml:"input"`
	Output    OutputConfig     `yaml:"output"`
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	S3        S3Config         `yaml:"s3"`
	Redis     RedisConfig      `yaml:"redis"`
	Viewer    ViewerConfig     `yaml:"viewer"`
	Watch     WatchConfig      `yaml:"watch"`
}

// InputConfig controls how input files are read.
type InputConfig struct {
	Format    string `yaml:"format"`    // csv | tsv | jsonl | xlsx | parquet; empty = by extension
	Delimiter string `yaml:"delimiter"` // single character, CSV only
	Sheet     string `yaml:"sheet"`     // XLSX worksheet; empty = first
}

// OutputConfig controls file exports.
type OutputConfig struct {
	Dir         string   `yaml:"dir"`
	Formats     []string `yaml:"formats"`
	Compression string   `yaml:"compression"` // parquet: snappy | zstd | gzip | none
}

// PipelineConfig controls execution.
type PipelineConfig struct {
	Concurrent bool `yaml:"concurrent"`
}

// LoggingConfig controls the console logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | logfmt | json
}

// S3Config enables publishing exported files to object storage.
type S3Config struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	Prefix          string        `yaml:"prefix"`
	PathStyle       bool          `yaml:"path_style"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	UploadTimeout   time.Duration `yaml:"upload_timeout"`
}

// RedisConfig enables publishing results to Redis.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ViewerConfig for the HTTP viewer.
type ViewerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig for watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Columns: validate.DefaultColumns(),
		Input: InputConfig{
			Delimiter: ",",
		},
		Output: OutputConfig{
			Dir:         "out",
			Formats:     []string{"json", "csv", "text"},
			Compression: "snappy",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.DefaultConfig(),
		S3: S3Config{
			Prefix:        "procmap",
			UploadTimeout: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  "procmap",
			TTL:     7 * 24 * time.Hour,
			Timeout: 5 * time.Second,
		},
		Viewer: ViewerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate rejects malformed settings.
func (c *Config) Validate() error {
	cols := map[string]string{
		"columns.case_id":   c.Columns.CaseID,
		"columns.activity":  c.Columns.Activity,
		"columns.timestamp": c.Columns.Timestamp,
	}
	seen := make(map[string]string, len(cols))
	for _, field := range []string{"columns.case_id", "columns.activity", "columns.timestamp"} {
		name := cols[field]
		if strings.TrimSpace(name) == "" {
			return lferrors.InvalidConfig(field, "must not be empty")
		}
		if other, dup := seen[name]; dup {
			return lferrors.InvalidConfig(field, "same column as "+other)
		}
		seen[name] = field
	}

	switch c.Input.Format {
	case "", "csv", "tsv", "jsonl", "ndjson", "xlsx", "parquet":
	default:
		return lferrors.InvalidConfig("input.format", "unsupported format "+strconv.Quote(c.Input.Format))
	}
	if c.Input.Delimiter != "" && utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return lferrors.InvalidConfig("input.delimiter", "must be a single character")
	}

	for _, f := range c.Output.Formats {
		if !contains(OutputFormats, f) {
			return lferrors.InvalidConfig("output.formats", "unknown format "+strconv.Quote(f))
		}
	}
	switch c.Output.Compression {
	case "", "snappy", "zstd", "gzip", "none":
	default:
		return lferrors.InvalidConfig("output.compression", "unsupported codec "+strconv.Quote(c.Output.Compression))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return lferrors.InvalidConfig("logging.level", "must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "text", "logfmt", "json":
	default:
		return lferrors.InvalidConfig("logging.format", "must be text, logfmt or json")
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return lferrors.InvalidConfig("telemetry.endpoint", "required when telemetry is enabled")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return lferrors.InvalidConfig("telemetry.sampling_ratio", "must be between 0 and 1")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return lferrors.InvalidConfig("s3.bucket", "required when s3 is enabled")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return lferrors.InvalidConfig("redis.address", "required when redis is enabled")
	}
	if c.Viewer.Port < 1 || c.Viewer.Port > 65535 {
		return lferrors.InvalidConfig("viewer.port", "must be between 1 and 65535")
	}
	return nil
}

// Delimiter returns the CSV delimiter rune (default comma).
func (c *Config) Delimiter() rune {
	if c.Input.Delimiter == "" {
		return ','
	}
	r, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	return r
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	paths     []string
	search    []string
	lookupEnv func(string) (string, bool)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearchPaths replaces the optional config file locations.
func WithSearchPaths(paths ...string) Option {
	return func(m *Manager) { m.search = paths }
}

// WithEnv replaces the environment lookup.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(m *Manager) { m.lookupEnv = lookup }
}

// NewManager creates a new configuration manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		config:    Default(),
		search:    DefaultSearchPaths(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultSearchPaths returns the optional config files in priority order.
func DefaultSearchPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".procmap", "config.yaml"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".procmap.yaml"))
	}
	return paths
}

// Load builds the configuration from defaults, the search paths, the
// explicit file (which must exist when given) and the environment.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := Default()
	var loaded []string

	for _, path := range m.search {
		if err := loadFile(cfg, path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		loaded = append(loaded, path)
	}

	if explicit != "" {
		if err := loadFile(cfg, explicit); err != nil {
			if os.IsNotExist(err) {
				return lferrors.FileNotFound(explicit)
			}
			return err
		}
		loaded = append(loaded, explicit)
	}

	if err := m.loadEnv(cfg); err != nil {
		return err
	}

	m.config = cfg
	m.paths = loaded
	return nil
}

// loadFile overlays the keys present in path onto cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return lferrors.Wrap(err, lferrors.CodeInvalidConfig, "parse config file").WithContext("path", path)
	}
	return nil
}

// loadEnv applies PROCMAP_* environment overrides.
func (m *Manager) loadEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := m.lookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str("PROCMAP_CASE_ID_COLUMN", &cfg.Columns.CaseID)
	str("PROCMAP_ACTIVITY_COLUMN", &cfg.Columns.Activity)
	str("PROCMAP_TIMESTAMP_COLUMN", &cfg.Columns.Timestamp)
	str("PROCMAP_INPUT_FORMAT", &cfg.Input.Format)
	str("PROCMAP_OUTPUT_DIR", &cfg.Output.Dir)
	str("PROCMAP_LOG_LEVEL", &cfg.Logging.Level)
	str("PROCMAP_LOG_FORMAT", &cfg.Logging.Format)
	str("PROCMAP_REDIS_PASSWORD", &cfg.Redis.Password)
	str("PROCMAP_S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	str("PROCMAP_S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)

	if v, ok := m.lookupEnv("PROCMAP_FORMATS"); ok && v != "" {
		cfg.Output.Formats = SplitList(v)
	}
	if v, ok := m.lookupEnv("PROCMAP_CONCURRENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return lferrors.InvalidConfig("PROCMAP_CONCURRENT", "must be a boolean")
		}
		cfg.Pipeline.Concurrent = b
	}
	if v, ok := m.lookupEnv("PROCMAP_VIEWER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return lferrors.InvalidConfig("PROCMAP_VIEWER_PORT", "must be an integer")
		}
		cfg.Viewer.Port = port
	}

	// Setting a destination turns the integration on.
	if v, ok := m.lookupEnv("PROCMAP_OTLP_ENDPOINT"); ok && v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
	if v, ok := m.lookupEnv("PROCMAP_S3_BUCKET"); ok && v != "" {
		cfg.S3.Bucket = v
		cfg.S3.Enabled = true
	}
	if v, ok := m.lookupEnv("PROCMAP_REDIS_ADDR"); ok && v != "" {
		cfg.Redis.Address = v
		cfg.Redis.Enabled = true
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Paths returns the config files that were loaded.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config as YAML to path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
