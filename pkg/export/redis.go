package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/pipeline"
)

// RedisConfig configures the Redis exporter.
type RedisConfig struct {
	// Address is the Redis server address (e.g., "localhost:6379")
	Address string

	// Password for Redis authentication (optional)
	Password string

	// Database number to use (default: 0)
	Database int

	// Prefix is prepended to every key (e.g., "procmap")
	Prefix string

	// TTL is the time-to-live for run keys (0 = no expiration)
	TTL time.Duration

	// Timeout for Redis operations
	Timeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(address string) RedisConfig {
	return RedisConfig{
		Address: address,
		Prefix:  "procmap",
		TTL:     7 * 24 * time.Hour,
		Timeout: 5 * time.Second,
	}
}

// Entry is one key written by the Redis exporter.
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Store writes a batch of entries atomically.
type Store interface {
	SetAll(ctx context.Context, entries []Entry) error
}

// RedisStore is a Store backed by a go-redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// SetAll writes entries in a single MULTI/EXEC transaction.
func (s *RedisStore) SetAll(ctx context.Context, entries []Entry) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.Key, e.Value, e.TTL)
		}
		return nil
	})
	return err
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// RedisExporter publishes the KPI summary and the DFG of each run under
// <prefix>:run:<run-id>:{kpi,dfg} and points <prefix>:latest at the run.
type RedisExporter struct {
	store   Store
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisExporter creates a Redis exporter over store.
func NewRedisExporter(store Store, cfg RedisConfig) *RedisExporter {
	return &RedisExporter{
		store:   store,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
	}
}

func (e *RedisExporter) Name() string { return "redis" }

// RunKey returns the key for one part ("kpi" or "dfg") of a run.
func (e *RedisExporter) RunKey(runID, part string) string {
	return fmt.Sprintf("%s:run:%s:%s", e.prefix, runID, part)
}

// LatestKey returns the key holding the most recent run ID.
func (e *RedisExporter) LatestKey() string {
	return e.prefix + ":latest"
}

// Export implements pipeline.Exporter.
func (e *RedisExporter) Export(ctx context.Context, res *pipeline.Result) error {
	kpiJSON, err := json.Marshal(res.KPI)
	if err != nil {
		return fmt.Errorf("failed to marshal kpi: %w", err)
	}
	dfgJSON, err := json.Marshal(res.DFG)
	if err != nil {
		return fmt.Errorf("failed to marshal dfg: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	entries := []Entry{
		{Key: e.RunKey(res.RunID, "kpi"), Value: kpiJSON, TTL: e.ttl},
		{Key: e.RunKey(res.RunID, "dfg"), Value: dfgJSON, TTL: e.ttl},
		{Key: e.LatestKey(), Value: []byte(res.RunID)},
	}
	if err := e.store.SetAll(ctx, entries); err != nil {
		return lferrors.Wrap(err, lferrors.CodePublishFailed, "publish to redis").
			WithContext("run_id", res.RunID)
	}
	return nil
}
