package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/types"
)

// ErrRecordNotFound is returned when a record ID does not exist.
var ErrRecordNotFound = errors.New("memory record not found")

// RecordFilter narrows a List call. Zero fields are ignored.
type RecordFilter struct {
	AgentID       string
	UserID        string
	Type          types.MemoryType
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}

// RecordStore persists memory records. Implementations must be safe for
// concurrent use. Put is an atomic upsert keyed by record ID; List returns
// records newest first.
type RecordStore interface {
	Put(ctx context.Context, rec *types.MemoryRecord) error
	Get(ctx context.Context, id string) (*types.MemoryRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter RecordFilter) ([]*types.MemoryRecord, error)
	Count(ctx context.Context, agentID string) (int, error)
	Close() error
}

// BackendConfig selects and configures a RecordStore backend.
type BackendConfig struct {
	// Backend names a registered constructor: sqlite, postgres, mysql, redis.
	Backend string `yaml:"backend"`
	// DSN is the SQL data source name for the GORM backends.
	DSN string `yaml:"dsn"`

	Pool  PoolConfig   `yaml:"pool"`
	Redis RedisOptions `yaml:"redis"`
}

// PoolConfig tunes the SQL connection pool. Zero fields keep driver
// defaults.
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// BackendConstructor builds a RecordStore from its configuration.
type BackendConstructor func(cfg BackendConfig, logger *zap.Logger) (RecordStore, error)

var (
	backendMu sync.RWMutex
	backends  = make(map[string]BackendConstructor)
)

// RegisterBackend makes a record-store backend available to OpenBackend.
// Call at startup; later registrations for the same name overwrite.
func RegisterBackend(name string, ctor BackendConstructor) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backends[name] = ctor
}

// RegisterDefaultBackends registers the built-in SQL and Redis backends.
func RegisterDefaultBackends() {
	RegisterBackend("sqlite", func(cfg BackendConfig, logger *zap.Logger) (RecordStore, error) {
		return NewGormRecordStore("sqlite", cfg.DSN, cfg.Pool, logger)
	})
	RegisterBackend("postgres", func(cfg BackendConfig, logger *zap.Logger) (RecordStore, error) {
		return NewGormRecordStore("postgres", cfg.DSN, cfg.Pool, logger)
	})
	RegisterBackend("mysql", func(cfg BackendConfig, logger *zap.Logger) (RecordStore, error) {
		return NewGormRecordStore("mysql", cfg.DSN, cfg.Pool, logger)
	})
	RegisterBackend("redis", func(cfg BackendConfig, logger *zap.Logger) (RecordStore, error) {
		return NewRedisRecordStore(cfg.Redis, logger)
	})
}

// OpenBackend constructs the RecordStore named by cfg.Backend.
func OpenBackend(cfg BackendConfig, logger *zap.Logger) (RecordStore, error) {
	backendMu.RLock()
	ctor, ok := backends[cfg.Backend]
	backendMu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrUnknownBackend,
			fmt.Sprintf("unknown record store backend: %q", cfg.Backend))
	}
	return ctor(cfg, logger)
}

func recordMatches(rec *types.MemoryRecord, filter RecordFilter) bool {
	if filter.AgentID != "" && rec.AgentID != filter.AgentID {
		return false
	}
	if filter.UserID != "" && rec.UserID != filter.UserID {
		return false
	}
	if filter.Type != "" && rec.Type != filter.Type {
		return false
	}
	if filter.CreatedAfter != nil && rec.CreatedAt.Before(*filter.CreatedAfter) {
		return false
	}
	if filter.CreatedBefore != nil && rec.CreatedAt.After(*filter.CreatedBefore) {
		return false
	}
	return true
}
