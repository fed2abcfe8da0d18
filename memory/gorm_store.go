package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promptmesh/contextcore/types"
)

// memoryRow is the GORM table mapping for a memory record. Embedding and
// metadata are stored as JSON text so the schema works across sqlite,
// postgres and mysql without driver-specific column types.
type memoryRow struct {
	ID         string `gorm:"primaryKey;size:128"`
	AgentID    string `gorm:"index;size:128"`
	UserID     string `gorm:"index;size:128"`
	Type       string `gorm:"index;size:32"`
	Content    string
	Importance float64
	Embedding  string
	Metadata   string
	CreatedAt  time.Time `gorm:"index"`
}

func (memoryRow) TableName() string { return "memory_records" }

// GormRecordStore persists memory records through GORM. Supported dialects:
// sqlite (glebarez, pure Go), postgres, mysql.
type GormRecordStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRecordStore opens the database for the given dialect and DSN and
// migrates the records table.
func NewGormRecordStore(dialect, dsn string, pool PoolConfig, logger *zap.Logger) (*GormRecordStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported record store dialect: %s", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := db.AutoMigrate(&memoryRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate memory records: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql pool: %w", err)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	logger.Info("record store opened", zap.String("dialect", dialect))
	return &GormRecordStore{
		db:     db,
		logger: logger.With(zap.String("component", "record_store_gorm")),
	}, nil
}

func (s *GormRecordStore) Put(ctx context.Context, rec *types.MemoryRecord) error {
	if rec == nil || rec.ID == "" {
		return types.NewError(types.ErrInvalidRecord, "record with ID is required")
	}

	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(row).Error
}

func (s *GormRecordStore) Get(ctx context.Context, id string) (*types.MemoryRecord, error) {
	var row memoryRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (s *GormRecordStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&memoryRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormRecordStore) List(ctx context.Context, filter RecordFilter) ([]*types.MemoryRecord, error) {
	q := s.db.WithContext(ctx).Model(&memoryRow{})
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if filter.CreatedAfter != nil {
		q = q.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		q = q.Where("created_at <= ?", *filter.CreatedBefore)
	}
	q = q.Order("created_at DESC, id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []memoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	recs := make([]*types.MemoryRecord, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			s.logger.Warn("skipping undecodable record",
				zap.String("id", rows[i].ID), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *GormRecordStore) Count(ctx context.Context, agentID string) (int, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&memoryRow{})
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *GormRecordStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec *types.MemoryRecord) (*memoryRow, error) {
	row := &memoryRow{
		ID:         rec.ID,
		AgentID:    rec.AgentID,
		UserID:     rec.UserID,
		Type:       string(rec.Type),
		Content:    rec.Content,
		Importance: rec.Importance,
		CreatedAt:  rec.CreatedAt,
	}
	if len(rec.Embedding) > 0 {
		data, err := json.Marshal(rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding: %w", err)
		}
		row.Embedding = string(data)
	}
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		row.Metadata = string(data)
	}
	return row, nil
}

func fromRow(row *memoryRow) (*types.MemoryRecord, error) {
	rec := &types.MemoryRecord{
		ID:         row.ID,
		AgentID:    row.AgentID,
		UserID:     row.UserID,
		Type:       types.MemoryType(row.Type),
		Content:    row.Content,
		Importance: row.Importance,
		CreatedAt:  row.CreatedAt,
	}
	if row.Embedding != "" {
		if err := json.Unmarshal([]byte(row.Embedding), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return rec, nil
}

var _ RecordStore = (*GormRecordStore)(nil)
