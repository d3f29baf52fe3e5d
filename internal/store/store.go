// Package store keeps a history of action outcomes in sqlite, written
// by batch runs so an operator can audit what was tapped where.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"feedtap/internal/actions"
)

// Record is one stored outcome row.
type Record struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	RunID    string `gorm:"uniqueIndex;size:36"`
	BatchID  string `gorm:"index;size:36"`
	DeviceID string `gorm:"index"`
	Action   string `gorm:"index"`
	Target   string

	Success bool
	Error   string

	X          int
	Y          int
	Confidence float32
	RetryCount int

	Comment        string
	TargetUsername string
	DurationMs     int64
}

// Store wraps the sqlite handle. Safe for concurrent Append from batch
// workers; gorm serializes on the single connection.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open creates or migrates the outcome table at path. ":memory:" works
// for tests.
func Open(path string, zlog *zap.Logger) (*Store, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db, log: zlog.With(zap.String("component", "store"))}, nil
}

// Append writes one outcome under a batch id.
func (s *Store) Append(batchID string, out actions.Outcome) error {
	rec := Record{
		CreatedAt:      out.StartedAt,
		RunID:          out.RunID,
		BatchID:        batchID,
		DeviceID:       out.DeviceID,
		Action:         out.Action,
		Target:         out.Target,
		Success:        out.Success,
		Error:          string(out.Error),
		X:              out.X,
		Y:              out.Y,
		Confidence:     out.Confidence,
		RetryCount:     out.RetryCount,
		Comment:        out.Comment,
		TargetUsername: out.TargetUsername,
		DurationMs:     out.DurationMs,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("append outcome %s: %w", out.RunID, err)
	}
	return nil
}

// Recent returns the newest n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	var recs []Record
	err := s.db.Order("id desc").Limit(n).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return recs, nil
}

// Batch returns every record of one batch in insertion order.
func (s *Store) Batch(batchID string) ([]Record, error) {
	var recs []Record
	err := s.db.Where("batch_id = ?", batchID).Order("id asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query batch %s: %w", batchID, err)
	}
	return recs, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
