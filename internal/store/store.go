package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"patrol-session-backend/internal/model"
)

// snapshotKey is the fixed key under which the single session snapshot lives.
const snapshotKey = "patrol_session_snapshot"

// SnapshotStore persists exactly one patrol session snapshot.
type SnapshotStore interface {
	Get(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Clear(ctx context.Context) error
	DB() *gorm.DB
}

// gormSnapshotStore implements SnapshotStore on a single gorm-backed row,
// with an in-memory cache to avoid redundant deserialization.
type gormSnapshotStore struct {
	db     *gorm.DB
	cached *Snapshot
}

// NewGormStore creates a new gorm-backed snapshot store.
func NewGormStore(db *gorm.DB) SnapshotStore {
	return &gormSnapshotStore{db: db}
}

func (s *gormSnapshotStore) DB() *gorm.DB {
	return s.db
}

// Get returns the cached snapshot if present, otherwise loads and decodes the
// persisted record. A corrupt or undecodable record is treated as "no snapshot":
// the persisted state is cleared and nil is returned, never a decode error.
func (s *gormSnapshotStore) Get(ctx context.Context) (*Snapshot, error) {
	if s.cached != nil {
		return s.cached, nil
	}

	var rec model.SnapshotRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", snapshotKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot record: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(rec.Value), &snap); err != nil {
		log.Printf("Warning: snapshot record is corrupt, clearing it: %v", err)
		if clearErr := s.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("failed to clear corrupt snapshot: %w", clearErr)
		}
		return nil, nil
	}
	if snap.Points == nil {
		snap.Points = []PatrolPoint{}
	}

	s.cached = &snap
	return s.cached, nil
}

// Save overwrites the cached value and the persisted record in a single write.
func (s *gormSnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	rec := model.SnapshotRecord{Key: snapshotKey, Value: string(raw)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	cp := *snap
	s.cached = &cp
	return nil
}

// Clear removes the cached value and the persisted record.
func (s *gormSnapshotStore) Clear(ctx context.Context) error {
	s.cached = nil
	err := s.db.WithContext(ctx).Delete(&model.SnapshotRecord{}, "key = ?", snapshotKey).Error
	if err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}
