package model

import "time"

// SnapshotRecord is the single-row key-value record backing the session
// snapshot store. The value is the JSON-encoded snapshot.
type SnapshotRecord struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
