package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"patrol-session-backend/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SnapshotRecord{}))
	return db
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }
func intPtr(n int) *int           { return &n }
func int64Ptr(n int64) *int64     { return &n }

func TestSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snap := &Snapshot{
		TaskID:    strPtr("task-42"),
		SessionID: int64Ptr(9001),
		Points: []PatrolPoint{
			{ID: 1, Name: "Gate A", Description: strPtr("front gate"), Latitude: floatPtr(-6.2), Longitude: floatPtr(106.8), Radius: floatPtr(30), Scanned: true},
			{ID: 2, Name: "Warehouse"},
		},
		CompletedSessions: 2,
		ShiftKey:          "2026-08-31 07:02:11|Pagi|07:00|15:00",
		Remaining:         intPtr(1),
		SessionComplete:   false,
	}

	s := NewGormStore(db)
	require.NoError(t, s.Save(ctx, snap))

	// A second store instance exercises the decode path instead of the cache.
	fresh := NewGormStore(db)
	got, err := fresh.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, snap, got)
}

func TestSnapshotRoundTripEmptyFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snap := &Snapshot{Points: []PatrolPoint{}}

	s := NewGormStore(db)
	require.NoError(t, s.Save(ctx, snap))

	got, err := NewGormStore(db).Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.TaskID)
	assert.Nil(t, got.SessionID)
	assert.Nil(t, got.Remaining)
	assert.NotNil(t, got.Points)
	assert.Empty(t, got.Points)
	assert.False(t, got.SessionComplete)
}

func TestGetReturnsNilWhenEmpty(t *testing.T) {
	s := NewGormStore(newTestDB(t))
	got, err := s.Get(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetUsesCache(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := NewGormStore(db)
	require.NoError(t, s.Save(ctx, &Snapshot{ShiftKey: "k", Points: []PatrolPoint{}}))

	// Wipe the underlying row; the cached value must still be served.
	require.NoError(t, db.Delete(&model.SnapshotRecord{}, "1 = 1").Error)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "k", got.ShiftKey)
}

func TestCorruptSnapshotSelfHeals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := model.SnapshotRecord{Key: "patrol_session_snapshot", Value: "{not json"}
	require.NoError(t, db.Create(&rec).Error)

	s := NewGormStore(db)
	got, err := s.Get(ctx)
	assert.NoError(t, err, "a corrupt record must never surface a decode error")
	assert.Nil(t, got)

	var count int64
	db.Model(&model.SnapshotRecord{}).Count(&count)
	assert.Zero(t, count, "the corrupt record should have been cleared")
}

func TestClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := NewGormStore(db)
	require.NoError(t, s.Save(ctx, &Snapshot{ShiftKey: "k", Points: []PatrolPoint{}}))
	require.NoError(t, s.Clear(ctx))

	got, err := s.Get(ctx)
	assert.NoError(t, err)
	assert.Nil(t, got)

	var count int64
	db.Model(&model.SnapshotRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestNextUnscanned(t *testing.T) {
	testCases := []struct {
		name     string
		points   []PatrolPoint
		expected int
	}{
		{"empty list", nil, -1},
		{"all unscanned", []PatrolPoint{{ID: 1}, {ID: 2}}, 0},
		{"first scanned", []PatrolPoint{{ID: 1, Scanned: true}, {ID: 2}}, 1},
		{"all scanned", []PatrolPoint{{ID: 1, Scanned: true}, {ID: 2, Scanned: true}}, -1},
		{"hole in the middle never happens but order still wins", []PatrolPoint{{ID: 1, Scanned: true}, {ID: 2}, {ID: 3}}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NextUnscanned(tc.points))
		})
	}
}

func TestCountUnscanned(t *testing.T) {
	assert.Zero(t, CountUnscanned(nil))
	assert.Equal(t, 2, CountUnscanned([]PatrolPoint{{ID: 1}, {ID: 2, Scanned: true}, {ID: 3}}))
}
