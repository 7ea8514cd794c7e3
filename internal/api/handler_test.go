package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"patrol-session-backend/config"
	"patrol-session-backend/internal/model"
	"patrol-session-backend/internal/patrol"
	"patrol-session-backend/internal/remote"
	"patrol-session-backend/internal/store"
	"patrol-session-backend/internal/verify"
)

type stubBackend struct{}

func (stubBackend) AttendanceStatus(ctx context.Context) (*remote.AttendanceStatus, error) {
	return nil, fmt.Errorf("upstream unavailable")
}
func (stubBackend) CreateTask(ctx context.Context, title string) (string, error) {
	return "", fmt.Errorf("upstream unavailable")
}
func (stubBackend) StartSession(ctx context.Context, taskID string, matchScore *float64) (int64, error) {
	return 0, fmt.Errorf("upstream unavailable")
}
func (stubBackend) ListCheckpoints(ctx context.Context, sessionID int64) ([]store.PatrolPoint, error) {
	return nil, fmt.Errorf("upstream unavailable")
}
func (stubBackend) UploadPhoto(ctx context.Context, in remote.UploadInput) (string, error) {
	return "", fmt.Errorf("upstream unavailable")
}
func (stubBackend) ConfirmScan(ctx context.Context, in remote.ScanInput) (*remote.ScanResult, error) {
	return nil, fmt.Errorf("upstream unavailable")
}

func setupRouter(t *testing.T, webpushOptions *webpush.Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SnapshotRecord{}, &model.PushSubscription{}))

	snapshots := store.NewGormStore(db)
	cfg := &config.Config{}
	cfg.Patrol = config.PatrolConfig{MaxSessionsPerShift: 4, MinAccuracyMeters: 50, VerificationTTL: time.Minute, PhotoDir: t.TempDir()}
	cfg.Server = config.ServerConfig{RateLimitPerSec: 100, RateLimitBurst: 100, CacheTTLSeconds: 1}

	var be stubBackend
	orch := patrol.New(context.Background(), &cfg.Patrol, snapshots, be, be, be, verify.NewStore(time.Minute), nil)

	return NewRouter(cfg, orch, snapshots, webpushOptions)
}

func TestGetStatusEmpty(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/patrol/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session_active":false`)
}

func TestStartPatrolRejectsBadBody(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/patrol/start", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartPatrolSurfacesUpstreamFailure(t *testing.T) {
	router := setupRouter(t, nil)

	body := `{"location":{"latitude":-6.2,"longitude":106.8,"accuracy":10}}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/patrol/start", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "connection problem")
}

func TestCaptureRequiresCheckpointID(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/patrol/capture", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "checkpoint_id")
}

func TestPutSubscription(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/api/subscriptions", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := `{"endpoint":"https://example.com/push","p256dh":"key","auth":"auth"}`
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPut, "/api/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/subscriptions?endpoint=https://example.com/push", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupRouter(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router = setupRouter(t, &webpush.Options{VAPIDPublicKey: "pub"})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}
