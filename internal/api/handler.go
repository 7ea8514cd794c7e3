package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"patrol-session-backend/internal/patrol"
	"patrol-session-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	orch     *patrol.Orchestrator
	store    store.SnapshotStore
	webpush  *webpush.Options
	photoDir string
}

// NewHandler creates a new API handler.
func NewHandler(orch *patrol.Orchestrator, s store.SnapshotStore, webpushOptions *webpush.Options, photoDir string) *Handler {
	return &Handler{
		orch:     orch,
		store:    s,
		webpush:  webpushOptions,
		photoDir: photoDir,
	}
}
