package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"patrol-session-backend/internal/geo"
	"patrol-session-backend/internal/patrol"
)

type startPatrolRequest struct {
	Location geo.Location `json:"location"`
}

// StartPatrol handles POST /api/patrol/start.
func (h *Handler) StartPatrol(c *gin.Context) {
	var req startPatrolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.orch.StartPatrol(c.Request.Context(), req.Location)
	h.respond(c, err)
}

type faceScanRequest struct {
	MatchScore *float64     `json:"match_score"`
	Location   geo.Location `json:"location"`
}

// FaceScanCompleted handles POST /api/patrol/face-scan. The terminal calls it
// after the external face-verification flow finishes; a suspended start-patrol
// request resumes here.
func (h *Handler) FaceScanCompleted(c *gin.Context) {
	var req faceScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.orch.OnFaceScanCompleted(c.Request.Context(), req.MatchScore, req.Location)
	h.respond(c, err)
}

// CapturePhoto handles POST /api/patrol/capture (multipart form: photo,
// checkpoint_id, latitude, longitude, accuracy, mocked). The uploaded photo is
// staged to a temp file that the orchestrator removes once the scan is
// confirmed.
func (h *Handler) CapturePhoto(c *gin.Context) {
	checkpointID, err := strconv.ParseInt(c.PostForm("checkpoint_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkpoint_id"})
		return
	}

	loc, err := locationFromForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo is required"})
		return
	}

	photoPath := filepath.Join(h.photoDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, photoPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage photo"})
		return
	}

	err = h.orch.CapturePhoto(c.Request.Context(), checkpointID, photoPath, loc)
	h.respond(c, err)
}

// CancelCapture handles POST /api/patrol/cancel. The session is left
// untouched and stays resumable.
func (h *Handler) CancelCapture(c *gin.Context) {
	h.orch.CancelCapture()
	c.Status(http.StatusNoContent)
}

// GetStatus handles GET /api/patrol/status.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Status())
}

// GetCheckpoints handles GET /api/patrol/checkpoints.
func (h *Handler) GetCheckpoints(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.orch.Status().Points})
}

// respond maps orchestrator outcomes onto HTTP statuses. Business failures are
// not 500s: the orchestrator turned them into user-facing messages already.
func (h *Handler) respond(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.orch.Status())
	case errors.Is(err, patrol.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, patrol.ErrVerificationRequired):
		c.JSON(http.StatusAccepted, h.orch.Status())
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}

func locationFromForm(c *gin.Context) (geo.Location, error) {
	lat, err := strconv.ParseFloat(c.PostForm("latitude"), 64)
	if err != nil {
		return geo.Location{}, errors.New("invalid latitude")
	}
	lng, err := strconv.ParseFloat(c.PostForm("longitude"), 64)
	if err != nil {
		return geo.Location{}, errors.New("invalid longitude")
	}
	accuracy, err := strconv.ParseFloat(c.PostForm("accuracy"), 64)
	if err != nil {
		return geo.Location{}, errors.New("invalid accuracy")
	}
	mocked := c.PostForm("mocked") == "true"
	return geo.Location{Latitude: lat, Longitude: lng, Accuracy: accuracy, Mocked: mocked}, nil
}
