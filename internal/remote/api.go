package remote

import (
	"fmt"

	"patrol-session-backend/internal/geo"
	"patrol-session-backend/internal/store"
)

// apiEnvelope models the top-level structure of every upstream API response.
type apiEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is a business failure reported by the upstream API (non-zero code).
// The server's message is passed through largely verbatim to the user.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API returned non-zero application code: %d", e.Code)
}

// AttendanceStatus is the current attendance/shift record for the user.
type AttendanceStatus struct {
	CheckInTime   *string `json:"check_in_time"`
	CheckOutTime  *string `json:"check_out_time"`
	ShiftName     string  `json:"shift_name"`
	ShiftStart    string  `json:"shift_start"`
	ShiftEnd      string  `json:"shift_end"`
	CannotCheckIn bool    `json:"cannot_check_in"`
	Reason        string  `json:"reason"`
}

type attendanceResponse struct {
	apiEnvelope
	Data AttendanceStatus `json:"data"`
}

type createTaskResponse struct {
	apiEnvelope
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type startSessionResponse struct {
	apiEnvelope
	Data struct {
		SessionID int64 `json:"session_id"`
	} `json:"data"`
}

type checkpointsResponse struct {
	apiEnvelope
	Data struct {
		Items []store.PatrolPoint `json:"items"`
	} `json:"data"`
}

type uploadResponse struct {
	apiEnvelope
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ScanResult is the server's answer to a checkpoint scan confirmation.
type ScanResult struct {
	Remaining *int `json:"remaining"`
	Completed bool `json:"completed"`
}

type scanResponse struct {
	apiEnvelope
	Data ScanResult `json:"data"`
}

// UploadInput carries a checkpoint photo and its context to the media upload
// endpoint.
type UploadInput struct {
	TaskID                string
	PhotoPath             string
	VerificationSessionID string
	Location              geo.Location
	Meta                  map[string]string
}

// ScanInput identifies the checkpoint being confirmed.
type ScanInput struct {
	CheckpointID int64
	SessionID    int64
	PhotoURL     string
	Location     geo.Location
}
