package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"patrol-session-backend/config"
	"patrol-session-backend/internal/store"
)

// Client talks to the upstream workforce-management API on behalf of the
// patrol orchestrator.
type Client struct {
	cfg    *config.RemoteConfig
	client *http.Client
}

// NewClient creates and initializes a new upstream API client.
func NewClient(cfg *config.RemoteConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// AttendanceStatus fetches the user's current attendance/shift record.
func (c *Client) AttendanceStatus(ctx context.Context) (*AttendanceStatus, error) {
	var resp attendanceResponse
	if err := c.doJSON(ctx, http.MethodGet, "/attendance/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreateTask creates a task with the given optional title and returns its id.
func (c *Client) CreateTask(ctx context.Context, title string) (string, error) {
	payload := map[string]any{"title": title}
	var resp createTaskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", payload, &resp); err != nil {
		return "", err
	}
	return resp.Data.TaskID, nil
}

// StartSession starts a remote patrol session, forwarding the verification
// match score when one is available.
func (c *Client) StartSession(ctx context.Context, taskID string, matchScore *float64) (int64, error) {
	payload := map[string]any{"task_id": taskID}
	if matchScore != nil {
		payload["match_score"] = *matchScore
	}
	var resp startSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/patrol/sessions", payload, &resp); err != nil {
		return 0, err
	}
	return resp.Data.SessionID, nil
}

// ListCheckpoints fetches the ordered checkpoint list for a session.
func (c *Client) ListCheckpoints(ctx context.Context, sessionID int64) ([]store.PatrolPoint, error) {
	path := fmt.Sprintf("/patrol/sessions/%d/checkpoints", sessionID)
	var resp checkpointsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Items, nil
}

// UploadPhoto uploads a checkpoint photo and returns the stored photo URL.
func (c *Client) UploadPhoto(ctx context.Context, in UploadInput) (string, error) {
	f, err := os.Open(in.PhotoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open photo %q: %w", in.PhotoPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(in.PhotoPath))
	if err != nil {
		return "", fmt.Errorf("failed to create multipart file field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to copy photo into request: %w", err)
	}

	fields := map[string]string{
		"task_id":                 in.TaskID,
		"verification_session_id": in.VerificationSessionID,
		"latitude":                strconv.FormatFloat(in.Location.Latitude, 'f', -1, 64),
		"longitude":               strconv.FormatFloat(in.Location.Longitude, 'f', -1, 64),
	}
	for k, v := range in.Meta {
		fields[k] = v
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write multipart field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/patrol/photos", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Data.URL, nil
}

// ConfirmScan confirms a checkpoint visit with the server.
func (c *Client) ConfirmScan(ctx context.Context, in ScanInput) (*ScanResult, error) {
	payload := map[string]any{
		"checkpoint_id": in.CheckpointID,
		"session_id":    in.SessionID,
		"photo_url":     in.PhotoURL,
		"latitude":      in.Location.Latitude,
		"longitude":     in.Location.Longitude,
	}
	var resp scanResponse
	if err := c.doJSON(ctx, http.MethodPost, "/patrol/scan", payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// doJSON performs a JSON request against the upstream API and decodes the
// envelope into out, which must embed apiEnvelope.
func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out envelopeCarrier) error {
	var bodyReader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	return c.do(req, out)
}

// envelopeCarrier is implemented by all response types embedding apiEnvelope.
type envelopeCarrier interface {
	envelope() apiEnvelope
}

func (e apiEnvelope) envelope() apiEnvelope { return e }

func (c *Client) do(req *http.Request, out envelopeCarrier) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The API reports business failures with a JSON envelope even on
		// non-200 statuses; prefer its message when one is present.
		var env apiEnvelope
		if jsonErr := json.Unmarshal(body, &env); jsonErr == nil && env.Message != "" {
			return &APIError{Code: env.Code, Message: env.Message}
		}
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if env := out.envelope(); env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	return nil
}
