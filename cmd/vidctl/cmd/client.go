package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"vidrelay/internal/ledger"
	"vidrelay/internal/models"
)

// RelayClient handles calls to the vidrelay HTTP API.
type RelayClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRelayClient creates a client for the given server URL.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// UploadedFile is one accepted image from POST /api/upload.
type UploadedFile struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	DataURL  string `json:"data_url"`
}

// GenerateResponse is the reply of POST /api/generate.
type GenerateResponse struct {
	SessionID string   `json:"session_id"`
	TaskIDs   []string `json:"task_ids"`
}

// StatsResponse is the reply of GET /api/admin/stats.
type StatsResponse struct {
	Users   []ledger.Session  `json:"users"`
	APIKeys []ledger.KeyUsage `json:"api_keys"`
	System  struct {
		TotalUsers       int `json:"total_users"`
		TotalTasks       int `json:"total_tasks"`
		ActiveWebsockets int `json:"active_websockets"`
		TotalAPIKeys     int `json:"total_api_keys"`
	} `json:"system"`
}

// Upload sends local image files to POST /api/upload.
func (c *RelayClient) Upload(paths []string) ([]UploadedFile, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(p)))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("failed to build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/upload", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Files []UploadedFile `json:"files"`
	}
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return result.Files, nil
}

// Generate sends POST /api/generate.
func (c *RelayClient) Generate(req models.GenerationRequest) (*GenerateResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	var result GenerateResponse
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTask sends GET /api/task/{id}.
func (c *RelayClient) GetTask(taskID string) (*models.Job, error) {
	httpReq, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/task/%s", c.BaseURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var job models.Job
	if err := c.do(httpReq, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Stats sends GET /api/admin/stats.
func (c *RelayClient) Stats() (*StatsResponse, error) {
	httpReq, err := http.NewRequest(http.MethodGet, c.BaseURL+"/api/admin/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var result StatsResponse
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RelayClient) do(httpReq *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
