// Package videoapi talks to the upstream video generation service: submit a
// generation, query its status and resolve the finished file's download URL.
package videoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TraceIDUnavailable is recorded when the upstream sent no trace header.
const TraceIDUnavailable = "unavailable"

// Upstream job states reported by the status endpoint.
const (
	StatusQueueing   = "Queueing"
	StatusProcessing = "Processing"
	StatusSuccess    = "Success"
	StatusFail       = "Fail"
)

// Header lookups are case-insensitive, which also covers the lower-case
// variants the service sometimes sends.
var traceHeaders = []string{"X-Minimax-Trace-Id", "Trace-ID"}

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("videoapi: api key is required")

// APIError is a non-2xx reply from the upstream service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is bound to one base URL and credential.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// SubmitResult is the outcome of a create call. TraceID is filled even when
// Submit returns an error, as long as a response arrived.
type SubmitResult struct {
	TaskID    string
	TraceID   string
	StatusMsg string
}

// PollResult is one status query.
type PollResult struct {
	Status string
	FileID string
}

type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type submitResponse struct {
	TaskID   string   `json:"task_id"`
	BaseResp baseResp `json:"base_resp"`
}

type queryResponse struct {
	TaskID   string   `json:"task_id"`
	Status   string   `json:"status"`
	FileID   flexID   `json:"file_id"`
	BaseResp baseResp `json:"base_resp"`
}

// flexID accepts an identifier sent either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type retrieveResponse struct {
	File struct {
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	BaseResp baseResp `json:"base_resp"`
}

// New constructs a client with a bounded HTTP timeout.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}, nil
}

// Submit posts a generation payload.
func (c *Client) Submit(ctx context.Context, payload any) (SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/video_generation", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, raw, err := c.do(req)
	if resp == nil {
		return SubmitResult{}, err
	}
	res := SubmitResult{TraceID: traceID(resp.Header)}
	if err != nil {
		return res, err
	}

	if !isSuccess(resp.StatusCode) {
		return res, apiError(resp.StatusCode, raw)
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return res, fmt.Errorf("decode submit response: %w", err)
	}
	res.TaskID = decoded.TaskID
	res.StatusMsg = decoded.BaseResp.StatusMsg
	return res, nil
}

// Poll queries the status of an upstream job.
func (c *Client) Poll(ctx context.Context, taskID string) (PollResult, error) {
	endpoint := c.baseURL + "/query/video_generation?" + url.Values{"task_id": {taskID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("build request: %w", err)
	}
	resp, raw, err := c.do(req)
	if err != nil {
		return PollResult{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return PollResult{}, apiError(resp.StatusCode, raw)
	}
	var decoded queryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return PollResult{}, fmt.Errorf("decode status response: %w", err)
	}
	return PollResult{Status: decoded.Status, FileID: string(decoded.FileID)}, nil
}

// ResolveDownload maps a finished file id to a transient download URL. An
// empty URL with a nil error means the service answered without one.
func (c *Client) ResolveDownload(ctx context.Context, fileID string) (string, error) {
	endpoint := c.baseURL + "/files/retrieve?" + url.Values{"file_id": {fileID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, raw, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.StatusCode) {
		return "", apiError(resp.StatusCode, raw)
	}
	var decoded retrieveResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode retrieve response: %w", err)
	}
	return decoded.File.DownloadURL, nil
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, raw, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func traceID(h http.Header) string {
	for _, name := range traceHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return TraceIDUnavailable
}

// apiError extracts base_resp.status_msg when the body is JSON, otherwise it
// falls back to the generic status code message.
func apiError(code int, raw []byte) *APIError {
	var decoded struct {
		BaseResp baseResp `json:"base_resp"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		return &APIError{StatusCode: code, Message: decoded.BaseResp.StatusMsg}
	}
	return &APIError{StatusCode: code}
}
