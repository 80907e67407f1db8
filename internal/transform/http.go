package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/state"
)

// HTTPClient calls a transformation backend exposing
// /analyze-from-base64 and /generate-artwork.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a backend client. timeout <= 0 means two minutes.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeRequest is the body of POST /analyze-from-base64.
type AnalyzeRequest struct {
	Base64Image string `json:"base64_image"`
}

// AnalyzeResponse is returned by both analyze endpoints.
type AnalyzeResponse struct {
	Description string `json:"description"`
}

// GenerateRequest is the body of POST /generate-artwork.
type GenerateRequest struct {
	Description string `json:"description"`
}

type GenerateResponse struct {
	ImageURL string `json:"image_url"`
}

// ErrorResponse is the backend's error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (c *HTTPClient) Analyze(ctx context.Context, image state.Snapshot) (string, error) {
	var out AnalyzeResponse
	if err := c.post(ctx, "analyze", "/analyze-from-base64", AnalyzeRequest{Base64Image: image.DataURI()}, &out); err != nil {
		return "", err
	}
	desc := strings.TrimSpace(out.Description)
	if desc == "" {
		return "", &ServiceError{Op: "analyze", Reason: "empty description"}
	}
	return desc, nil
}

func (c *HTTPClient) Generate(ctx context.Context, description string) (string, error) {
	var out GenerateResponse
	if err := c.post(ctx, "generate", "/generate-artwork", GenerateRequest{Description: description}, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", &ServiceError{Op: "generate", Reason: "empty image url"}
	}
	return out.ImageURL, nil
}

func (c *HTTPClient) post(ctx context.Context, op, path string, in, out any) error {
	start := time.Now()
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Op: op, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceError{Op: op, Status: resp.StatusCode, Reason: "failed to read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Detail != "" {
			return &ServiceError{Op: op, Status: resp.StatusCode, Reason: apiErr.Detail}
		}
		return &ServiceError{Op: op, Status: resp.StatusCode, Reason: strings.TrimSpace(string(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &ServiceError{Op: op, Status: resp.StatusCode, Reason: "failed to parse response", Err: err}
	}
	logging.Logger().Debug("[transform] backend call", "op", op, "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// isContextErr reports whether err stems from ctx cancellation or deadline.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
