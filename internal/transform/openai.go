package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/state"
)

// OpenAIClient talks to the OpenAI API directly, or to an Azure OpenAI
// resource when Azure is set. Models name deployments on Azure.
type OpenAIClient struct {
	BaseURL     string
	APIKey      string
	APIVersion  string // Azure only
	Azure       bool
	VisionModel string
	ImageModel  string

	httpClient *http.Client
}

const (
	defaultOpenAIURL   = "https://api.openai.com"
	defaultVisionModel = "gpt-4o"
	defaultImageModel  = "dall-e-3"
	defaultAPIVersion  = "2024-02-01"
	visionMaxTokens    = 1500
)

// NewOpenAIClient returns a client for api.openai.com-compatible endpoints.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return newOpenAIClient(baseURL, apiKey, false, timeout)
}

// NewAzureClient returns a client for an Azure OpenAI resource endpoint.
func NewAzureClient(endpoint, apiKey, apiVersion string, timeout time.Duration) *OpenAIClient {
	c := newOpenAIClient(endpoint, apiKey, true, timeout)
	if apiVersion != "" {
		c.APIVersion = apiVersion
	}
	return c
}

func newOpenAIClient(baseURL, apiKey string, azure bool, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		APIVersion:  defaultAPIVersion,
		Azure:       azure,
		VisionModel: defaultVisionModel,
		ImageModel:  defaultImageModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model     string        `json:"model,omitempty"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model   string `json:"model,omitempty"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Analyze asks the vision model for a description of image.
func (c *OpenAIClient) Analyze(ctx context.Context, image state.Snapshot) (string, error) {
	req := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: visionUserPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: image.DataURI()}},
			}},
		},
		MaxTokens: visionMaxTokens,
	}
	if !c.Azure {
		req.Model = c.VisionModel
	}

	var out chatResponse
	if err := c.post(ctx, "analyze", c.endpoint(c.VisionModel, "chat/completions"), req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", &ServiceError{Op: "analyze", Reason: "empty response"}
	}
	desc := strings.TrimSpace(out.Choices[0].Message.Content)
	if desc == "" {
		return "", &ServiceError{Op: "analyze", Reason: "empty description"}
	}
	return desc, nil
}

// Generate asks the image model for one 1024x1024 artwork and returns its
// URL. Inline results are returned as a data URI.
func (c *OpenAIClient) Generate(ctx context.Context, description string) (string, error) {
	req := imageRequest{
		Prompt:  artworkPrompt(description),
		N:       1,
		Size:    "1024x1024",
		Quality: "hd",
		Style:   "vivid",
	}
	if !c.Azure {
		req.Model = c.ImageModel
	}

	var out imageResponse
	if err := c.post(ctx, "generate", c.endpoint(c.ImageModel, "images/generations"), req, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 {
		return "", &ServiceError{Op: "generate", Reason: "empty response"}
	}
	switch d := out.Data[0]; {
	case d.URL != "":
		return d.URL, nil
	case d.B64JSON != "":
		return "data:image/png;base64," + d.B64JSON, nil
	}
	return "", &ServiceError{Op: "generate", Reason: "empty image url"}
}

func (c *OpenAIClient) endpoint(model, path string) string {
	if !c.Azure {
		return c.BaseURL + "/v1/" + path
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.BaseURL, url.PathEscape(model), path, url.QueryEscape(c.APIVersion))
}

func (c *OpenAIClient) post(ctx context.Context, op, endpoint string, in, out any) error {
	start := time.Now()
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Azure {
		req.Header.Set("api-key", c.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

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
		var apiErr apiErrorBody
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &ServiceError{Op: op, Status: resp.StatusCode, Reason: apiErr.Error.Message}
		}
		return &ServiceError{Op: op, Status: resp.StatusCode, Reason: strings.TrimSpace(string(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &ServiceError{Op: op, Status: resp.StatusCode, Reason: "failed to parse response", Err: err}
	}
	logging.Logger().Debug("[transform] model call", "op", op, "azure", c.Azure, "took", time.Since(start).Round(time.Millisecond))
	return nil
}
