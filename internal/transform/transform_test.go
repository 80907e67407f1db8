package transform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"DrawingTransformer/internal/config"
	"DrawingTransformer/internal/state"
)

var testImage = state.NewSnapshot("image/png", []byte("png-bytes"))

func TestHTTPClient_AnalyzeAndGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		switch r.URL.Path {
		case "/analyze-from-base64":
			var req AnalyzeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			if req.Base64Image != testImage.DataURI() {
				t.Errorf("base64_image = %q", req.Base64Image)
			}
			json.NewEncoder(w).Encode(AnalyzeResponse{Description: " a cat \n"})
		case "/generate-artwork":
			var req GenerateRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Description != "a cat" {
				t.Errorf("description = %q", req.Description)
			}
			json.NewEncoder(w).Encode(GenerateResponse{ImageURL: "https://img/cat.png"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	desc, err := c.Analyze(context.Background(), testImage)
	if err != nil || desc != "a cat" {
		t.Fatalf("Analyze = %q, %v", desc, err)
	}
	url, err := c.Generate(context.Background(), desc)
	if err != nil || url != "https://img/cat.png" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
}

func TestHTTPClient_ErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"Error analyzing image: quota"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Analyze(context.Background(), testImage)
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if se.Op != "analyze" || se.Status != 500 || se.Reason != "Error analyzing image: quota" {
		t.Errorf("ServiceError = %+v", se)
	}
	if !se.Retryable() {
		t.Error("5xx should be retryable")
	}
}

func TestHTTPClient_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	if _, err := c.Analyze(context.Background(), testImage); err == nil {
		t.Error("Analyze accepted empty description")
	}
	if _, err := c.Generate(context.Background(), "x"); err == nil {
		t.Error("Generate accepted empty image url")
	}
}

func TestOpenAIClient_Requests(t *testing.T) {
	var chatBody, imageBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk" {
			t.Errorf("Authorization = %q", got)
		}
		switch r.URL.Path {
		case "/v1/chat/completions":
			json.NewDecoder(r.Body).Decode(&chatBody)
			io.WriteString(w, `{"choices":[{"message":{"content":"a red house"}}]}`)
		case "/v1/images/generations":
			json.NewDecoder(r.Body).Decode(&imageBody)
			io.WriteString(w, `{"data":[{"url":"https://img/house.png"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk", time.Second)
	desc, err := c.Analyze(context.Background(), testImage)
	if err != nil || desc != "a red house" {
		t.Fatalf("Analyze = %q, %v", desc, err)
	}
	if chatBody["model"] != defaultVisionModel || chatBody["max_tokens"] != float64(visionMaxTokens) {
		t.Errorf("chat body = %v", chatBody)
	}
	if !strings.Contains(mustJSON(t, chatBody), testImage.DataURI()) {
		t.Error("chat request does not carry the image data URI")
	}

	url, err := c.Generate(context.Background(), desc)
	if err != nil || url != "https://img/house.png" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
	if imageBody["size"] != "1024x1024" || imageBody["n"] != float64(1) || imageBody["style"] != "vivid" {
		t.Errorf("image body = %v", imageBody)
	}
	if p, _ := imageBody["prompt"].(string); !strings.Contains(p, "a red house") {
		t.Errorf("prompt does not embed description: %q", p)
	}
}

func TestOpenAIClient_Azure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "az" {
			t.Errorf("api-key = %q", got)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-06-01" {
			t.Errorf("api-version = %q", got)
		}
		switch r.URL.Path {
		case "/openai/deployments/vision/chat/completions":
			io.WriteString(w, `{"choices":[{"message":{"content":"a boat"}}]}`)
		case "/openai/deployments/dalle/images/generations":
			io.WriteString(w, `{"data":[{"b64_json":"QUJD"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAzureClient(srv.URL, "az", "2024-06-01", time.Second)
	c.VisionModel, c.ImageModel = "vision", "dalle"
	if desc, err := c.Analyze(context.Background(), testImage); err != nil || desc != "a boat" {
		t.Fatalf("Analyze = %q, %v", desc, err)
	}
	url, err := c.Generate(context.Background(), "a boat")
	if err != nil || url != "data:image/png;base64,QUJD" {
		t.Fatalf("Generate = %q, %v", url, err)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"content policy","code":"content_policy_violation"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "sk", time.Second).Generate(context.Background(), "x")
	var se *ServiceError
	if !errors.As(err, &se) || se.Reason != "content policy" || se.Retryable() {
		t.Fatalf("err = %v", err)
	}
}

type flakyService struct {
	fails int
	err   error
	calls atomic.Int32
}

func (f *flakyService) Analyze(ctx context.Context, _ state.Snapshot) (string, error) {
	if int(f.calls.Add(1)) <= f.fails {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyService) Generate(ctx context.Context, _ string) (string, error) {
	return f.Analyze(ctx, state.Snapshot{})
}

func TestRetrying(t *testing.T) {
	tests := []struct {
		name      string
		fails     int
		err       error
		wantCalls int32
		wantErr   bool
	}{
		{"succeeds after transient", 2, &ServiceError{Op: "analyze", Status: 503}, 3, false},
		{"gives up", 5, &ServiceError{Op: "analyze", Status: 429}, 3, true},
		{"client error not retried", 5, &ServiceError{Op: "analyze", Status: 400}, 1, true},
		{"plain error not retried", 5, errors.New("boom"), 1, true},
		{"cancellation not retried", 5, &ServiceError{Op: "analyze", Err: context.Canceled}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &flakyService{fails: tt.fails, err: tt.err}
			r := &Retrying{Service: f, MaxRetries: 2, BaseDelay: time.Millisecond}
			_, err := r.Analyze(context.Background(), testImage)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := f.calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetrying_StopsOnContext(t *testing.T) {
	f := &flakyService{fails: 10, err: &ServiceError{Op: "generate", Status: 500}}
	r := &Retrying{Service: f, MaxRetries: 5, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Generate(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestNew(t *testing.T) {
	svc, err := New(config.ServiceConfig{Provider: config.ProviderHTTP, BaseURL: "http://x", MaxRetries: 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.(*HTTPClient); !ok {
		t.Errorf("New(http, no retries) = %T", svc)
	}

	svc, err = New(config.ServiceConfig{Provider: config.ProviderAzure, BaseURL: "http://x", VisionModel: "v", ImageModel: "i", MaxRetries: 1})
	if err != nil {
		t.Fatal(err)
	}
	r, ok := svc.(*Retrying)
	if !ok {
		t.Fatalf("New(azure, retries) = %T", svc)
	}
	if c, ok := r.Service.(*OpenAIClient); !ok || !c.Azure || c.VisionModel != "v" {
		t.Errorf("wrapped = %#v", r.Service)
	}

	if _, err := New(config.ServiceConfig{Provider: "nope"}); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{Op: "generate", Status: 502, Reason: "bad gateway"}
	if got, want := err.Error(), "generate: service error (502): bad gateway"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
