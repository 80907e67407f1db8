// Package backend serves the describe and generate operations over HTTP so
// thin clients can reach the AI service through one endpoint.
package backend

import (
	"context"
	"encoding/base64"
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

// Transformer performs the two AI calls the endpoints expose.
type Transformer interface {
	Analyze(ctx context.Context, image state.Snapshot) (string, error)
	Generate(ctx context.Context, description string) (string, error)
}

// Server routes requests to a Transformer.
type Server struct {
	svc      Transformer
	maxBytes int64
	mux      *http.ServeMux
}

// NewServer builds the handler. maxBytes <= 0 uses state.DefaultMaxUpload.
func NewServer(svc Transformer, maxBytes int64) *Server {
	if maxBytes <= 0 {
		maxBytes = state.DefaultMaxUpload
	}
	s := &Server{svc: svc, maxBytes: maxBytes, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /analyze-drawing", s.handleAnalyzeDrawing)
	s.mux.HandleFunc("POST /analyze-from-base64", s.handleAnalyzeBase64)
	s.mux.HandleFunc("POST /generate-artwork", s.handleGenerate)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the backend on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logging.Logger().Info("[backend] listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type analyzeBase64Request struct {
	Base64Image string `json:"base64_image"`
}

type descriptionResponse struct {
	Description string `json:"description"`
}

type generateRequest struct {
	Description string `json:"description"`
}

type imageURLResponse struct {
	ImageURL string `json:"image_url"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleAnalyzeDrawing(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("missing file: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}
	if int64(len(data)) > s.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, state.ErrFileTooLarge.Error())
		return
	}
	mt := header.Header.Get("Content-Type")
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(data)
	}
	s.analyze(w, r, state.NewSnapshot(mt, data))
}

func (s *Server) handleAnalyzeBase64(w http.ResponseWriter, r *http.Request) {
	var req analyzeBase64Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBytes*2)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request: %v", err))
		return
	}
	snap, err := decodeBase64Image(req.Base64Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.analyze(w, r, snap)
}

// decodeBase64Image accepts either a data URL or bare base64.
func decodeBase64Image(v string) (state.Snapshot, error) {
	if strings.HasPrefix(v, "data:") {
		return state.ParseDataURI(v)
	}
	if _, after, ok := strings.Cut(v, "base64,"); ok {
		v = after
	}
	data, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("invalid base64 image: %w", err)
	}
	if len(data) == 0 {
		return state.Snapshot{}, state.ErrEmptyFile
	}
	return state.NewSnapshot(http.DetectContentType(data), data), nil
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, snap state.Snapshot) {
	if snap.IsZero() {
		writeError(w, http.StatusBadRequest, state.ErrEmptyFile.Error())
		return
	}
	logging.Logger().Info("[backend] analyzing image", "type", snap.MediaType(), "bytes", snap.Len())
	desc, err := s.svc.Analyze(r.Context(), snap)
	if err != nil {
		logging.Logger().Error("[backend] analyze failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing image: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, descriptionResponse{Description: desc})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusUnprocessableEntity, "description is required")
		return
	}
	logging.Logger().Info("[backend] generating artwork", "chars", len(req.Description))
	url, err := s.svc.Generate(r.Context(), req.Description)
	if err != nil {
		logging.Logger().Error("[backend] generate failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error generating image: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, imageURLResponse{ImageURL: url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Warn("[backend] failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
