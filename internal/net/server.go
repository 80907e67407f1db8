package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"DrawingTransformer/internal/export"
	"DrawingTransformer/internal/logging"
	"DrawingTransformer/internal/pipeline"
	"DrawingTransformer/internal/state"
)

// Outgoing message types.
const (
	TypeHello   = "hello"
	TypeState   = "state"
	TypeCanvas  = "canvas"
	TypePreview = "preview"
	TypeError   = "error"
)

// Command is one message a websocket client sends.
type Command struct {
	Type  string       `json:"type"`
	Point *state.Point `json:"point,omitempty"`
	Color string       `json:"color,omitempty"`
	Width float64      `json:"width,omitempty"`
}

// Hello is sent to every peer right after it connects.
type Hello struct {
	SessionID string         `json:"sessionId"`
	PeerID    string         `json:"peerId"`
	View      pipeline.View  `json:"view"`
	Strokes   []state.Stroke `json:"strokes"`
}

// Server exposes one Session over HTTP and websockets. Every peer sees the
// same canvas and pipeline.
type Server struct {
	ID      string
	session *pipeline.Session
	hub     *Hub
	mux     *http.ServeMux

	upgrader websocket.Upgrader
	unsub    []func()
}

// NewServer subscribes to session and returns a handler for it.
func NewServer(session *pipeline.Session) *Server {
	s := &Server{
		ID:      uuid.NewString(),
		session: session,
		hub:     NewHub(),
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /strokes", s.handleStrokes)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /transform", s.handleTransform)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("GET /sheet.pdf", s.handleSheet)

	s.unsub = append(s.unsub,
		session.Controller.Subscribe(func(v pipeline.View) {
			s.hub.Broadcast(Message{Type: TypeState, Data: v})
		}),
		session.Canvas.Subscribe(func(ev state.DrawingEvent) {
			s.hub.Broadcast(Message{Type: TypeCanvas, Data: ev})
		}),
		session.Source.Subscribe(func(p *state.Preview) {
			s.hub.Broadcast(Message{Type: TypePreview, Data: p})
		}),
	)
	return s
}

// Hub returns the server's peer set.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.mux.ServeHTTP(w, r)
}

// Close unsubscribes from the session. It does not close the session.
func (s *Server) Close() {
	for _, fn := range s.unsub {
		fn()
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logging.Logger().Info("[server] listening", "addr", addr, "session", s.ID)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger().Warn("[server] websocket upgrade failed", "err", err)
		return
	}
	peer := s.hub.Add(conn, func(peerID string) Message {
		return Message{Type: TypeHello, Data: Hello{
			SessionID: s.ID,
			PeerID:    peerID,
			View:      s.session.Controller.View(),
			Strokes:   s.session.Canvas.Strokes(),
		}}
	})
	defer s.hub.Remove(peer)

	conn.SetReadLimit(64 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Logger().Debug("[server] peer read failed", "peer", peer.ID, "err", err)
			}
			return
		}
		if err := s.apply(cmd); err != nil {
			peer.Send(Message{Type: TypeError, Error: err.Error()})
		}
	}
}

// apply runs one drawing or pipeline command against the session.
func (s *Server) apply(cmd Command) error {
	c := s.session.Canvas
	switch cmd.Type {
	case "begin", "extend":
		if cmd.Point == nil {
			return fmt.Errorf("%s: point is required", cmd.Type)
		}
		if cmd.Type == "begin" {
			c.Begin(*cmd.Point)
		} else {
			c.Extend(*cmd.Point)
		}
	case "end":
		c.End()
	case "clear":
		c.Clear()
	case "color":
		col, err := state.ParseHex(cmd.Color)
		if err != nil {
			return err
		}
		c.SetColor(col)
	case "width":
		return c.SetWidth(cmd.Width)
	case "transform":
		return s.session.TransformDrawing()
	case "capture":
		return s.session.TransformPreview()
	case "reset":
		s.session.Reset()
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Controller.View())
}

func (s *Server) handleStrokes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Canvas.Strokes())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, state.DefaultMaxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file: %w", err))
		return
	}
	defer file.Close()

	f := state.File{Name: header.Filename, MediaType: header.Header.Get("Content-Type"), Body: file}
	if r.URL.Query().Get("transform") == "1" {
		err = s.session.TransformUpload(r.Context(), f)
	} else {
		_, err = s.session.Source.Submit(r.Context(), f)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	p, _ := s.session.Source.Preview()
	writeJSON(w, http.StatusOK, p)
}

// handleTransform starts a run from the canvas, or from the held upload
// when source=upload.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var err error
	if r.URL.Query().Get("source") == "upload" {
		err = s.session.TransformPreview()
	} else {
		err = s.session.TransformDrawing()
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.session.Controller.View())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	writeJSON(w, http.StatusOK, s.session.Controller.View())
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteSheet(&buf, s.session.Controller.Data()); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="drawing.pdf"`)
	w.Write(buf.Bytes())
}

func statusFor(err error) int {
	var ute *state.UnsupportedTypeError
	switch {
	case errors.As(err, &ute):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, state.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, state.ErrEmptyFile), errors.Is(err, pipeline.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrPipelineBusy), errors.Is(err, pipeline.ErrResetRequired):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Warn("[server] failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
