// Package transform holds adapters for the AI service that describes a
// drawing and generates artwork from the description.
package transform

import (
	"context"
	"fmt"
	"net/http"

	"DrawingTransformer/internal/state"
)

// Service describes an image and generates artwork from a description.
type Service interface {
	Analyze(ctx context.Context, image state.Snapshot) (string, error)
	Generate(ctx context.Context, description string) (string, error)
}

// ServiceError is a failed analyze or generate call.
type ServiceError struct {
	Op     string // "analyze" or "generate"
	Status int    // HTTP status, 0 when no response arrived
	Reason string
	Err    error
}

func (e *ServiceError) Error() string {
	msg := e.Op + ": "
	if e.Status != 0 {
		msg += fmt.Sprintf("service error (%d)", e.Status)
	} else {
		msg += "service error"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed: transport
// failures, timeouts, rate limits and server-side errors.
func (e *ServiceError) Retryable() bool {
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	default:
		return e.Status >= 500
	}
}
