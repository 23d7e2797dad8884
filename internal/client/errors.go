package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed request.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not-found"
	KindTooLarge     Kind = "too-large"
	KindClient       Kind = "client"
	KindServer       Kind = "server"
)

// APIError is returned for every failed backend call. Status is 0 when no
// response was received.
type APIError struct {
	Kind    Kind
	Status  int
	Detail  string // the backend's "detail" message, when it sent one
	Method  string
	Path    string
	Wrapped error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Message()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, msg)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, msg, e.Wrapped)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
}

func (e *APIError) Unwrap() error {
	return e.Wrapped
}

// Message is the user-facing notice for the error's kind.
func (e *APIError) Message() string {
	switch e.Kind {
	case KindNetwork:
		return "Cannot connect to server. Please check if the server is running."
	case KindTimeout:
		return "Request timeout. Please try again."
	case KindUnauthorized:
		return "Session expired. Please log in again."
	case KindForbidden:
		return "Access denied"
	case KindNotFound:
		return "Not found"
	case KindTooLarge:
		return "File is too large. Maximum size is 10MB."
	case KindServer:
		return "Server error. Please try again later."
	default:
		if e.Detail != "" {
			return e.Detail
		}
		return "Request failed"
	}
}

// IsKind reports whether err is an *APIError of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// DetailOf returns the backend's detail message carried by err, falling back
// to err's text.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Message()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// ============================================================================
// Classification
// ============================================================================

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestEntityTooLarge:
		return KindTooLarge
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

func kindForTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// parseDetail extracts FastAPI's error message. detail is a string for
// HTTPException and a list of {loc, msg} objects for validation failures.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
