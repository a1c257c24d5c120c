package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/authpipe/internal/common"
)

const maxErrorBody = 4 << 10

// TransportError means no response reached the pipeline (DNS, connection,
// timeout, cancelled context). The cause is reachable via errors.Is/As.
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", common.ErrTransport, e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Is(target error) bool { return target == common.ErrTransport }

// AuthError is a 401 the pipeline could not recover from. Retried is true
// when the request had already been replayed with a refreshed token.
type AuthError struct {
	Method  string
	Path    string
	Status  int
	Retried bool
}

func (e *AuthError) Error() string {
	if e.Retried {
		return fmt.Sprintf("%s: %s %s", common.ErrRetryExhausted, e.Method, e.Path)
	}
	return fmt.Sprintf("%s: %s %s", common.ErrorUnauthorized, e.Method, e.Path)
}

func (e *AuthError) Is(target error) bool {
	if target == common.ErrorUnauthorized {
		return true
	}
	return e.Retried && target == common.ErrRetryExhausted
}

// APIError is a non-2xx response surfaced by the JSON helpers.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" {
		code = fmt.Sprintf("HTTP %d", e.Status)
	}
	if e.Message == "" {
		return code
	}
	return fmt.Sprintf("%s: %s", code, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode, Body: data}
	if len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Code = payload.Error.Code
	apiErr.Message = payload.Error.Message
	if apiErr.Message == "" {
		apiErr.Message = payload.Detail
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}
