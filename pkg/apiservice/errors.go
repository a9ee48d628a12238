package apiservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrEmptyStream is returned by Stream.Last if the stream completed without a value.
var ErrEmptyStream = errors.New("stream completed without a value")

// ResponseError is the default classification of a non-2xx response.
type ResponseError struct {
	StatusCode int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// DetailedResponseError is a classification of a non-2xx response with the body.
// Message is taken from the "message" or "error" field of a JSON object body.
type DetailedResponseError struct {
	StatusCode int
	Message    string
	Body       []byte
	JSON       any
}

func (e *DetailedResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("response status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("response status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// UnknownError is used if the response classification did not return a more specific error.
type UnknownError struct {
	StatusCode int
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown error, response status %d", e.StatusCode)
}

// InvalidResponseError is returned if the request succeeded but the JSON cannot be mapped to the requested model.
type InvalidResponseError struct {
	Method string
	URL    string
	err    error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf(`invalid response of request %s "%s": %s`, strings.ToUpper(e.Method), e.URL, e.err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.err
}

// TransportError is returned if the request could not be sent or no response was received.
type TransportError struct {
	Method string
	URL    string
	err    error
}

func (e *TransportError) Error() string {
	return e.err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// Timeout returns true if the request has not been completed in time.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	return errors.Is(e.err, context.DeadlineExceeded) || (errors.As(e.err, &netErr) && netErr.Timeout())
}

// Canceled returns true if the request context has been canceled.
func (e *TransportError) Canceled() bool {
	return errors.Is(e.err, context.Canceled)
}

// StatusCode returns the status code of a classified response error, if any.
func StatusCode(err error) (int, bool) {
	var responseErr *ResponseError
	var detailedErr *DetailedResponseError
	var unknownErr *UnknownError
	switch {
	case errors.As(err, &responseErr):
		return responseErr.StatusCode, true
	case errors.As(err, &detailedErr):
		return detailedErr.StatusCode, true
	case errors.As(err, &unknownErr):
		return unknownErr.StatusCode, true
	default:
		return 0, false
	}
}
