package request

import (
	"context"
	"net/http"
)

// Sender represents an HTTP transport, the client.Client is a default implementation using the standard net/http package.
type Sender interface {
	// Send method sends defined request and returns the raw response and its fully read, decoded body.
	// A non-2xx status code is not an error at this level,
	// the error is returned only if the request could not be sent or the body could not be read.
	Send(ctx context.Context, request HTTPRequest) (rawResponse *http.Response, body []byte, err error)
}

// Sendable is anything that can be sent and waited for, for example a typed API call.
type Sendable interface {
	SendOrErr(ctx context.Context) error
}

// ReqDefinitionError can be used as the Sendable interface.
// So the error will be returned when you try to send the request.
// This simplifies usage, the error is checked only once, in one place.
type ReqDefinitionError struct {
	error
}

func NewReqDefinitionError(err error) Sendable {
	return ReqDefinitionError{error: err}
}

func (v ReqDefinitionError) SendOrErr(_ context.Context) error {
	return v
}

func (v ReqDefinitionError) Unwrap() error {
	return v.error
}

// SendableFunc adapts an ordinary function to the Sendable interface.
type SendableFunc func(ctx context.Context) error

func (f SendableFunc) SendOrErr(ctx context.Context) error {
	return f(ctx)
}
