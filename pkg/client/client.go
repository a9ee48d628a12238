// Package client provides the default HTTP transport adapter.
//
// Client is a default implementation of the request.Sender interface.
// Client is based on the standard net/http package and contains retry and tracing/telemetry support.
// It is easy to implement your custom HTTP client, by implementing the request.Sender interface,
// see the restyclient package for an alternative.
//
// Client sends plain requests (method, URL, headers and encoded parameters)
// and upload requests (multipart/form-data with text fields and binary parts).
// The response body is fully read and decoded, a non-2xx status code is not an error at this level.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	neturl "net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mgapi/go-apiservice/pkg/client/decode"
	"github.com/mgapi/go-apiservice/pkg/client/trace"
	"github.com/mgapi/go-apiservice/pkg/request"
)

// UserAgent is the default User-Agent header value.
const UserAgent = "go-apiservice"

type retryAttemptContextKey struct{}

// Client is a default and configurable implementation of the request.Sender interface by Go native http.Client.
// It supports retry and tracing/telemetry.
type Client struct {
	transport      http.RoundTripper
	baseURL        *neturl.URL
	header         http.Header
	timeout        time.Duration
	retry          RetryConfig
	traceFactories []trace.Factory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header), timeout: RequestTimeout, retry: DefaultRetry()}
	c.header.Set("User-Agent", UserAgent)
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// ContextRetryAttempt returns the retry attempt number stored in the context of an HTTP request.
// The first attempt is not stored, so found is false.
func ContextRetryAttempt(ctx context.Context) (attempt int, found bool) {
	attempt, found = ctx.Value(retryAttemptContextKey{}).(int)
	return attempt, found
}

// WithBaseURL returns a clone of the Client with base url set.
// The base url is used for requests with a relative url and without their own base url.
func (c Client) WithBaseURL(baseURLStr string) Client {
	baseURL, err := neturl.Parse(strings.TrimRight(baseURLStr, "/"))
	if err != nil {
		panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
	}
	baseURL.Path += "/"
	c.baseURL = baseURL
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	c.header = c.header.Clone()
	c.header.Set("User-Agent", v)
	return c
}

// WithHeader returns a clone of the Client with common header set.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithTimeout returns a clone of the Client with the total request timeout set, including retries.
// Zero value means no timeout.
func (c Client) WithTimeout(timeout time.Duration) Client {
	c.timeout = timeout
	return c
}

// WithRetry returns a clone of the Client with retry config set.
func (c Client) WithRetry(retry RetryConfig) Client {
	c.retry = retry
	return c
}

// AndTrace returns a clone of the Client with a trace factory added.
// Hooks of all registered factories are called in the order of registration.
func (c Client) AndTrace(fn trace.Factory) Client {
	c.traceFactories = append(c.traceFactories[:len(c.traceFactories):len(c.traceFactories)], fn)
	return c
}

// Send method sends HTTP request and returns HTTP response and its decoded body, it implements the request.Sender interface.
func (c Client) Send(ctx context.Context, reqDef request.HTTPRequest) (res *http.Response, body []byte, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	// If method or url is not set, panic occurs. So we get these values first.
	method := reqDef.Method()
	reqURL := reqDef.URL()
	if c.baseURL != nil && !reqURL.IsAbs() {
		reqURL.Path = strings.TrimLeft(reqURL.Path, "/")
		reqURL.RawPath = strings.TrimLeft(reqURL.RawPath, "/")
		reqURL = c.baseURL.ResolveReference(reqURL)
	}

	// Init trace
	var clientTrace *trace.ClientTrace
	for _, fn := range c.traceFactories {
		var t *trace.ClientTrace
		ctx, t = fn(ctx, reqDef)
		if t != nil {
			ctx = httptrace.WithClientTrace(ctx, &t.ClientTrace)
			t.Compose(clientTrace)
			clientTrace = t
		}
	}

	// Trace request processed
	if clientTrace != nil && clientTrace.RequestProcessed != nil {
		defer func() {
			clientTrace.RequestProcessed(res, body, err)
		}()
	}

	// Create request
	req, err := newRequest(ctx, reqDef, method, reqURL)
	if err != nil {
		return nil, nil, fmt.Errorf(`cannot prepare request %s "%s": %w`, method, reqURL.String(), err)
	}

	// Global headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	// Request headers
	for k, values := range reqDef.RequestHeader() {
		req.Header.Del(k) // clear global values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Basic authentication
	if credentials := reqDef.Credentials(); credentials != nil {
		req.SetBasicAuth(credentials.User, credentials.Password)
	}

	// Setup native client
	nativeClient := http.Client{
		Timeout:   c.timeout,
		Transport: roundTripper{retry: c.retry, trace: clientTrace, wrapped: c.transport}, // wrapped transport for trace/retry
	}

	// Send request
	startedAt := time.Now()
	res, err = nativeClient.Do(req)

	// Handle send error
	if err != nil {
		return nil, nil, handleSendError(startedAt, c.timeout, req, err)
	}

	// Read body
	body, err = readBody(res)
	if err != nil {
		return res, nil, fmt.Errorf(`cannot process request %s "%s": %w`, req.Method, req.URL.String(), err)
	}

	return res, body, nil
}

func readBody(res *http.Response) ([]byte, error) {
	defer res.Body.Close()

	if res.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	// Process content encoding
	bodyReader, err := decode.Decode(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return nil, fmt.Errorf(`cannot read response body: %w`, err)
	}
	return body, nil
}

func handleSendError(startedAt time.Time, clientTimeout time.Duration, req *http.Request, err error) error {
	sendErr := NewSendError(req.Method, req.URL.String(), err)

	// Timeout
	var netErr net.Error
	if deadline, ok := req.Context().Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		sendErr.reason = fmt.Sprintf("timeout after %s", deadline.Sub(startedAt))
	} else if errors.Is(err, context.Canceled) {
		sendErr.reason = fmt.Sprintf("canceled after %s", time.Since(startedAt))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		if strings.Contains(err.Error(), "Client.Timeout exceeded") {
			sendErr.reason = fmt.Sprintf("timeout after %s", clientTimeout)
		} else {
			sendErr.reason = fmt.Sprintf("timeout after %s", time.Since(startedAt))
		}
	}

	return sendErr
}

// SendError is returned by the Client.Send method if the request could not be sent or no response was received.
type SendError struct {
	Method string
	URL    string
	reason string
	err    error
}

// NewSendError wraps an error of a request which could not be sent.
func NewSendError(method, url string, err error) *SendError {
	sendErr := &SendError{Method: method, URL: url, err: err}

	// Unwrap url error, the method and url are already known
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		sendErr.err = urlErr.Err
	}

	return sendErr
}

func (e *SendError) Error() string {
	reason := e.reason
	if reason == "" {
		reason = e.err.Error()
	}
	return fmt.Sprintf(`request %s "%s" failed: %s`, strings.ToUpper(e.Method), e.URL, reason)
}

func (e *SendError) Unwrap() error {
	return e.err
}

// Timeout returns true if the request has not been completed in time.
func (e *SendError) Timeout() bool {
	var netErr net.Error
	return errors.Is(e.err, context.DeadlineExceeded) || (errors.As(e.err, &netErr) && netErr.Timeout())
}

// Canceled returns true if the request context has been canceled.
func (e *SendError) Canceled() bool {
	return errors.Is(e.err, context.Canceled)
}

// roundTripper wraps a http.RoundTripper and adds trace and retry functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	retry   RetryConfig
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	state := rt.retry.NewBackoff()
	attempt := 0
	for {
		// Trace request start
		if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
			rt.trace.HTTPRequestStart(req)
		}

		// Send
		res, err := rt.wrapped.RoundTrip(req)

		// Trace request done
		if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
			rt.trace.HTTPRequestDone(res, err)
		}

		// Check if we should retry
		if rt.retry.Condition == nil || attempt >= rt.retry.Count || !rt.retry.Condition(res, err) {
			// No retry
			return res, err
		}

		// Get next delay
		delay := state.NextBackOff()
		if delay == backoff.Stop {
			// Stop
			return res, err
		}

		// Discard the response, it will be replaced by the retry
		if res != nil && res.Body != nil {
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
		}

		// Trace retry
		attempt++
		if rt.trace != nil && rt.trace.HTTPRequestRetry != nil {
			rt.trace.HTTPRequestRetry(attempt, delay)
		}

		// Rewind body before retry
		req = req.WithContext(context.WithValue(req.Context(), retryAttemptContextKey{}, attempt))
		if req.GetBody != nil {
			req.Body, err = req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("cannot rewind body: %w", err)
			}
		}

		// Wait
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			// context is canceled
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
			// time elapsed, retry
		}
	}
}
