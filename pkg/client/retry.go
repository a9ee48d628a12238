package client

import (
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetriesCount - retries count of the retry presets.
const RetriesCount = 5

// RequestTimeout - default total request timeout.
const RequestTimeout = 30 * time.Second

// RetryWaitTimeStart - default retry interval.
const RetryWaitTimeStart = 100 * time.Millisecond

// RetryWaitTimeMax - default maximum retry interval.
const RetryWaitTimeMax = 3 * time.Second

// RetryConfig configures Client retries.
type RetryConfig struct {
	Condition           RetryCondition
	Count               int
	TotalRequestTimeout time.Duration
	WaitTimeStart       time.Duration
	WaitTimeMax         time.Duration
}

// RetryCondition defines which responses should retry.
type RetryCondition func(*http.Response, error) bool

// DefaultRetry returns the default RetryConfig, no request is retried.
func DefaultRetry() RetryConfig {
	return RetryConfig{
		TotalRequestTimeout: RequestTimeout,
		Count:               0,
		WaitTimeStart:       RetryWaitTimeStart,
		WaitTimeMax:         RetryWaitTimeMax,
		Condition:           nil,
	}
}

// RetryOnNetworkErrors returns a RetryConfig which retries only requests without any response.
func RetryOnNetworkErrors() RetryConfig {
	v := DefaultRetry()
	v.Count = RetriesCount
	v.Condition = NetworkErrorRetryCondition()
	return v
}

// RetryOnTemporaryErrors returns a RetryConfig which retries network errors and temporary HTTP errors.
func RetryOnTemporaryErrors() RetryConfig {
	v := DefaultRetry()
	v.Count = RetriesCount
	v.Condition = TemporaryErrorRetryCondition()
	return v
}

// TestingRetry - fast retry for use in tests.
func TestingRetry() RetryConfig {
	v := RetryOnTemporaryErrors()
	v.WaitTimeStart = 1 * time.Millisecond
	v.WaitTimeMax = 1 * time.Millisecond
	return v
}

// NetworkErrorRetryCondition retries on network errors, except hostname not found.
func NetworkErrorRetryCondition() RetryCondition {
	return func(response *http.Response, err error) bool {
		if response != nil && response.StatusCode != 0 {
			return false
		}
		if err == nil {
			return false
		}
		switch {
		case strings.Contains(err.Error(), "No address associated with hostname"):
			return false
		case strings.Contains(err.Error(), "no such host"):
			return false
		default:
			return true
		}
	}
}

// TemporaryErrorRetryCondition retries on common network and HTTP errors.
func TemporaryErrorRetryCondition() RetryCondition {
	networkErr := NetworkErrorRetryCondition()
	return func(response *http.Response, err error) bool {
		// On network errors
		if response == nil || response.StatusCode == 0 {
			return networkErr(response, err)
		}

		// On HTTP status codes
		switch response.StatusCode {
		case
			http.StatusRequestTimeout,
			http.StatusConflict,
			http.StatusLocked,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
}

// NewBackoff returns an exponential backoff for HTTP retries.
func (c RetryConfig) NewBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.WaitTimeStart
	b.MaxInterval = c.WaitTimeMax
	b.MaxElapsedTime = c.TotalRequestTimeout
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
