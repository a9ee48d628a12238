package apiservice

import (
	jsoniter "github.com/json-iterator/go"
)

// EmptyResult is the value of a successful response whose body is not JSON, for example an empty body.
const EmptyResult = ""

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResponseErrorFunc classifies a non-2xx response.
// The decoded is nil if the body is not valid JSON.
// If nil is returned, the response is classified as *UnknownError.
type ResponseErrorFunc func(statusCode int, body []byte, decoded any) error

// DefaultResponseError keeps only the status code.
func DefaultResponseError(statusCode int, _ []byte, _ any) error {
	return &ResponseError{StatusCode: statusCode}
}

// DetailedResponseErrorFunc keeps also the body and the error message, if present.
func DetailedResponseErrorFunc(statusCode int, body []byte, decoded any) error {
	err := &DetailedResponseError{StatusCode: statusCode, Body: body, JSON: decoded}
	if object, ok := decoded.(map[string]any); ok {
		for _, field := range []string{"message", "error"} {
			if msg, ok := object[field].(string); ok && msg != "" {
				err.Message = msg
				break
			}
		}
	}
	return err
}

// Classify converts a response to the decoded JSON value or to an error.
//
// A status code in the range [200, 300) is a success, the result is the decoded JSON,
// or EmptyResult if the body is not valid JSON.
// Any other status code is a failure classified by the fn, DefaultResponseError is used if the fn is nil.
// A failure is never nil.
func Classify(statusCode int, body []byte, fn ResponseErrorFunc) (any, error) {
	decoded, valid := decodeJSON(body)

	if isSuccess(statusCode) {
		if !valid {
			return EmptyResult, nil
		}
		return decoded, nil
	}

	if fn == nil {
		fn = DefaultResponseError
	}
	if err := fn(statusCode, body, decoded); err != nil {
		return nil, err
	}
	return nil, &UnknownError{StatusCode: statusCode}
}

func decodeJSON(body []byte) (decoded any, valid bool) {
	if len(body) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
