package request

import "net/http"

// Encoding defines where and how request parameters are encoded.
type Encoding int

const (
	// EncodingDefault encodes parameters to the query string for GET, HEAD and DELETE requests,
	// otherwise to the "application/x-www-form-urlencoded" body.
	EncodingDefault Encoding = iota
	// EncodingQuery always encodes parameters to the query string.
	EncodingQuery
	// EncodingForm always encodes parameters to the "application/x-www-form-urlencoded" body.
	EncodingForm
	// EncodingJSON encodes parameters to the "application/json" body.
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingDefault:
		return "default"
	case EncodingQuery:
		return "query"
	case EncodingForm:
		return "form"
	case EncodingJSON:
		return "json"
	default:
		return "unknown"
	}
}

// InBody returns true if the parameters of a request with the method are sent in the body.
func (e Encoding) InBody(method string) bool {
	switch e {
	case EncodingQuery:
		return false
	case EncodingForm, EncodingJSON:
		return true
	default:
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodDelete:
			return false
		default:
			return true
		}
	}
}

// ContentType returns Content-Type of the body with encoded parameters.
func (e Encoding) ContentType() string {
	if e == EncodingJSON {
		return "application/json"
	}
	return "application/x-www-form-urlencoded"
}
