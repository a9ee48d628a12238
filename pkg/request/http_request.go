package request

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Kind distinguishes plain requests from multipart uploads.
type Kind int

const (
	// KindPlain request sends method, URL, headers and encoded parameters.
	KindPlain Kind = iota
	// KindUpload request sends parameters and binary parts as multipart/form-data.
	KindUpload
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindUpload:
		return "upload"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Credentials for HTTP basic authentication.
type Credentials struct {
	User     string
	Password string
}

// Part is one named binary part of an upload request.
type Part struct {
	Data     []byte
	Name     string
	FileName string
	MIMEType string
}

// DefaultMIMEType is used for a Part without MIMEType.
const DefaultMIMEType = "application/octet-stream"

// ContentType returns MIMEType or DefaultMIMEType.
func (p Part) ContentType() string {
	if p.MIMEType == "" {
		return DefaultMIMEType
	}
	return p.MIMEType
}

// HTTPRequest is an immutable HTTP request descriptor.
type HTTPRequest interface {
	httpRequestReadOnly
	// WithGet is shortcut for WithMethod(http.MethodGet).WithURL(url)
	WithGet(url string) HTTPRequest
	// WithPost is shortcut for WithMethod(http.MethodPost).WithURL(url)
	WithPost(url string) HTTPRequest
	// WithPut is shortcut for WithMethod(http.MethodPut).WithURL(url)
	WithPut(url string) HTTPRequest
	// WithPatch is shortcut for WithMethod(http.MethodPatch).WithURL(url)
	WithPatch(url string) HTTPRequest
	// WithDelete is shortcut for WithMethod(http.MethodDelete).WithURL(url)
	WithDelete(url string) HTTPRequest
	// WithMethod method sets the HTTP method.
	WithMethod(method string) HTTPRequest
	// WithBaseURL method sets the base URL.
	WithBaseURL(baseURL string) HTTPRequest
	// WithURL method sets the URL.
	WithURL(url string) HTTPRequest
	// AndHeader method sets a single header field and its value.
	AndHeader(header string, value string) HTTPRequest
	// WithHeaders method replaces all headers.
	WithHeaders(headers map[string]string) HTTPRequest
	// AndParam method sets a single parameter and its value.
	AndParam(param string, value any) HTTPRequest
	// WithParams method replaces all parameters.
	WithParams(params map[string]any) HTTPRequest
	// WithParamsFromStruct method replaces all parameters by fields of the struct, see StructToMap.
	WithParamsFromStruct(in any, allowedFields []string) HTTPRequest
	// WithEncoding method sets how parameters are encoded.
	WithEncoding(encoding Encoding) HTTPRequest
	// AndPathParam method sets single URL path key-value pair.
	AndPathParam(param, value string) HTTPRequest
	// WithPathParams method sets multiple URL path key-value pairs.
	WithPathParams(params map[string]string) HTTPRequest
	// WithCredentials method sets HTTP basic authentication credentials.
	WithCredentials(user, password string) HTTPRequest
	// WithoutCredentials method removes HTTP basic authentication credentials.
	WithoutCredentials() HTTPRequest
	// WithCache method enables or disables the response cache for the request.
	WithCache(useCache bool) HTTPRequest
	// WithParts method sets multipart parts and turns the request into an upload.
	WithParts(parts ...Part) HTTPRequest
	// AndPart method appends a multipart part and turns the request into an upload.
	AndPart(part Part) HTTPRequest
}

type httpRequestReadOnly interface {
	fmt.Stringer
	// Kind returns KindPlain or KindUpload.
	Kind() Kind
	// Method returns HTTP method.
	Method() string
	// URL method returns the absolute (if the base URL is set) URL with path parameters replaced.
	URL() *url.URL
	// RequestHeader method returns HTTP request headers.
	RequestHeader() http.Header
	// Params method returns request parameters, nil if there are none.
	Params() map[string]any
	// EncodedParams method returns parameters flattened to url.Values, see ToFormBody.
	EncodedParams() url.Values
	// Encoding method returns the parameters encoding.
	Encoding() Encoding
	// PathParams method returns HTTP path parameters mapped to a {placeholder} in the URL.
	PathParams() map[string]string
	// Credentials method returns basic auth credentials, nil if the request is not authenticated.
	Credentials() *Credentials
	// UseCache method returns true if the response may be served from and written to the cache.
	UseCache() bool
	// Parts method returns multipart parts of an upload request.
	Parts() []Part
	// CacheKey method returns the canonical URL string used as the cache key.
	CacheKey() string
}

// NewHTTPRequest creates immutable plain HTTP request.
func NewHTTPRequest() HTTPRequest {
	return httpRequest{kind: KindPlain, header: make(http.Header)}
}

// NewUploadRequest creates immutable multipart upload request.
func NewUploadRequest(parts ...Part) HTTPRequest {
	return httpRequest{kind: KindUpload, header: make(http.Header), parts: slices.Clone(parts)}
}

// httpRequest implements HTTPRequest interface.
type httpRequest struct {
	kind        Kind
	method      string
	baseURL     *url.URL
	url         *url.URL
	header      http.Header
	params      map[string]any
	encoding    Encoding
	pathParams  map[string]string
	credentials *Credentials
	useCache    bool
	parts       []Part
}

func (r httpRequest) String() string {
	var b strings.Builder
	b.WriteString(r.method)
	b.WriteString(` "`)
	if r.url != nil {
		b.WriteString(r.URL().String())
	}
	b.WriteString(`"`)
	if r.kind == KindUpload {
		fmt.Fprintf(&b, " | upload parts=%d", len(r.parts))
	}
	if len(r.params) > 0 {
		fmt.Fprintf(&b, " | params=%d (%s)", len(r.params), r.encoding)
	}
	if r.credentials != nil {
		b.WriteString(" | basic auth")
	}
	if r.useCache {
		b.WriteString(" | cache")
	}
	return b.String()
}

func (r httpRequest) Kind() Kind {
	return r.kind
}

func (r httpRequest) Method() string {
	if r.method == "" {
		panic(fmt.Errorf("request method is not set"))
	}
	return r.method
}

func (r httpRequest) URL() *url.URL {
	if r.url == nil {
		panic(fmt.Errorf("request url is not set"))
	}

	clone := *r.url
	outURL := &clone
	if r.baseURL != nil && !outURL.IsAbs() {
		outURL.Path = strings.TrimLeft(outURL.Path, "/")
		outURL.RawPath = ""
		outURL = r.baseURL.ResolveReference(outURL)
	}

	// Replace path parameters
	if len(r.pathParams) > 0 {
		rawPath := outURL.EscapedPath()
		for k, v := range r.pathParams {
			rawPath = strings.ReplaceAll(rawPath, url.PathEscape("{"+k+"}"), url.PathEscape(v))
		}
		if path, err := url.PathUnescape(rawPath); err == nil {
			outURL.Path = path
			outURL.RawPath = rawPath
		}
	}

	return outURL
}

func (r httpRequest) RequestHeader() http.Header {
	return r.header
}

func (r httpRequest) Params() map[string]any {
	return r.params
}

func (r httpRequest) EncodedParams() url.Values {
	return ToFormBody(r.params)
}

func (r httpRequest) Encoding() Encoding {
	return r.encoding
}

func (r httpRequest) PathParams() map[string]string {
	return r.pathParams
}

func (r httpRequest) Credentials() *Credentials {
	if r.credentials == nil {
		return nil
	}
	clone := *r.credentials
	return &clone
}

func (r httpRequest) UseCache() bool {
	return r.useCache
}

func (r httpRequest) Parts() []Part {
	return r.parts
}

func (r httpRequest) CacheKey() string {
	u := r.URL()
	query := u.Query()
	for k, values := range r.EncodedParams() {
		for _, v := range values {
			query.Add(k, v)
		}
	}
	u.RawQuery = query.Encode()
	u.Fragment = ""
	return u.String()
}

func (r httpRequest) WithGet(url string) HTTPRequest {
	return r.WithMethod(http.MethodGet).WithURL(url)
}

func (r httpRequest) WithPost(url string) HTTPRequest {
	return r.WithMethod(http.MethodPost).WithURL(url)
}

func (r httpRequest) WithPut(url string) HTTPRequest {
	return r.WithMethod(http.MethodPut).WithURL(url)
}

func (r httpRequest) WithPatch(url string) HTTPRequest {
	return r.WithMethod(http.MethodPatch).WithURL(url)
}

func (r httpRequest) WithDelete(url string) HTTPRequest {
	return r.WithMethod(http.MethodDelete).WithURL(url)
}

func (r httpRequest) WithMethod(method string) HTTPRequest {
	r.method = strings.ToUpper(method)
	return r
}

func (r httpRequest) WithURL(urlStr string) HTTPRequest {
	if v, err := url.Parse(urlStr); err == nil {
		r.url = v
	} else {
		panic(fmt.Errorf(`url "%s" is not valid :%w`, urlStr, err))
	}
	return r
}

func (r httpRequest) WithBaseURL(baseURL string) HTTPRequest {
	if v, err := url.Parse(strings.TrimRight(baseURL, "/")); err == nil {
		// Normalize base URL, so r.baseURL.ResolveReference(...) will work
		v.Path = strings.TrimRight(v.Path, "/") + "/"
		r.baseURL = v
	} else {
		panic(fmt.Errorf(`base url "%s" is not valid :%w`, baseURL, err))
	}
	return r
}

func (r httpRequest) AndHeader(header string, value string) HTTPRequest {
	r.header = r.header.Clone()
	r.header.Set(header, value)
	return r
}

func (r httpRequest) WithHeaders(headers map[string]string) HTTPRequest {
	r.header = make(http.Header)
	for k, v := range headers {
		r.header.Set(k, v)
	}
	return r
}

func (r httpRequest) AndParam(param string, value any) HTTPRequest {
	r.params = cloneParams(r.params)
	r.params[param] = value
	return r
}

func (r httpRequest) WithParams(params map[string]any) HTTPRequest {
	if params == nil {
		r.params = nil
		return r
	}
	r.params = cloneParams(params)
	return r
}

func (r httpRequest) WithParamsFromStruct(in any, allowedFields []string) HTTPRequest {
	r.params = StructToMap(in, allowedFields)
	return r
}

func (r httpRequest) WithEncoding(encoding Encoding) HTTPRequest {
	r.encoding = encoding
	return r
}

func (r httpRequest) AndPathParam(key, value string) HTTPRequest {
	r.pathParams = clonePathParams(r.pathParams)
	r.pathParams[key] = value
	return r
}

func (r httpRequest) WithPathParams(params map[string]string) HTTPRequest {
	r.pathParams = clonePathParams(params)
	return r
}

func (r httpRequest) WithCredentials(user, password string) HTTPRequest {
	r.credentials = &Credentials{User: user, Password: password}
	return r
}

func (r httpRequest) WithoutCredentials() HTTPRequest {
	r.credentials = nil
	return r
}

func (r httpRequest) WithCache(useCache bool) HTTPRequest {
	r.useCache = useCache
	return r
}

func (r httpRequest) WithParts(parts ...Part) HTTPRequest {
	r.kind = KindUpload
	r.parts = slices.Clone(parts)
	return r
}

func (r httpRequest) AndPart(part Part) HTTPRequest {
	r.kind = KindUpload
	r.parts = append(slices.Clone(r.parts), part)
	return r
}

func cloneParams(in map[string]any) (out map[string]any) {
	out = make(map[string]any, len(in))
	maps.Copy(out, in)
	return out
}
