package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"

	"github.com/mgapi/go-apiservice/pkg/request"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"") //nolint:gochecknoglobals

// newRequest converts the request definition to the native HTTP request.
// Plain requests encode parameters to the query string or to the body, see request.Encoding.
// Upload requests send parameters and parts as multipart/form-data body.
func newRequest(ctx context.Context, reqDef request.HTTPRequest, method string, reqURL *url.URL) (*http.Request, error) {
	var body []byte
	var contentType string
	var err error

	switch reqDef.Kind() {
	case request.KindUpload:
		body, contentType, err = MultipartBody(reqDef)
		if err != nil {
			return nil, err
		}
	case request.KindPlain:
		if len(reqDef.Params()) > 0 {
			if reqDef.Encoding().InBody(method) {
				body, contentType, err = encodedBody(reqDef)
				if err != nil {
					return nil, err
				}
			} else {
				query := reqURL.Query()
				for k, values := range reqDef.EncodedParams() {
					for _, v := range values {
						query.Add(k, v)
					}
				}
				reqURL.RawQuery = query.Encode()
			}
		}
	default:
		return nil, fmt.Errorf(`unexpected request kind "%s"`, reqDef.Kind())
	}

	// Request with a *bytes.Reader body gets GetBody, so the body can be rewound for a redirect/retry.
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func encodedBody(reqDef request.HTTPRequest) (body []byte, contentType string, err error) {
	contentType = reqDef.Encoding().ContentType()
	if reqDef.Encoding() == request.EncodingJSON {
		body, err = json.Marshal(reqDef.Params())
		if err != nil {
			return nil, "", fmt.Errorf(`cannot encode JSON body: %w`, err)
		}
		return body, contentType, nil
	}
	return []byte(reqDef.EncodedParams().Encode()), contentType, nil
}

// MultipartBody encodes parameters and parts of the request as multipart/form-data.
// Parameters are written first as text fields sorted by name, then parts in the defined order.
func MultipartBody(reqDef request.HTTPRequest) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// Text fields
	fields := reqDef.EncodedParams()
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		for _, v := range fields[name] {
			if err := w.WriteField(name, v); err != nil {
				return nil, "", fmt.Errorf(`cannot write multipart field "%s": %w`, name, err)
			}
		}
	}

	// Binary parts
	for _, part := range reqDef.Parts() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(part.Name), quoteEscaper.Replace(part.FileName)))
		header.Set("Content-Type", part.ContentType())
		pw, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf(`cannot create multipart part "%s": %w`, part.Name, err)
		}
		if _, err := pw.Write(part.Data); err != nil {
			return nil, "", fmt.Errorf(`cannot write multipart part "%s": %w`, part.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
