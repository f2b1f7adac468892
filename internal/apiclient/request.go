package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

const jsonContentType = "application/json"

// Request describes one API call. Path is relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   Body
}

// Body is a request payload. Encode is called once per attempt, so a body
// must produce the same bytes every time it is encoded.
type Body interface {
	Encode() (r io.Reader, contentType string, err error)
}

// JSONBody marshals Value as JSON.
type JSONBody struct {
	Value any
}

func (b JSONBody) Encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.Value)
	if err != nil {
		return nil, "", fmt.Errorf("encoding json body: %w", err)
	}
	return bytes.NewReader(data), jsonContentType, nil
}

// RawJSON sends pre-encoded JSON as-is.
type RawJSON []byte

func (b RawJSON) Encode() (io.Reader, string, error) {
	return bytes.NewReader(b), jsonContentType, nil
}

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// MultipartBody encodes fields and files as multipart/form-data.
// The content type, including the boundary, comes from the body itself.
type MultipartBody struct {
	Fields map[string]string
	Files  []FormFile
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (b MultipartBody) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, b.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	for _, f := range b.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Filename)))
		ct := f.ContentType
		if ct == "" {
			ct = http.DetectContentType(f.Data)
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// newHTTPRequest builds the outgoing request. Defaults are applied first and
// caller headers are layered on top, so callers can override any of them.
func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	if req.Body != nil {
		var err error
		body, contentType, err = req.Body.Encode()
		if err != nil {
			return nil, err
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType == "" {
		contentType = jsonContentType
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", jsonContentType)

	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	return httpReq, nil
}
