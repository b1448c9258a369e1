package request

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Resource types reported by browsers for intercepted requests
const (
	TypeFetch      = "fetch"
	TypeXHR        = "xhr"
	TypeDocument   = "document"
	TypeScript     = "script"
	TypeStylesheet = "stylesheet"
	TypeImage      = "image"
	TypeFont       = "font"
	TypeOther      = "other"
)

// Request describes an intercepted request as seen by the mock engine.
// Header keys are lower-cased.
type Request struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers"`
	Body         []byte            `json:"body"`
	ResourceType string            `json:"resource_type"`
}

// New creates a request descriptor with a fresh identifier.
func New(method, rawURL string, headers map[string]string, body []byte, resourceType string) *Request {
	normalized := make(map[string]string, len(headers))
	for key, value := range headers {
		normalized[strings.ToLower(key)] = value
	}
	if resourceType == "" {
		resourceType = TypeOther
	}
	return &Request{
		ID:           generateRequestID(),
		Timestamp:    time.Now(),
		Method:       strings.ToUpper(method),
		URL:          rawURL,
		Headers:      normalized,
		Body:         body,
		ResourceType: strings.ToLower(resourceType),
	}
}

// FromHTTP builds a descriptor from a Go HTTP request whose body was already read.
func FromHTTP(r *http.Request, body []byte, resourceType string) *Request {
	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ", ")
	}
	return New(r.Method, r.URL.String(), headers, body, resourceType)
}

// Header returns the value of a header, case-insensitively.
func (r *Request) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(name)]
}

// Origin returns the declared origin of the request, if any.
func (r *Request) Origin() string {
	return r.Header("Origin")
}

// Path returns the URL path, or "/" when the URL cannot be parsed.
func (r *Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// ContentType returns the request content type header.
func (r *Request) ContentType() string {
	return r.Header("Content-Type")
}

// IsBinary reports whether the request body looks binary.
func (r *Request) IsBinary() bool {
	return isBinaryContent(r.ContentType(), r.Body)
}

// String describes the request on one line for diagnostics.
func (r *Request) String() string {
	if r == nil {
		return "<nil request>"
	}
	return fmt.Sprintf("%s %s (%s)", r.Method, r.URL, r.ResourceType)
}

// HTTPRequest converts the descriptor to a Go HTTP request for route matching.
func (r *Request) HTTPRequest() (*http.Request, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", r.URL, err)
	}
	req := &http.Request{
		Method:     r.Method,
		URL:        u,
		Host:       u.Host,
		Header:     make(http.Header, len(r.Headers)),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// isBinaryContent detects if it's binary content
func isBinaryContent(contentType string, body []byte) bool {
	binaryTypes := []string{
		"image/", "video/", "audio/",
		"application/octet-stream",
		"application/zip", "application/gzip",
		"application/pdf", "application/msword",
		"application/vnd.ms-", "application/vnd.openxmlformats-",
	}

	for _, binaryType := range binaryTypes {
		if strings.HasPrefix(contentType, binaryType) {
			return true
		}
	}

	nullCount := 0
	for _, b := range body {
		if b == 0 {
			nullCount++
		}
	}
	// More than 10% null bytes
	return len(body) > 0 && nullCount > len(body)/10
}

// generateRequestID creates a random, URL-safe request identifier.
func generateRequestID() string {
	const idBytes = 12
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("REQ-%d", time.Now().UnixNano())
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
