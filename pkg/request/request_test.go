package request

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	data := New("post", "http://localhost/api/users?page=2", map[string]string{
		"Content-Type": "application/json",
		"Origin":       "http://localhost:3000",
	}, []byte(`{"name":"ada"}`), "XHR")

	if data.Method != "POST" {
		t.Errorf("Expected method POST, got %s", data.Method)
	}
	if data.ResourceType != TypeXHR {
		t.Errorf("Expected resource type xhr, got %s", data.ResourceType)
	}
	if data.Header("content-type") != "application/json" {
		t.Errorf("Expected content-type header, got %q", data.Header("content-type"))
	}
	if data.Origin() != "http://localhost:3000" {
		t.Errorf("Expected origin http://localhost:3000, got %s", data.Origin())
	}
	if data.Path() != "/api/users" {
		t.Errorf("Expected path /api/users, got %s", data.Path())
	}
	if data.ID == "" {
		t.Error("Expected request id to be generated")
	}
}

func TestNewDefaultsResourceType(t *testing.T) {
	data := New("GET", "http://localhost/", nil, nil, "")
	if data.ResourceType != TypeOther {
		t.Errorf("Expected resource type other, got %s", data.ResourceType)
	}
	if data.Headers == nil {
		t.Error("Expected headers map to be initialized")
	}
}

func TestFromHTTP(t *testing.T) {
	req, err := http.NewRequest("PUT", "http://example.com/items/7", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Add("Accept", "text/html")
	req.Header.Add("Accept", "application/json")

	data := FromHTTP(req, []byte("x"), TypeFetch)
	if data.Header("Accept") != "text/html, application/json" {
		t.Errorf("Expected joined accept header, got %q", data.Header("Accept"))
	}
	if data.URL != "http://example.com/items/7" {
		t.Errorf("Unexpected url %s", data.URL)
	}
}

func TestHTTPRequest(t *testing.T) {
	data := New("GET", "https://api.example.com/users/1?x=1", map[string]string{"x-token": "abc"}, nil, TypeFetch)
	req, err := data.HTTPRequest()
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if req.Host != "api.example.com" {
		t.Errorf("Expected host api.example.com, got %s", req.Host)
	}
	if req.URL.Path != "/users/1" {
		t.Errorf("Expected path /users/1, got %s", req.URL.Path)
	}
	if req.Header.Get("X-Token") != "abc" {
		t.Errorf("Expected header to be copied")
	}
}

func TestString(t *testing.T) {
	data := New("delete", "http://localhost/a", nil, nil, TypeFetch)
	if got := data.String(); got != "DELETE http://localhost/a (fetch)" {
		t.Errorf("Unexpected description %q", got)
	}
	var nilReq *Request
	if nilReq.String() != "<nil request>" {
		t.Error("Expected nil request description")
	}
}

func TestIsBinaryContent(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		expected    bool
	}{
		{
			name:        "JSON content",
			contentType: "application/json",
			body:        []byte(`{"key": "value"}`),
			expected:    false,
		},
		{
			name:        "JPEG image",
			contentType: "image/jpeg",
			body:        []byte{0xFF, 0xD8, 0xFF, 0xE0},
			expected:    true,
		},
		{
			name:        "Plain text",
			contentType: "text/plain",
			body:        []byte("Hello, World!"),
			expected:    false,
		},
		{
			name:        "Empty content type with null bytes",
			contentType: "",
			body:        []byte{0x00, 0x00, 0x48, 0x65, 0x6C, 0x6C, 0x6F},
			expected:    true,
		},
		{
			name:        "ZIP file",
			contentType: "application/zip",
			body:        []byte{0x50, 0x4B, 0x03, 0x04},
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isBinaryContent(tt.contentType, tt.body)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for content type %s", tt.expected, result, tt.contentType)
			}
		})
	}
}

func TestRequestTimestamp(t *testing.T) {
	before := time.Now()
	data := New("GET", "/", nil, nil, "")
	after := time.Now()

	if data.Timestamp.Before(before) || data.Timestamp.After(after) {
		t.Errorf("Timestamp %v should be between %v and %v", data.Timestamp, before, after)
	}
}

func BenchmarkNew(b *testing.B) {
	headers := map[string]string{"Content-Type": "application/json", "User-Agent": "benchmark-test"}
	body := []byte(`{"test": "data", "number": 123}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = New("POST", "http://localhost/api/test?param=value", headers, body, TypeFetch)
	}
}
