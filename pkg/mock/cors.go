package mock

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/funnyzak/pagemock/pkg/request"
)

// CORSPolicy computes the headers a browser needs to accept a synthetic
// response for a given request.
type CORSPolicy interface {
	Headers(req *request.Request) map[string]string
}

// CORS is the default CORS policy. It allows any origin.
type CORS struct {
	AllowedMethods []string
	// AllowedHeaders is echoed from access-control-request-headers when empty.
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// DefaultCORS allows every origin with credentials and the mockable methods.
func DefaultCORS() *CORS {
	return &CORS{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodPatch,
			http.MethodOptions,
		},
		AllowCredentials: true,
	}
}

// Headers implements CORSPolicy
func (c *CORS) Headers(req *request.Request) map[string]string {
	headers := make(map[string]string, 6)

	origin := ""
	if req != nil {
		origin = req.Origin()
	}
	// Credentials are not allowed together with a wildcard origin
	if origin == "" {
		headers["access-control-allow-origin"] = "*"
	} else {
		headers["access-control-allow-origin"] = origin
		headers["vary"] = "origin"
		if c.AllowCredentials {
			headers["access-control-allow-credentials"] = "true"
		}
	}

	if len(c.AllowedMethods) > 0 {
		headers["access-control-allow-methods"] = strings.Join(c.AllowedMethods, ", ")
	}

	switch {
	case len(c.AllowedHeaders) > 0:
		headers["access-control-allow-headers"] = strings.Join(c.AllowedHeaders, ", ")
	case req != nil && req.Header("Access-Control-Request-Headers") != "":
		headers["access-control-allow-headers"] = req.Header("Access-Control-Request-Headers")
	default:
		headers["access-control-allow-headers"] = "*"
	}

	if len(c.ExposedHeaders) > 0 {
		headers["access-control-expose-headers"] = strings.Join(c.ExposedHeaders, ", ")
	}
	if c.MaxAge > 0 {
		headers["access-control-max-age"] = strconv.Itoa(int(c.MaxAge.Seconds()))
	}

	return headers
}
