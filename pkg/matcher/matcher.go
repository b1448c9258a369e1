// Package matcher builds request predicates from shorthand URL patterns.
//
// A pattern is one of:
//
//	""  "*"  "**"                  any URL
//	/users/1                       exact path (any host)
//	https://api.test/users/1       exact scheme, host and path
//	/users/*                       prefix ("*" or "**" at the end)
//	/users/{id}  /users/:id        placeholder segments
//	/files/*/raw                   single segment wildcard
//	/assets/**/logo.png            multi segment wildcard
//
// A query string in the pattern requires each listed parameter; values may
// use placeholders too. Path placeholders are matched through gorilla/mux
// route templates.
package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"reflect"
	"strings"

	"github.com/gorilla/mux"

	"github.com/funnyzak/pagemock/pkg/request"
)

// AnyMethod matches every HTTP method.
const AnyMethod = "*"

// Matcher decides whether a request satisfies a pattern.
type Matcher interface {
	Match(req *request.Request) bool
}

// Func adapts a plain function to the Matcher interface.
type Func func(req *request.Request) bool

// Match implements Matcher
func (f Func) Match(req *request.Request) bool {
	return f(req)
}

// BodyPredicate inspects the raw request body.
type BodyPredicate func(body []byte) bool

// Option customizes a Route.
type Option func(*Route)

// WithBody adds a body predicate.
func WithBody(pred BodyPredicate) Option {
	return func(r *Route) {
		r.bodies = append(r.bodies, pred)
	}
}

// WithBodyContains requires the body to contain s.
func WithBodyContains(s string) Option {
	return WithBody(func(body []byte) bool {
		return bytes.Contains(body, []byte(s))
	})
}

// WithJSONBody requires the body to decode to a value equivalent to v.
func WithJSONBody(v interface{}) Option {
	want, err := normalizeJSON(v)
	return WithBody(func(body []byte) bool {
		if err != nil {
			return false
		}
		var got interface{}
		if err := json.Unmarshal(body, &got); err != nil {
			return false
		}
		return reflect.DeepEqual(want, got)
	})
}

// WithHeader requires a request header to equal value.
func WithHeader(name, value string) Option {
	return func(r *Route) {
		r.headers[strings.ToLower(name)] = value
	}
}

// Route is a compiled shorthand pattern.
type Route struct {
	pattern  string
	method   string
	scheme   string
	host     string
	matchAll bool
	route    *mux.Route
	bodies   []BodyPredicate
	headers  map[string]string
}

// New compiles a shorthand pattern and method into a Route.
func New(pattern, method string, opts ...Option) (*Route, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = AnyMethod
	}

	r := &Route{
		pattern: pattern,
		method:  method,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" || trimmed == "*" || trimmed == "**" {
		r.matchAll = true
		return r, nil
	}

	pathPart, query, err := r.splitPattern(trimmed)
	if err != nil {
		return nil, err
	}

	route := mux.NewRouter().NewRoute()
	template, prefix := toTemplate(pathPart)
	if prefix {
		route = route.PathPrefix(template)
	} else {
		route = route.Path(template)
	}
	if len(query) > 0 {
		pairs := make([]string, 0, len(query)*2)
		for key, values := range query {
			value := ""
			if len(values) > 0 {
				value = values[0]
			}
			pairs = append(pairs, key, toPlaceholder(value))
		}
		route = route.Queries(pairs...)
	}
	if method != AnyMethod {
		route = route.Methods(method)
	}
	if err := route.GetError(); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	r.route = route

	return r, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(pattern, method string, opts ...Option) *Route {
	r, err := New(pattern, method, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Match implements Matcher
func (r *Route) Match(req *request.Request) bool {
	if req == nil {
		return false
	}
	if r.method != AnyMethod && !strings.EqualFold(r.method, req.Method) {
		return false
	}
	for name, value := range r.headers {
		if req.Header(name) != value {
			return false
		}
	}
	if !r.matchAll && !r.matchURL(req) {
		return false
	}
	for _, pred := range r.bodies {
		if !pred(req.Body) {
			return false
		}
	}
	return true
}

// Pattern returns the source pattern.
func (r *Route) Pattern() string {
	return r.pattern
}

// Method returns the HTTP method, or AnyMethod.
func (r *Route) Method() string {
	return r.method
}

// String implements fmt.Stringer
func (r *Route) String() string {
	return r.method + " " + r.pattern
}

func (r *Route) matchURL(req *request.Request) bool {
	httpReq, err := req.HTTPRequest()
	if err != nil {
		return false
	}
	if r.scheme != "" && !strings.EqualFold(r.scheme, httpReq.URL.Scheme) {
		return false
	}
	if r.host != "" && !matchHost(r.host, httpReq.URL.Host) {
		return false
	}
	if httpReq.URL.Path == "" {
		httpReq.URL.Path = "/"
	}
	var match mux.RouteMatch
	return r.route.Match(httpReq, &match)
}

func (r *Route) splitPattern(pattern string) (string, url.Values, error) {
	if strings.Contains(pattern, "://") {
		u, err := url.Parse(pattern)
		if err != nil {
			return "", nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		r.scheme = u.Scheme
		r.host = strings.ToLower(u.Host)
		p := u.Path
		if p == "" {
			p = "/"
		}
		return p, u.Query(), nil
	}

	pathPart := pattern
	var query url.Values
	if idx := strings.Index(pattern, "?"); idx >= 0 {
		pathPart = pattern[:idx]
		parsed, err := url.ParseQuery(pattern[idx+1:])
		if err != nil {
			return "", nil, fmt.Errorf("invalid query in pattern %q: %w", pattern, err)
		}
		query = parsed
	}
	if !strings.HasPrefix(pathPart, "/") {
		pathPart = "/" + pathPart
	}
	return pathPart, query, nil
}

// toTemplate rewrites shorthand segments into a mux template. The second
// result reports a trailing wildcard, which turns the route into a prefix.
func toTemplate(p string) (string, bool) {
	prefix := false
	if strings.HasSuffix(p, "*") {
		p = strings.TrimRight(p, "*")
		prefix = true
	}

	segments := strings.Split(p, "/")
	wild := 0
	for i, seg := range segments {
		switch {
		case seg == "**":
			segments[i] = fmt.Sprintf("{glob%d:.*}", wild)
			wild++
		case seg == "*":
			segments[i] = fmt.Sprintf("{wild%d:[^/]+}", wild)
			wild++
		default:
			segments[i] = toPlaceholder(seg)
		}
	}
	return strings.Join(segments, "/"), prefix
}

// toPlaceholder converts ":name" into "{name}".
func toPlaceholder(seg string) string {
	if len(seg) > 1 && strings.HasPrefix(seg, ":") {
		return "{" + seg[1:] + "}"
	}
	return seg
}

func matchHost(pattern, host string) bool {
	host = strings.ToLower(host)
	if !strings.Contains(pattern, ":") {
		if idx := strings.LastIndex(host, ":"); idx >= 0 && !strings.HasSuffix(host, "]") {
			host = host[:idx]
		}
	}
	if strings.Contains(pattern, "*") {
		ok, err := path.Match(pattern, host)
		return err == nil && ok
	}
	return pattern == host
}

func normalizeJSON(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
