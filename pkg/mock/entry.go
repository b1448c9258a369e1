package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/funnyzak/pagemock/pkg/matcher"
	"github.com/funnyzak/pagemock/pkg/request"
)

// Response is a response template registered with a mock.
type Response struct {
	// Status defaults to 200.
	Status int
	// Headers override computed headers. An empty value removes the header.
	Headers map[string]string
	Body    Body
}

// Options tune a single mock entry.
type Options struct {
	// Priority orders entries; higher is tried first. Defaults to 0.
	Priority int
	// Times limits how many requests the entry answers. 0 means unlimited.
	Times int
	// Name labels the entry in logs and events.
	Name string
}

// Option configures Options.
type Option func(*Options)

// WithPriority sets the entry priority.
func WithPriority(priority int) Option {
	return func(o *Options) { o.Priority = priority }
}

// WithTimes limits the number of requests the entry answers.
func WithTimes(times int) Option {
	return func(o *Options) {
		if times < 0 {
			times = 0
		}
		o.Times = times
	}
}

// WithName labels the entry.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// Entry pairs a matcher with a response template.
type Entry struct {
	id       string
	matcher  matcher.Matcher
	response Response
	opts     Options
	created  time.Time

	mu   sync.Mutex
	hits int
}

// NewEntry creates an entry with a fresh identity.
func NewEntry(m matcher.Matcher, resp Response, opts ...Option) *Entry {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return &Entry{
		id:       uuid.NewString(),
		matcher:  m,
		response: copyResponse(resp),
		opts:     o,
		created:  time.Now(),
	}
}

// ID returns the handle used to remove the entry.
func (e *Entry) ID() string { return e.id }

// Name returns the entry label, falling back to the matcher description.
func (e *Entry) Name() string {
	if e.opts.Name != "" {
		return e.opts.Name
	}
	if s, ok := e.matcher.(fmt.Stringer); ok {
		return s.String()
	}
	return e.id
}

// Priority returns the ordering weight.
func (e *Entry) Priority() int { return e.opts.Priority }

// Matches reports whether the entry would answer req. Exhausted entries never match.
func (e *Entry) Matches(req *request.Request) bool {
	if e.Exhausted() {
		return false
	}
	return e.matcher.Match(req)
}

// Resolve claims one use of the entry and returns its response template.
// It returns false when the budget was used up in the meantime.
func (e *Entry) Resolve() (Response, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opts.Times > 0 && e.hits >= e.opts.Times {
		return Response{}, false
	}
	e.hits++
	return copyResponse(e.response), true
}

// Hits returns how many requests the entry answered.
func (e *Entry) Hits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits
}

// Remaining returns the remaining budget, or -1 when unlimited.
func (e *Entry) Remaining() int {
	if e.opts.Times == 0 {
		return -1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Times - e.hits
}

// Exhausted reports whether the budget is used up.
func (e *Entry) Exhausted() bool {
	return e.Remaining() == 0
}

// MockInfo is a read-only snapshot of an entry.
type MockInfo struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Method    string            `json:"method,omitempty"`
	Pattern   string            `json:"pattern,omitempty"`
	Priority  int               `json:"priority"`
	Times     int               `json:"times"`
	Hits      int               `json:"hits"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	BodyKind  string            `json:"body_kind"`
	Body      string            `json:"body,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Info returns a snapshot of the entry.
func (e *Entry) Info() MockInfo {
	info := MockInfo{
		ID:        e.id,
		Name:      e.Name(),
		Priority:  e.opts.Priority,
		Times:     e.opts.Times,
		Hits:      e.Hits(),
		Status:    e.response.Status,
		Headers:   copyHeaders(e.response.Headers),
		BodyKind:  e.response.Body.Kind(),
		Body:      e.response.Body.Preview(256),
		CreatedAt: e.created,
	}
	if info.Status == 0 {
		info.Status = 200
	}
	if described, ok := e.matcher.(interface {
		Pattern() string
		Method() string
	}); ok {
		info.Pattern = described.Pattern()
		info.Method = described.Method()
	}
	return info
}

func copyResponse(resp Response) Response {
	resp.Headers = copyHeaders(resp.Headers)
	return resp
}

func copyHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}
