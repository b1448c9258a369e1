package mock

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/funnyzak/pagemock/pkg/matcher"
	"github.com/funnyzak/pagemock/pkg/request"
)

// DefaultNotFoundBody is sent with the 404 for unmatched fetch/XHR requests.
const DefaultNotFoundBody = "pagemock: no mock registered for this request"

// DefaultCategories are the resource types answered with 404 when unmatched.
var DefaultCategories = []string{request.TypeFetch, request.TypeXHR}

// Interceptor answers intercepted requests from its registry.
type Interceptor struct {
	registry     *Registry
	synth        *Synthesizer
	transport    Transport
	log          Logger
	cors         CORSPolicy
	categories   map[string]struct{}
	notFoundBody string

	mu      sync.Mutex
	started bool

	obsMu     sync.RWMutex
	observers []Observer
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithLogger sets the logger.
func WithLogger(log Logger) InterceptorOption {
	return func(i *Interceptor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithCORS replaces the CORS policy.
func WithCORS(policy CORSPolicy) InterceptorOption {
	return func(i *Interceptor) {
		if policy != nil {
			i.cors = policy
		}
	}
}

// WithCategories sets the resource types answered with 404 when unmatched.
func WithCategories(types ...string) InterceptorOption {
	return func(i *Interceptor) {
		i.categories = make(map[string]struct{}, len(types))
		for _, t := range types {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				i.categories[t] = struct{}{}
			}
		}
	}
}

// WithNotFoundBody replaces the 404 diagnostic body.
func WithNotFoundBody(body string) InterceptorOption {
	return func(i *Interceptor) {
		if body != "" {
			i.notFoundBody = body
		}
	}
}

// New creates an interceptor over transport. The transport may be nil when
// Handle is driven directly.
func New(transport Transport, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		registry:     NewRegistry(),
		transport:    transport,
		log:          nopLogger{},
		cors:         DefaultCORS(),
		notFoundBody: DefaultNotFoundBody,
	}
	WithCategories(DefaultCategories...)(i)
	for _, opt := range opts {
		opt(i)
	}
	i.synth = NewSynthesizer(i.cors, i.log)
	return i
}

// Add registers a mock for a shorthand pattern and method and returns its handle.
func (i *Interceptor) Add(pattern, method string, resp Response, opts ...Option) (string, error) {
	m, err := matcher.New(pattern, method)
	if err != nil {
		return "", err
	}
	return i.AddMatcher(m, resp, opts...), nil
}

// AddMatcher registers a mock for an arbitrary matcher and returns its handle.
func (i *Interceptor) AddMatcher(m matcher.Matcher, resp Response, opts ...Option) string {
	entry := NewEntry(m, resp, opts...)
	i.registry.Add(entry)
	i.log.Debug("Mock registered",
		"mock_id", entry.ID(),
		"mock", entry.Name(),
		"priority", entry.Priority(),
	)
	return entry.ID()
}

// Get registers a GET mock.
func (i *Interceptor) Get(pattern string, resp Response, opts ...Option) (string, error) {
	return i.Add(pattern, http.MethodGet, resp, opts...)
}

// Post registers a POST mock.
func (i *Interceptor) Post(pattern string, resp Response, opts ...Option) (string, error) {
	return i.Add(pattern, http.MethodPost, resp, opts...)
}

// Put registers a PUT mock.
func (i *Interceptor) Put(pattern string, resp Response, opts ...Option) (string, error) {
	return i.Add(pattern, http.MethodPut, resp, opts...)
}

// Delete registers a DELETE mock.
func (i *Interceptor) Delete(pattern string, resp Response, opts ...Option) (string, error) {
	return i.Add(pattern, http.MethodDelete, resp, opts...)
}

// Patch registers a PATCH mock.
func (i *Interceptor) Patch(pattern string, resp Response, opts ...Option) (string, error) {
	return i.Add(pattern, http.MethodPatch, resp, opts...)
}

// Remove unregisters a mock. It reports false for unknown handles.
func (i *Interceptor) Remove(id string) bool {
	entry, ok := i.registry.Remove(id)
	if ok {
		i.log.Debug("Mock removed", "mock_id", id, "mock", entry.Name())
	}
	return ok
}

// Mocks returns snapshots of the registered mocks in lookup order.
func (i *Interceptor) Mocks() []MockInfo {
	entries := i.registry.Entries()
	infos := make([]MockInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.Info())
	}
	return infos
}

// Reset removes every registered mock.
func (i *Interceptor) Reset() {
	i.registry.Clear()
}

// Observe adds an observer notified after each handled request.
func (i *Interceptor) Observe(obs Observer) {
	if obs == nil {
		return
	}
	i.obsMu.Lock()
	i.observers = append(i.observers, obs)
	i.obsMu.Unlock()
}

// Start subscribes to the transport.
func (i *Interceptor) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.transport == nil {
		return ErrTransportRequired
	}
	if i.started {
		return ErrAlreadyStarted
	}
	if err := i.transport.Subscribe(ctx, i.Handle); err != nil {
		return fmt.Errorf("subscribe transport: %w", err)
	}
	i.started = true
	i.log.Info("Interception started", "mocks", i.registry.Len())
	return nil
}

// Stop unsubscribes from the transport.
func (i *Interceptor) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.started {
		return ErrNotStarted
	}
	if err := i.transport.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe transport: %w", err)
	}
	i.started = false
	i.log.Info("Interception stopped")
	return nil
}

// Running reports whether interception is active.
func (i *Interceptor) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.started
}

// Handle processes a single intercepted request.
func (i *Interceptor) Handle(ctx context.Context, ex Exchange) error {
	req := ex.Request()
	ev := Event{
		ID:        req.ID,
		Timestamp: time.Now(),
		Request:   req,
	}
	defer func() {
		ev.Duration = time.Since(ev.Timestamp)
		i.notify(ev)
	}()

	i.log.Debug("Request intercepted",
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL,
		"resource_type", req.ResourceType,
	)

	if req.Method == http.MethodOptions {
		return i.reply(ctx, ex, &ev, OutcomePreflight, i.synth.Preflight(req))
	}

	entry, tpl, ok := i.registry.Claim(req)
	if ok {
		ev.MockID = entry.ID()
		ev.MockName = entry.Name()
		resp, err := i.synth.Synthesize(tpl, req)
		if err != nil {
			ev.Outcome = OutcomeFailed
			ev.Error = err.Error()
			return err
		}
		return i.reply(ctx, ex, &ev, OutcomeMatched, resp)
	}

	if i.intercepts(req.ResourceType) {
		i.log.Error("No mock matched request",
			"request_id", req.ID,
			"request", req.String(),
		)
		resp, err := i.synth.Synthesize(Response{
			Status:  http.StatusNotFound,
			Headers: map[string]string{"content-type": "text/plain; charset=utf-8"},
			Body:    Text(i.notFoundBody),
		}, req)
		if err != nil {
			ev.Outcome = OutcomeFailed
			ev.Error = err.Error()
			return err
		}
		return i.reply(ctx, ex, &ev, OutcomeNotFound, resp)
	}

	ev.Outcome = OutcomePassthrough
	if err := ex.Continue(ctx); err != nil {
		// The request was most likely settled by another handler already.
		ev.Error = err.Error()
		i.log.Warn("Failed to pass request through",
			"request_id", req.ID,
			"request", req.String(),
			"error", err,
		)
		return nil
	}
	i.log.Debug("Request passed through", "request_id", req.ID, "request", req.String())
	return nil
}

func (i *Interceptor) reply(ctx context.Context, ex Exchange, ev *Event, outcome Outcome, resp *Synthetic) error {
	req := ex.Request()
	ev.Status = resp.Status
	ev.ResponseSize = len(resp.Body)

	if err := ex.Respond(ctx, resp); err != nil {
		rerr := &ReplyError{Request: req.String(), Status: resp.Status, Err: err}
		ev.Outcome = OutcomeFailed
		ev.Error = rerr.Error()
		i.log.Error("Failed to send mock response",
			"request_id", req.ID,
			"request", req.String(),
			"status", resp.Status,
			"error", err,
		)
		return rerr
	}

	ev.Outcome = outcome
	i.log.Info("Mock response sent",
		"request_id", req.ID,
		"method", req.Method,
		"url", req.URL,
		"outcome", string(outcome),
		"status", resp.Status,
		"mock", ev.MockName,
	)
	return nil
}

func (i *Interceptor) intercepts(resourceType string) bool {
	_, ok := i.categories[strings.ToLower(resourceType)]
	return ok
}

func (i *Interceptor) notify(ev Event) {
	i.obsMu.RLock()
	observers := make([]Observer, len(i.observers))
	copy(observers, i.observers)
	i.obsMu.RUnlock()

	for _, obs := range observers {
		obs.Observe(ev)
	}
}
