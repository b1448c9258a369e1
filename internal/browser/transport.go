package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
	"github.com/funnyzak/pagemock/pkg/request"
)

var _ mock.Transport = (*Transport)(nil)

// Route is the part of playwright.Route an exchange settles.
type Route interface {
	Fulfill(options ...playwright.RouteFulfillOptions) error
	Continue(options ...playwright.RouteContinueOptions) error
}

// routeFunc receives every routed request together with its route.
type routeFunc func(req *request.Request, route Route)

// router installs and removes a route handler for a URL glob.
type router interface {
	route(pattern string, fn routeFunc) error
	unroute(pattern string) error
}

// pageRouter routes through a playwright page.
type pageRouter struct {
	page playwright.Page
	log  logger.Logger
}

func (r *pageRouter) route(pattern string, fn routeFunc) error {
	return r.page.Route(pattern, func(route playwright.Route) {
		req, err := convertRequest(route.Request())
		if err != nil {
			r.log.Warn("Failed to read routed request body", "error", err)
		}
		fn(req, route)
	})
}

func (r *pageRouter) unroute(pattern string) error {
	return r.page.Unroute(pattern)
}

// convertRequest builds a request descriptor from a routed playwright request.
// The descriptor is usable even when the post data cannot be read.
func convertRequest(pr playwright.Request) (*request.Request, error) {
	body, err := pr.PostDataBuffer()
	req := request.New(pr.Method(), pr.URL(), pr.Headers(), body, pr.ResourceType())
	if err != nil {
		return req, fmt.Errorf("read post data: %w", err)
	}
	return req, nil
}

// Transport delivers requests routed by a browser page to the interceptor.
type Transport struct {
	router  router
	pattern string
	log     logger.Logger

	mu      sync.Mutex
	handler mock.Handler
	ctx     context.Context
}

// NewTransport creates a transport routing every request of page matching pattern.
func NewTransport(page playwright.Page, pattern string, log logger.Logger) *Transport {
	if log == nil {
		log = logger.Nop()
	}
	return newTransport(&pageRouter{page: page, log: log}, pattern, log)
}

func newTransport(r router, pattern string, log logger.Logger) *Transport {
	if pattern == "" {
		pattern = "**/*"
	}
	return &Transport{router: r, pattern: pattern, log: log}
}

// Subscribe implements mock.Transport
func (t *Transport) Subscribe(ctx context.Context, h mock.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler != nil {
		return mock.ErrAlreadyStarted
	}
	if err := t.router.route(t.pattern, t.dispatch); err != nil {
		return fmt.Errorf("route %q: %w", t.pattern, err)
	}
	t.handler = h
	t.ctx = ctx
	t.log.Debug("Browser routing enabled", "pattern", t.pattern)
	return nil
}

// Unsubscribe implements mock.Transport
func (t *Transport) Unsubscribe() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler == nil {
		return nil
	}
	t.handler = nil
	t.ctx = nil
	if err := t.router.unroute(t.pattern); err != nil {
		return fmt.Errorf("unroute %q: %w", t.pattern, err)
	}
	t.log.Debug("Browser routing disabled", "pattern", t.pattern)
	return nil
}

func (t *Transport) dispatch(req *request.Request, route Route) {
	t.mu.Lock()
	h, ctx := t.handler, t.ctx
	t.mu.Unlock()

	if h == nil {
		// Routing is being torn down; let the browser carry on.
		if err := route.Continue(); err != nil {
			t.log.Warn("Failed to continue unrouted request", "url", req.URL, "error", err)
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ex := &exchange{req: req, route: route}
	if err := h(ctx, ex); err != nil {
		t.log.Debug("Routed request handled with error", "request_id", req.ID, "error", err)
	}
}

// exchange settles one routed request exactly once.
type exchange struct {
	req   *request.Request
	route Route

	mu      sync.Mutex
	settled bool
}

func (e *exchange) Request() *request.Request { return e.req }

func (e *exchange) Respond(ctx context.Context, resp *mock.Synthetic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.settle(); err != nil {
		return err
	}
	return e.route.Fulfill(fulfillOptions(resp))
}

// Continue releases the request to the network even when ctx is done, so a
// page never waits on a route abandoned during shutdown.
func (e *exchange) Continue(context.Context) error {
	if err := e.settle(); err != nil {
		return err
	}
	return e.route.Continue()
}

func (e *exchange) settle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return mock.ErrSettled
	}
	e.settled = true
	return nil
}

// fulfillOptions converts a synthetic response into playwright fulfill options.
func fulfillOptions(resp *mock.Synthetic) playwright.RouteFulfillOptions {
	headers := make(map[string]string, len(resp.Headers))
	for key, value := range resp.Headers {
		headers[key] = value
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	return playwright.RouteFulfillOptions{
		Status:  playwright.Int(resp.Status),
		Headers: headers,
		Body:    body,
	}
}

// IsClosed reports whether err comes from a page or browser that already went away.
func IsClosed(err error) bool {
	return errors.Is(err, playwright.ErrTargetClosed)
}
