package browser

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/playwright-community/playwright-go"

	"github.com/funnyzak/pagemock/pkg/mock"
	"github.com/funnyzak/pagemock/pkg/request"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

type fakeRouter struct {
	mu         sync.Mutex
	routes     map[string]routeFunc
	routeErr   error
	unrouteErr error
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{routes: make(map[string]routeFunc)}
}

func (r *fakeRouter) route(pattern string, fn routeFunc) error {
	if r.routeErr != nil {
		return r.routeErr
	}
	r.mu.Lock()
	r.routes[pattern] = fn
	r.mu.Unlock()
	return nil
}

func (r *fakeRouter) unroute(pattern string) error {
	r.mu.Lock()
	delete(r.routes, pattern)
	r.mu.Unlock()
	return r.unrouteErr
}

func (r *fakeRouter) deliver(t *testing.T, pattern string, req *request.Request, route Route) {
	t.Helper()
	r.mu.Lock()
	fn, ok := r.routes[pattern]
	r.mu.Unlock()
	if !ok {
		t.Fatalf("no route installed for %q", pattern)
	}
	fn(req, route)
}

type fakeRoute struct {
	fulfilled  []playwright.RouteFulfillOptions
	continued  int
	fulfillErr error
}

func (r *fakeRoute) Fulfill(options ...playwright.RouteFulfillOptions) error {
	r.fulfilled = append(r.fulfilled, options...)
	return r.fulfillErr
}

func (r *fakeRoute) Continue(...playwright.RouteContinueOptions) error {
	r.continued++
	return nil
}

func TestTransport_RoutesThroughInterceptor(t *testing.T) {
	router := newFakeRouter()
	tr := newTransport(router, "", noopLogger{})
	ic := mock.New(tr)

	if _, err := ic.Get("https://api.test/users/:id", mock.Response{Body: mock.JSON(map[string]string{"name": "ada"})}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := ic.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	matched := &fakeRoute{}
	router.deliver(t, "**/*", request.New(http.MethodGet, "https://api.test/users/1", nil, nil, request.TypeFetch), matched)
	if len(matched.fulfilled) != 1 {
		t.Fatalf("expected one fulfill, got %d", len(matched.fulfilled))
	}
	got := matched.fulfilled[0]
	if *got.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", *got.Status)
	}
	if diff := cmp.Diff(`{"name":"ada"}`, string(got.Body.([]byte))); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}

	image := &fakeRoute{}
	router.deliver(t, "**/*", request.New(http.MethodGet, "https://cdn.test/logo.png", nil, nil, request.TypeImage), image)
	if image.continued != 1 || len(image.fulfilled) != 0 {
		t.Fatalf("expected image to pass through, got continued=%d fulfilled=%d", image.continued, len(image.fulfilled))
	}

	if err := ic.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(router.routes) != 0 {
		t.Fatalf("expected route removed after stop")
	}
}

func TestTransport_SubscribeTwice(t *testing.T) {
	tr := newTransport(newFakeRouter(), "**/api/**", noopLogger{})
	handler := func(context.Context, mock.Exchange) error { return nil }
	if err := tr.Subscribe(context.Background(), handler); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := tr.Subscribe(context.Background(), handler); !errors.Is(err, mock.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestTransport_SubscribeRouteError(t *testing.T) {
	router := newFakeRouter()
	router.routeErr = errors.New("page closed")
	tr := newTransport(router, "", noopLogger{})
	err := tr.Subscribe(context.Background(), func(context.Context, mock.Exchange) error { return nil })
	if err == nil || !errors.Is(err, router.routeErr) {
		t.Fatalf("expected wrapped route error, got %v", err)
	}
	if err := tr.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe of idle transport should be a no-op, got %v", err)
	}
}

func TestTransport_DispatchAfterUnsubscribeContinues(t *testing.T) {
	tr := newTransport(newFakeRouter(), "", noopLogger{})
	route := &fakeRoute{}
	tr.dispatch(request.New(http.MethodGet, "https://app.test/", nil, nil, request.TypeDocument), route)
	if route.continued != 1 {
		t.Fatalf("expected request continued when no handler is subscribed")
	}
}

func TestExchange_SettlesOnce(t *testing.T) {
	route := &fakeRoute{}
	ex := &exchange{req: request.New(http.MethodGet, "https://app.test/", nil, nil, request.TypeFetch), route: route}

	if err := ex.Respond(context.Background(), &mock.Synthetic{Status: 204, Body: []byte{}}); err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if err := ex.Continue(context.Background()); !errors.Is(err, mock.ErrSettled) {
		t.Fatalf("expected ErrSettled, got %v", err)
	}
	if route.continued != 0 || len(route.fulfilled) != 1 {
		t.Fatalf("unexpected route calls: continued=%d fulfilled=%d", route.continued, len(route.fulfilled))
	}
}

func TestExchange_RespondHonoursContext(t *testing.T) {
	route := &fakeRoute{}
	ex := &exchange{req: request.New(http.MethodGet, "https://app.test/", nil, nil, request.TypeFetch), route: route}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ex.Respond(ctx, &mock.Synthetic{Status: 200}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(route.fulfilled) != 0 {
		t.Fatalf("route must not be fulfilled after cancellation")
	}
}

func TestExchange_ContinueAfterCancel(t *testing.T) {
	route := &fakeRoute{}
	ex := &exchange{req: request.New(http.MethodGet, "https://app.test/logo.png", nil, nil, request.TypeImage), route: route}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ex.Continue(ctx); err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if route.continued != 1 {
		t.Fatalf("expected route to be continued once, got %d", route.continued)
	}
	if err := ex.Continue(ctx); !errors.Is(err, mock.ErrSettled) {
		t.Fatalf("expected ErrSettled, got %v", err)
	}
}

func TestFulfillOptions(t *testing.T) {
	resp := &mock.Synthetic{
		Status:  418,
		Headers: map[string]string{"content-type": "text/plain", "x-mock": "1"},
	}
	opts := fulfillOptions(resp)

	if opts.Status == nil || *opts.Status != 418 {
		t.Fatalf("unexpected status %v", opts.Status)
	}
	if diff := cmp.Diff(resp.Headers, opts.Headers); diff != "" {
		t.Fatalf("unexpected headers (-want +got):\n%s", diff)
	}
	body, ok := opts.Body.([]byte)
	if !ok || body == nil || len(body) != 0 {
		t.Fatalf("expected empty non-nil body, got %#v", opts.Body)
	}

	opts.Headers["x-mock"] = "2"
	if resp.Headers["x-mock"] != "1" {
		t.Fatalf("fulfill options must not alias response headers")
	}
}
