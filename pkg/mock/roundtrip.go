package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/funnyzak/pagemock/pkg/request"
)

var _ http.RoundTripper = (*RoundTripper)(nil)
var _ Transport = (*RoundTripper)(nil)

// RoundTripper is a Transport for Go HTTP clients. While subscribed, every
// round trip is handed to the interceptor; otherwise requests go to Next.
type RoundTripper struct {
	// Next performs pass-through requests. If nil, http.DefaultTransport is used.
	Next http.RoundTripper

	// Classify returns the resource type of a request. If nil, requests are
	// classified from the sec-fetch-dest header and default to fetch.
	Classify func(*http.Request) string

	mu      sync.RWMutex
	handler Handler
}

// NewRoundTripper creates a transport that passes unmocked requests to next.
func NewRoundTripper(next http.RoundTripper) *RoundTripper {
	return &RoundTripper{Next: next}
}

// Subscribe implements Transport
func (t *RoundTripper) Subscribe(_ context.Context, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handler != nil {
		return ErrAlreadyStarted
	}
	t.handler = h
	return nil
}

// Unsubscribe implements Transport
func (t *RoundTripper) Unsubscribe() error {
	t.mu.Lock()
	t.handler = nil
	t.mu.Unlock()
	return nil
}

// RoundTrip implements http.RoundTripper
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()

	if h == nil {
		return t.next().RoundTrip(req)
	}

	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = data
	}

	ex := &httpExchange{
		req:     request.FromHTTP(req, body, t.classify(req)),
		httpReq: req,
		body:    body,
		next:    t.next(),
	}

	err := h(req.Context(), ex)

	ex.mu.Lock()
	defer ex.mu.Unlock()
	switch {
	case ex.resp != nil:
		return ex.resp, nil
	case ex.err != nil:
		return nil, ex.err
	case err != nil:
		return nil, err
	default:
		return nil, fmt.Errorf("mock: request %s was not settled", ex.req)
	}
}

func (t *RoundTripper) next() http.RoundTripper {
	if t.Next != nil {
		return t.Next
	}
	return http.DefaultTransport
}

func (t *RoundTripper) classify(req *http.Request) string {
	if t.Classify != nil {
		return t.Classify(req)
	}
	switch strings.ToLower(req.Header.Get("Sec-Fetch-Dest")) {
	case "document", "iframe":
		return request.TypeDocument
	case "script":
		return request.TypeScript
	case "style":
		return request.TypeStylesheet
	case "image":
		return request.TypeImage
	case "font":
		return request.TypeFont
	default:
		return request.TypeFetch
	}
}

type httpExchange struct {
	req     *request.Request
	httpReq *http.Request
	body    []byte
	next    http.RoundTripper

	mu      sync.Mutex
	settled bool
	resp    *http.Response
	err     error
}

func (e *httpExchange) Request() *request.Request { return e.req }

func (e *httpExchange) Respond(_ context.Context, resp *Synthetic) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return ErrSettled
	}
	e.settled = true

	header := make(http.Header, len(resp.Headers))
	for key, value := range resp.Headers {
		header.Set(key, value)
	}
	e.resp = &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       e.httpReq,
	}
	return nil
}

func (e *httpExchange) Continue(ctx context.Context) error {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return ErrSettled
	}
	e.settled = true
	e.mu.Unlock()

	out := e.httpReq.Clone(ctx)
	switch {
	case len(e.body) > 0:
		out.Body = io.NopCloser(bytes.NewReader(e.body))
		out.ContentLength = int64(len(e.body))
	case e.httpReq.Body != nil:
		out.Body = http.NoBody
		out.ContentLength = 0
	}
	resp, err := e.next.RoundTrip(out)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.resp, e.err = resp, err
	return err
}
