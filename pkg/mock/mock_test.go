package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/funnyzak/pagemock/pkg/request"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func (l *recordingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

// fakeExchange records how a request was settled.
type fakeExchange struct {
	req         *request.Request
	respondErr  error
	continueErr error

	responded *Synthetic
	continued bool
}

func newExchange(method, url, resourceType string, headers map[string]string) *fakeExchange {
	return &fakeExchange{req: request.New(method, url, headers, nil, resourceType)}
}

func (f *fakeExchange) Request() *request.Request { return f.req }

func (f *fakeExchange) Respond(_ context.Context, resp *Synthetic) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responded = resp
	return nil
}

func (f *fakeExchange) Continue(context.Context) error {
	if f.continueErr != nil {
		return f.continueErr
	}
	f.continued = true
	return nil
}

type fakeTransport struct {
	handler        Handler
	subscribeErr   error
	unsubscribed   int
	unsubscribeErr error
}

func (f *fakeTransport) Subscribe(_ context.Context, h Handler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handler = h
	return nil
}

func (f *fakeTransport) Unsubscribe() error {
	f.unsubscribed++
	f.handler = nil
	return f.unsubscribeErr
}

var errClosed = errors.New("target page closed")
