package mock

import (
	"context"
	"time"

	"github.com/funnyzak/pagemock/pkg/request"
)

// Exchange is one intercepted request waiting for an answer.
type Exchange interface {
	// Request describes the intercepted request.
	Request() *request.Request
	// Respond completes the request with a synthetic response.
	Respond(ctx context.Context, resp *Synthetic) error
	// Continue releases the request to proceed without a mock.
	Continue(ctx context.Context) error
}

// Handler processes an intercepted exchange.
type Handler func(ctx context.Context, ex Exchange) error

// Transport delivers intercepted requests to a single handler.
type Transport interface {
	Subscribe(ctx context.Context, h Handler) error
	Unsubscribe() error
}

// Outcome is the terminal state of an intercepted request.
type Outcome string

// Possible outcomes
const (
	OutcomePreflight   Outcome = "preflight"
	OutcomeMatched     Outcome = "matched"
	OutcomeNotFound    Outcome = "not_found"
	OutcomePassthrough Outcome = "passthrough"
	OutcomeFailed      Outcome = "failed"
)

// Event reports what happened to one intercepted request.
type Event struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Request      *request.Request `json:"request"`
	Outcome      Outcome          `json:"outcome"`
	MockID       string           `json:"mock_id,omitempty"`
	MockName     string           `json:"mock_name,omitempty"`
	Status       int              `json:"status,omitempty"`
	ResponseSize int              `json:"response_size"`
	Error        string           `json:"error,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// Observer receives an Event for every handled request.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer
func (f ObserverFunc) Observe(ev Event) { f(ev) }
