package server

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/funnyzak/pagemock/internal/journal"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/internal/printer"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// EventPublisher pushes events to live subscribers.
type EventPublisher interface {
	Publish(mock.Event)
}

// EventHandler fans interception events out to the journal, the console
// printer and the web console. Events are processed off the interception path.
type EventHandler struct {
	printer printer.Printer
	store   journal.Store
	web     EventPublisher
	logger  logger.Logger
	baseCtx context.Context
	procWG  *sync.WaitGroup
}

var _ mock.Observer = (*EventHandler)(nil)

// NewEventHandler creates a new event handler. printer, store and web may be nil.
func NewEventHandler(
	printer printer.Printer,
	store journal.Store,
	web EventPublisher,
	logger logger.Logger,
	baseCtx context.Context,
	procWG *sync.WaitGroup,
) *EventHandler {
	return &EventHandler{
		printer: printer,
		store:   store,
		web:     web,
		logger:  logger,
		baseCtx: baseCtx,
		procWG:  procWG,
	}
}

// Observe implements mock.Observer
func (h *EventHandler) Observe(ev mock.Event) {
	h.procWG.Add(1)
	go func() {
		defer h.procWG.Done()
		ctx, cancel := context.WithCancel(h.baseCtx)
		defer cancel()
		h.processEvent(ctx, ev)
	}()
}

// processEvent persists the event, then prints and publishes it concurrently
func (h *EventHandler) processEvent(ctx context.Context, ev mock.Event) {
	if h.store != nil {
		if _, err := h.store.Record(ev); err != nil {
			h.logger.Error("Failed to persist event", "error", err, "request_id", ev.ID)
		}
	}

	h.logger.Debug("Event processed",
		"request_id", ev.ID,
		"outcome", string(ev.Outcome),
		"mock", ev.MockName,
		"status", ev.Status,
		"duration", ev.Duration,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	if h.printer != nil {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if err := h.printer.PrintEvent(ev); err != nil {
				h.logger.Error("Failed to print event", "error", err, "request_id", ev.ID)
			}
			return nil
		})
	}

	if h.web != nil {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			h.web.Publish(ev)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		h.logger.Warn("Event processing finished with errors", "error", err, "request_id", ev.ID)
	}
}
