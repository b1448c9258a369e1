package printer

import (
	"sync/atomic"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// Printer renders interception events for the terminal
type Printer interface {
	PrintEvent(mock.Event) error
}

var globalEventCounter uint64

func nextEventNumber() uint64 {
	return atomic.AddUint64(&globalEventCounter, 1)
}

// New creates the printer for the configured output mode
func New(log logger.Logger, cfg *config.OutputConfig) Printer {
	if cfg == nil {
		cfg = &config.OutputConfig{}
	}
	switch cfg.Mode {
	case "json":
		return NewJSONPrinter(log)
	default:
		return NewConsolePrinter(log, cfg.MaxBodyPreview)
	}
}
