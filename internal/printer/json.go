package printer

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// JSONPrinter writes one JSON line per event
type JSONPrinter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	logger  logger.Logger
}

// NewJSONPrinter creates a JSON printer writing to stdout
func NewJSONPrinter(log logger.Logger) *JSONPrinter {
	p := &JSONPrinter{logger: log}
	p.SetOutput(os.Stdout)
	return p
}

// SetOutput replaces the output target
func (p *JSONPrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	p.mu.Lock()
	p.encoder = encoder
	p.mu.Unlock()
}

type jsonEventEnvelope struct {
	Type     string     `json:"type"`
	Seq      uint64     `json:"seq"`
	Event    mock.Event `json:"event"`
	BodyText string     `json:"body_text,omitempty"`
}

// PrintEvent implements Printer
func (p *JSONPrinter) PrintEvent(ev mock.Event) error {
	env := jsonEventEnvelope{
		Type:  "event",
		Seq:   nextEventNumber(),
		Event: ev,
	}
	if req := ev.Request; req != nil && len(req.Body) > 0 && !req.IsBinary() {
		env.BodyText = string(req.Body)
	}

	p.mu.Lock()
	err := p.encoder.Encode(env)
	p.mu.Unlock()
	if err != nil {
		if p.logger != nil {
			p.logger.Error("Failed to encode event JSON", "error", err)
		}
		return err
	}
	return nil
}
