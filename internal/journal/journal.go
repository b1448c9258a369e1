package journal

import (
	"errors"
	"time"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("journal record not found")

// ListOptions controls filtering and pagination when fetching records.
type ListOptions struct {
	Search  string
	Method  string
	Outcome string
	Limit   int
	Offset  int
}

// Record is a persisted interception event.
type Record struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	ResourceType string            `json:"resource_type"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         []byte            `json:"body,omitempty"`
	Outcome      string            `json:"outcome"`
	MockID       string            `json:"mock_id,omitempty"`
	MockName     string            `json:"mock_name,omitempty"`
	Status       int               `json:"status,omitempty"`
	ResponseSize int               `json:"response_size"`
	Error        string            `json:"error,omitempty"`
	DurationMs   float64           `json:"duration_ms"`
}

// Stats counts records per outcome.
type Stats struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"by_outcome"`
}

// Store defines the persistence contract for interception events.
type Store interface {
	Record(mock.Event) (*Record, error)
	List(ListOptions) ([]*Record, int, error)
	Get(string) (*Record, error)
	Stats() (*Stats, error)
	Close() error
}

// New opens the sqlite journal described by cfg.
func New(cfg *config.JournalConfig, log logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("journal config is nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	return newSQLiteStore(cfg, log)
}

// FromEvent flattens an event into a record.
func FromEvent(ev mock.Event) *Record {
	rec := &Record{
		ID:           ev.ID,
		Timestamp:    ev.Timestamp,
		Outcome:      string(ev.Outcome),
		MockID:       ev.MockID,
		MockName:     ev.MockName,
		Status:       ev.Status,
		ResponseSize: ev.ResponseSize,
		Error:        ev.Error,
		DurationMs:   float64(ev.Duration) / float64(time.Millisecond),
	}
	if req := ev.Request; req != nil {
		rec.Method = req.Method
		rec.URL = req.URL
		rec.ResourceType = req.ResourceType
		rec.Headers = req.Headers
		rec.Body = req.Body
		if rec.ID == "" {
			rec.ID = req.ID
		}
	}
	return rec
}
