package mock

import (
	"net/http"
	"strconv"

	"github.com/funnyzak/pagemock/pkg/request"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Synthetic is a concrete response ready to be handed to a transport.
type Synthetic struct {
	Status  int
	Headers map[string]string
	// Body is never nil; an empty response carries a zero-length slice.
	Body []byte
}

// Synthesizer turns response templates into synthetic responses.
type Synthesizer struct {
	cors CORSPolicy
	log  Logger
}

// NewSynthesizer creates a synthesizer. A nil policy falls back to DefaultCORS.
func NewSynthesizer(cors CORSPolicy, log Logger) *Synthesizer {
	if cors == nil {
		cors = DefaultCORS()
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Synthesizer{cors: cors, log: log}
}

// Synthesize builds the response for req from tpl. Template headers override
// the computed CORS, content-type and content-length headers.
func (s *Synthesizer) Synthesize(tpl Response, req *request.Request) (*Synthetic, error) {
	status := tpl.Status
	if status == 0 {
		status = http.StatusOK
	}

	body, structured, err := tpl.Body.encode()
	if err != nil {
		serr := &SerializationError{Request: req.String(), Err: err}
		s.log.Error("Failed to serialize mock response body",
			"error", err,
			"request", req.String(),
			"status", status,
		)
		return nil, serr
	}

	computed := map[string]string{
		"content-length": strconv.Itoa(len(body)),
	}
	if structured {
		computed["content-type"] = contentTypeJSON
	}

	return &Synthetic{
		Status:  status,
		Headers: SanitizeHeaders(s.cors.Headers(req), computed, tpl.Headers),
		Body:    body,
	}, nil
}

// Preflight builds the 204 answer to a CORS preflight request.
func (s *Synthesizer) Preflight(req *request.Request) *Synthetic {
	return &Synthetic{
		Status:  http.StatusNoContent,
		Headers: SanitizeHeaders(s.cors.Headers(req)),
		Body:    []byte{},
	}
}
