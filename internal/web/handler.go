package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/journal"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxMockBodyBytes = 1 << 20
	contentTypeJSON  = "application/json"
)

// MockRegistry is the subset of the interceptor the console manages.
type MockRegistry interface {
	Add(pattern, method string, resp mock.Response, opts ...mock.Option) (string, error)
	Remove(id string) bool
	Mocks() []mock.MockInfo
	Reset()
}

// Service exposes mocks and interception events over HTTP.
type Service struct {
	cfg    *config.WebConfig
	logger logger.Logger
	mocks  MockRegistry
	store  journal.Store
	hub    *WebsocketHub
}

// NewService builds a Service. store may be nil when the journal is disabled.
func NewService(cfg *config.WebConfig, log logger.Logger, mocks MockRegistry, store journal.Store) *Service {
	return &Service{
		cfg:    cfg,
		logger: log,
		mocks:  mocks,
		store:  store,
		hub:    NewWebsocketHub(log),
	}
}

// Handler returns a router serving the console API.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes wires HTTP routes into the provided router.
func (s *Service) RegisterRoutes(router *mux.Router) {
	if s == nil {
		return
	}

	api := router.PathPrefix(normalizePath(s.cfg.AdminPath)).Subrouter()
	api.HandleFunc("/mocks", s.handleListMocks).Methods(http.MethodGet)
	api.HandleFunc("/mocks", s.handleCreateMock).Methods(http.MethodPost)
	api.HandleFunc("/mocks", s.handleResetMocks).Methods(http.MethodDelete)
	api.HandleFunc("/mocks/{id}", s.handleDeleteMock).Methods(http.MethodDelete)
	api.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}", s.handleGetEvent).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
}

// Publish pushes an event to websocket clients.
func (s *Service) Publish(ev mock.Event) {
	if s == nil {
		return
	}
	s.hub.Broadcast(Envelope{Type: "event", Data: journal.FromEvent(ev)})
}

// Close releases resources.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.hub.Close()
}

func (s *Service) handleListMocks(w http.ResponseWriter, r *http.Request) {
	mocks := s.mocks.Mocks()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  mocks,
		"total": len(mocks),
	})
}

func (s *Service) handleCreateMock(w http.ResponseWriter, r *http.Request) {
	var mc config.MockConfig
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMockBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&mc); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if err := mc.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.mocks.Add(mc.Pattern, mc.Method, mc.Response(), mc.Options()...)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("Mock registered from console", "mock_id", id, "method", mc.Method, "pattern", mc.Pattern)
	s.hub.Broadcast(Envelope{Type: "mocks", Data: s.mocks.Mocks()})
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Service) handleDeleteMock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.mocks.Remove(id) {
		s.respondError(w, http.StatusNotFound, "mock not found")
		return
	}
	s.hub.Broadcast(Envelope{Type: "mocks", Data: s.mocks.Mocks()})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleResetMocks(w http.ResponseWriter, r *http.Request) {
	s.mocks.Reset()
	s.hub.Broadcast(Envelope{Type: "mocks", Data: []mock.MockInfo{}})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	query := r.URL.Query()
	limit := parseIntDefault(query.Get("limit"), defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := parseIntDefault(query.Get("offset"), 0)

	items, total, err := s.store.List(journal.ListOptions{
		Search:  query.Get("search"),
		Method:  query.Get("method"),
		Outcome: query.Get("outcome"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.logger.Error("Failed to list events", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if items == nil {
		items = []*journal.Record{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":   items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Service) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	rec, err := s.store.Get(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, journal.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "event not found")
	case err != nil:
		s.logger.Error("Failed to load event", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load event")
	default:
		s.respondJSON(w, http.StatusOK, rec)
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"mocks":   len(s.mocks.Mocks()),
		"clients": s.hub.Count(),
	}
	if s.store != nil {
		stats, err := s.store.Stats()
		if err != nil {
			s.logger.Error("Failed to compute stats", "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}
		resp["events"] = stats
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Upgrade(w, r); err != nil {
		s.logger.Error("Failed to upgrade websocket", "error", err)
	}
}

func (s *Service) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Service) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return def
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
