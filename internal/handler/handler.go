// Package handler provides the HTTP front door for soilwatch.
//
// Handlers parse path variables, query windows and JSON payloads, call the
// manager and map its errors to APIError responses.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	c "github.com/xtxerr/soilwatch/internal/constants"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/manager"
	"github.com/xtxerr/soilwatch/internal/mirror"
	"github.com/xtxerr/soilwatch/internal/stats"
	"github.com/xtxerr/soilwatch/internal/types"
)

var log = logging.Component("handler")

// HelloMessage is the body of GET /.
const HelloMessage = "Soil humidity data collection API"

// =============================================================================
// Handler
// =============================================================================

// Handler serves the collector and receptor routes.
type Handler struct {
	mgr      *manager.Manager
	recorder *stats.Recorder
	mirror   *mirror.Mirror
}

// Option configures a Handler.
type Option func(*Handler)

// WithRecorder exposes request latency summaries on /stats.
func WithRecorder(r *stats.Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithMirror exposes mirror counters on /stats.
func WithMirror(m *mirror.Mirror) Option {
	return func(h *Handler) { h.mirror = m }
}

// NewHandler creates a new handler.
func NewHandler(mgr *manager.Manager, opts ...Option) *Handler {
	h := &Handler{mgr: mgr}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Manager returns the manager.
func (h *Handler) Manager() *manager.Manager {
	return h.mgr
}

// Register adds every route to r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/", h.hello).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	r.HandleFunc("/collector/status", h.listStatus).Methods(http.MethodGet)
	r.HandleFunc("/collector/record", h.listRecords).Methods(http.MethodGet)
	r.HandleFunc("/collector/record/", h.listRecords).Methods(http.MethodGet)
	r.HandleFunc("/collector/calculated_humidity", h.listHumidity).Methods(http.MethodGet)

	r.HandleFunc("/collector/{collector_id}/status", h.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/collector/{collector_id}/record", h.getRecords).Methods(http.MethodGet)
	r.HandleFunc("/collector/{collector_id}/calculated_humidity", h.getHumidity).Methods(http.MethodGet)

	r.HandleFunc("/collector/{collector_id}/status", h.createStatus).Methods(http.MethodPost)
	r.HandleFunc("/collector/{collector_id}/record", h.createRecord).Methods(http.MethodPost)
	r.HandleFunc("/collector/{collector_id}/calculated_humidity", h.createHumidity).Methods(http.MethodPost)

	r.HandleFunc("/receptor/status", h.listGateway).Methods(http.MethodGet)
	r.HandleFunc("/receptor/status", h.createGateway).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		RespondWithError(w, NewAPIError(ErrorCodeNotFound, "Not found", nil, http.StatusNotFound))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		RespondWithError(w, NewAPIError(ErrorCodeMethodNotAllowed, "Method not allowed", nil, http.StatusMethodNotAllowed))
	})
}

// Router returns a new router with every route registered.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// =============================================================================
// Service Routes
// =============================================================================

func (h *Handler) hello(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": HelloMessage})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.mgr.Store().Health(ctx); err != nil {
		log.Warn("health check failed", "error", err)
		RespondWithError(w, NewAPIError(ErrorCodeUnavailable, "Store unavailable", nil, http.StatusServiceUnavailable))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	UptimeSeconds float64               `json:"uptime_seconds,omitempty"`
	Total         *stats.Summary        `json:"total,omitempty"`
	Routes        []stats.Summary       `json:"routes"`
	Kinds         []manager.KindSummary `json:"kinds"`
	Mirror        *mirror.Stats         `json:"mirror,omitempty"`
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{
		Routes: []stats.Summary{},
		Kinds:  h.mgr.Stats().Snapshot(),
	}
	if h.recorder != nil {
		total := h.recorder.Total()
		resp.UptimeSeconds = h.recorder.Uptime().Seconds()
		resp.Total = &total
		resp.Routes = h.recorder.Snapshot()
	}
	if h.mirror != nil {
		ms := h.mirror.Stats()
		resp.Mirror = &ms
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// =============================================================================
// All-collector Views
// =============================================================================

func (h *Handler) listStatus(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r, c.DefaultOffset, c.DefaultListLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	groups, err := h.mgr.ListStatus(r.Context(), offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, groups)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r, c.DefaultOffset, c.DefaultListLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	groups, err := h.mgr.ListRecords(r.Context(), offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, groups)
}

func (h *Handler) listHumidity(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r, c.DefaultOffset, c.DefaultListLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	groups, err := h.mgr.ListCalculatedHumidity(r.Context(), offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, groups)
}

// =============================================================================
// Per-collector Views
// =============================================================================

// deviceWindow parses the collector id and the per-collector window.
func deviceWindow(r *http.Request) (id, offset, limit int64, err error) {
	if id, err = collectorID(r); err != nil {
		return 0, 0, 0, err
	}
	offset, limit, err = window(r, c.DefaultOffset, c.DefaultDeviceLimit)
	return id, offset, limit, err
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, offset, limit, err := deviceWindow(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	group, err := h.mgr.GetStatus(r.Context(), id, offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, group)
}

func (h *Handler) getRecords(w http.ResponseWriter, r *http.Request) {
	id, offset, limit, err := deviceWindow(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	group, err := h.mgr.GetRecords(r.Context(), id, offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, group)
}

func (h *Handler) getHumidity(w http.ResponseWriter, r *http.Request) {
	id, offset, limit, err := deviceWindow(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	group, err := h.mgr.GetCalculatedHumidity(r.Context(), id, offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, group)
}

// =============================================================================
// Receptor
// =============================================================================

func (h *Handler) listGateway(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r, c.DefaultOffset, c.DefaultListLimit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	entries, err := h.mgr.ListGatewayStatus(r.Context(), offset, limit)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entries)
}

func (h *Handler) createGateway(w http.ResponseWriter, r *http.Request) {
	var p gatewayPayload
	if err := decode(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := p.entry()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stored, err := h.mgr.CreateGatewayStatus(r.Context(), e)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, stored)
}

// =============================================================================
// Ingestion
// =============================================================================

// Created rows are returned with their collector, like the stored row.

type statusCreated struct {
	CollectorID int64 `json:"collector_id"`
	types.StatusEntry
}

type recordCreated struct {
	CollectorID int64 `json:"collector_id"`
	types.RecordEntry
}

type humidityCreated struct {
	CollectorID int64 `json:"collector_id"`
	types.HumidityEntry
}

func (h *Handler) createStatus(w http.ResponseWriter, r *http.Request) {
	id, err := collectorID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var p statusPayload
	if err := decode(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := p.entry()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stored, err := h.mgr.CreateStatus(logging.ContextWithCollectorID(r.Context(), id), id, e)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, statusCreated{CollectorID: id, StatusEntry: stored})
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	id, err := collectorID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var p recordPayload
	if err := decode(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := p.entry()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stored, err := h.mgr.CreateRecord(logging.ContextWithCollectorID(r.Context(), id), id, e)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, recordCreated{CollectorID: id, RecordEntry: stored})
}

func (h *Handler) createHumidity(w http.ResponseWriter, r *http.Request) {
	id, err := collectorID(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var p humidityPayload
	if err := decode(r, &p); err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := p.entry()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	stored, err := h.mgr.CreateCalculatedHumidity(logging.ContextWithCollectorID(r.Context(), id), id, e)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, humidityCreated{CollectorID: id, HumidityEntry: stored})
}
