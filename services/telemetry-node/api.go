package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// sensorErrorMessage je tělo chyby /api/latest, dokud nemáme platné měření.
const sensorErrorMessage = "Error leyendo sensor"

// historyFileMessage je tělo 500 v CSV režimu, když log ještě neexistuje.
const historyFileMessage = "Failed to open history file"

// APIHandler sdružuje metody pro obsluhu HTTP požadavků.
type APIHandler struct {
	latest  LatestProvider
	store   HistoryStore
	static  http.Handler
	metrics *Metrics
	logger  *slog.Logger

	defaults   HistoryQuery
	maxSamples int
	// rawHistory: /api/history vrací vždy surový log (pokud ho úložiště umí).
	rawHistory bool

	// actuator je nil na uzlu bez relé, /api/actuator pak není zaregistrované.
	actuator *Actuator
	events   EventEmitter

	now func() time.Time
}

// APIOptions nastavuje chování /api/history.
type APIOptions struct {
	Defaults   HistoryQuery
	MaxSamples int
	RawHistory bool

	Actuator *Actuator
	Events   EventEmitter
}

func NewAPIHandler(latest LatestProvider, store HistoryStore, static http.Handler, metrics *Metrics, logger *slog.Logger, opts APIOptions) *APIHandler {
	return &APIHandler{
		latest:     latest,
		store:      store,
		static:     static,
		metrics:    metrics,
		logger:     logger,
		defaults:   opts.Defaults,
		maxSamples: opts.MaxSamples,
		rawHistory: opts.RawHistory,
		actuator:   opts.Actuator,
		events:     opts.Events,
		now:        time.Now,
	}
}

// RegisterRoutes mapuje URL cesty na handlery (Go 1.22 router s metodami).
// Co nezachytí API, jde na statické soubory.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/latest", h.instrument("latest", h.handleLatest))
	mux.HandleFunc("GET /api/history", h.instrument("history", h.handleHistory))
	if h.actuator != nil {
		mux.HandleFunc("GET /api/actuator", h.instrument("actuator", h.handleActuatorGet))
		mux.HandleFunc("POST /api/actuator", h.instrument("actuator", h.handleActuatorSet))
	}

	// Jednoduchý healthcheck pro Docker
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", h.metrics.Handler())

	mux.Handle("/", h.instrument("static", h.static.ServeHTTP))
}

// handleLatest: GET /api/latest
func (h *APIHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	sample, err := h.latest.Latest(r.Context(), h.now())
	if err != nil {
		msg := sensorErrorMessage
		if !errors.Is(err, ErrNoReading) {
			h.logger.Error("Chyba při čtení aktuální hodnoty", "error", err)
			if !errors.Is(err, ErrSensor) {
				msg = err.Error()
			}
		}
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
		return
	}
	h.writeJSON(w, http.StatusOK, sample)
}

// handleHistory: GET /api/history?hoursBack=168&stepMinutes=60[&format=csv]
func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if raw, ok := h.store.(RawLog); ok && (h.rawHistory || query.Get("format") == "csv") {
		w.Header().Set("Content-Type", "text/csv")
		err := raw.WriteRaw(ctx, w)
		switch {
		case errors.Is(err, ErrNoHistoryLog):
			// Nic se nezapsalo, odpověď ještě můžeme změnit.
			http.Error(w, historyFileMessage, http.StatusInternalServerError)
		case err != nil:
			// Hlavička už mohla odejít, zbývá jen zalogovat.
			h.logger.Error("Chyba při streamování CSV historie", "error", err)
		}
		return
	}

	q := ParseHistoryQuery(query, h.defaults, h.maxSamples)
	samples, err := h.store.Range(ctx, q, h.now())
	if err != nil {
		h.logger.Error("Chyba při načítání historie", "hoursBack", q.HoursBack, "stepMinutes", q.StepMinutes, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Chyba při načítání historie"})
		return
	}
	h.writeJSON(w, http.StatusOK, samples)
}

type actuatorBody struct {
	State   ActuatorState    `json:"state"`
	Changed *bool            `json:"changed,omitempty"`
	History []ActuatorChange `json:"history,omitempty"`
}

// handleActuatorGet: GET /api/actuator
func (h *APIHandler) handleActuatorGet(w http.ResponseWriter, r *http.Request) {
	state, history := h.actuator.Snapshot()
	h.writeJSON(w, http.StatusOK, actuatorBody{State: state, History: history})
}

// handleActuatorSet: POST /api/actuator, form body state=ON|OFF
func (h *APIHandler) handleActuatorSet(w http.ResponseWriter, r *http.Request) {
	state, err := ParseActuatorState(r.PostFormValue("state"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	changed, err := h.actuator.Set(r.Context(), state)
	if err != nil {
		h.logger.Error("Přepnutí relé selhalo", "state", state, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Chyba při přepínání relé"})
		return
	}
	if changed {
		h.logger.Info("Relé přepnuto", "state", state)
		h.metrics.ObserveActuator(state)
		if h.events != nil {
			h.events.Emit(r.Context(), EventActuator, string(state))
		}
	}
	h.writeJSON(w, http.StatusOK, actuatorBody{State: state, Changed: &changed})
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

// statusRecorder si pamatuje status kód pro metriky.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *APIHandler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.metrics.ObserveHTTP(route, rec.status)
	}
}

// CorsMiddleware povolí prohlížeči volat API z jiné domény (např. vývojový frontend).
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Preflight request: odpovíme OK a končíme.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
